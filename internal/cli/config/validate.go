package config

import "fmt"

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ArtifactDir == "" {
		return fmt.Errorf("artifact_dir is required")
	}
	switch c.OutputFormat {
	case OutputText, OutputJSON, OutputMarkdown:
	default:
		return fmt.Errorf("unknown output format %q (want text, json or markdown)", c.OutputFormat)
	}
	if r := c.Training.TestRatio; r < 0 || r >= 1 {
		return fmt.Errorf("training.test_ratio must be in [0, 1), got %g", r)
	}
	if err := c.Training.ModelConfig().Validate(); err != nil {
		return fmt.Errorf("invalid training config: %w", err)
	}
	if th := c.Serve.Threshold; th <= 0 || th >= 1 {
		return fmt.Errorf("serve.threshold must be in (0, 1), got %g", th)
	}
	return nil
}
