package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load.
// Nested keys use a double underscore: CHURNLINE_TRAINING__TEST_RATIO.
const EnvPrefix = "CHURNLINE_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"churnline.yaml", "churnline.yml"}

// flagKeys maps flag names to config keys. Flags not listed are not
// configuration (--config, --target, --limit, ...).
var flagKeys = map[string]string{
	"data":               "data",
	"artifact-dir":       "artifact_dir",
	"state":              "state_path",
	"verbose":            "verbose",
	"output":             "output",
	"validation":         "training.validation",
	"fail-on-validation": "training.fail_on_validation",
	"test-ratio":         "training.test_ratio",
	"estimators":         "training.n_estimators",
	"learning-rate":      "training.learning_rate",
	"max-depth":          "training.max_depth",
	"seed":               "training.random_state",
	"addr":               "serve.addr",
	"watch":              "serve.watch",
	"threshold":          "serve.threshold",
}

// pathFlags are the flags holding filesystem paths.
var pathFlags = []string{"data", "artifact-dir", "state"}

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range configNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a churnline config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if p := configExistsIn(dir); p != "" {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// envKey transforms CHURNLINE_TRAINING__TEST_RATIO into training.test_ratio.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Load loads configuration from defaults, the config file, environment
// variables and flags. cfgFile may be empty to search for churnline.yaml
// upward from the working directory. target selects an entry of
// environments; empty uses the configured environment.
func Load(cfgFile, target string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	if cfgFile == "" {
		cfgFile = findConfigUpward(cwd)
	}
	projectRoot := cwd
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Load environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Apply environment overrides
	envName := cfg.Environment
	if target != "" {
		envName = target
	}
	if envCfg, ok := cfg.Environments[envName]; ok {
		if envCfg.DataPath != "" && !changed(flags, "data") {
			cfg.DataPath = envCfg.DataPath
		}
		if envCfg.ArtifactDir != "" && !changed(flags, "artifact-dir") {
			cfg.ArtifactDir = envCfg.ArtifactDir
		}
		if envCfg.StatePath != "" && !changed(flags, "state") {
			cfg.StatePath = envCfg.StatePath
		}
	} else if target != "" {
		return nil, "", fmt.Errorf("unknown target %q: not defined under environments", target)
	}
	cfg.Environment = envName

	// 7. Resolve relative paths. Flag values are relative to the working
	// directory, everything else to the project root.
	cfg.ProjectRoot = projectRoot
	for _, name := range pathFlags {
		base := projectRoot
		if changed(flags, name) {
			base = cwd
		}
		switch name {
		case "data":
			cfg.DataPath = resolvePathRelativeTo(cfg.DataPath, base)
		case "artifact-dir":
			cfg.ArtifactDir = resolvePathRelativeTo(cfg.ArtifactDir, base)
		case "state":
			cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, base)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, cfgFile, nil
}

func changed(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

type (
	loggerKey struct{}
	configKey struct{}
)

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig stores the config in the context.
func WithConfig(ctx context.Context, c *Config) context.Context {
	return context.WithValue(ctx, configKey{}, c)
}

// GetConfig retrieves the config from the command context, falling back
// to the defaults.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return Default()
}

// Default returns the built-in configuration.
func Default() *Config {
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(defaults(), "."), nil)
	var c Config
	_ = k.Unmarshal("", &c)
	return &c
}
