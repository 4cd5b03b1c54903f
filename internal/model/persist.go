package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileName is the model artifact inside an artifact directory.
const FileName = "model.json"

const (
	artifactFormat  = "churnline-gbdt"
	artifactVersion = 1
)

type artifact struct {
	Format    string  `json:"format"`
	Version   int     `json:"version"`
	Config    Config  `json:"config"`
	BaseScore float64 `json:"base_score"`
	Features  int     `json:"n_features"`
	Trees     []Tree  `json:"trees"`
}

// Encode writes the model as JSON.
func (m *GBDT) Encode(w io.Writer) error {
	if !m.Fitted() {
		return errors.New("gbdt: model is not trained")
	}
	enc := json.NewEncoder(w)
	return enc.Encode(artifact{
		Format:    artifactFormat,
		Version:   artifactVersion,
		Config:    m.Config,
		BaseScore: m.BaseScore,
		Features:  m.Features,
		Trees:     m.Trees,
	})
}

// Save writes the model file, creating parent directories as needed.
func (m *GBDT) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	if err := m.Encode(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	return f.Close()
}

// Decode reads a model written by Encode.
func Decode(r io.Reader) (*GBDT, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if a.Format != artifactFormat {
		return nil, fmt.Errorf("unknown model format %q", a.Format)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("unsupported model version %d", a.Version)
	}
	if a.Features <= 0 {
		return nil, fmt.Errorf("model has no features")
	}
	for i, t := range a.Trees {
		if err := t.check(a.Features); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}

	m := NewGBDT(WithConfig(a.Config))
	m.BaseScore = a.BaseScore
	m.Features = a.Features
	m.Trees = a.Trees
	return m, nil
}

// Load reads a model file.
func Load(path string) (*GBDT, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// check rejects trees whose links would loop or run out of range.
func (t Tree) check(features int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= features {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}
