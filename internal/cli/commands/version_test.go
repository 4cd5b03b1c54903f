package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		build   BuildInfo
		wantOut []string
		wantErr bool
	}{
		{
			name:    "default version",
			build:   BuildInfo{Version: "0.1.0", Commit: "unknown", Date: "unknown"},
			wantOut: []string{"churnline v0.1.0", "commit unknown"},
		},
		{
			name:    "release build",
			build:   BuildInfo{Version: "1.2.3", Commit: "abc1234", Date: "2026-01-02"},
			wantOut: []string{"churnline v1.2.3", "commit abc1234, built 2026-01-02"},
		},
		{
			name:    "dev version",
			build:   BuildInfo{Version: "dev"},
			wantOut: []string{"churnline vdev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.build)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			output := buf.String()
			for _, want := range tt.wantOut {
				if !strings.Contains(output, want) {
					t.Errorf("output should contain %q, got: %s", want, output)
				}
			}
		})
	}
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand(BuildInfo{Version: "test"})

	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}

	if cmd.Short == "" {
		t.Error("Short should not be empty")
	}

	if cmd.Long == "" {
		t.Error("Long should not be empty")
	}
}
