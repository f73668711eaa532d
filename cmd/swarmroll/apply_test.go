package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadServiceFile(t *testing.T) {
	path := writeFile(t, `
services:
  - name: api
    repository: registry.local/team/api
    tag: v2.1.0
  - name: web
    repository: registry.local/team/web
    tag: v2.1.0
`)

	file, err := loadServiceFile(path)
	require.NoError(t, err)
	assert.Equal(t, []ServiceEntry{
		{Name: "api", Repository: "registry.local/team/api", Tag: "v2.1.0"},
		{Name: "web", Repository: "registry.local/team/web", Tag: "v2.1.0"},
	}, file.Services)
}

func TestLoadServiceFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing name", "services:\n  - repository: x\n    tag: \"1\"\n", "has no name"},
		{"duplicate", "services:\n  - name: a\n  - name: a\n", "listed twice"},
		{"bad yaml", "services: [", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadServiceFile(writeFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := loadServiceFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
