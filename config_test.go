package orchestra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, 300, cfg.TimeoutSeconds)
	assert.Equal(t, 0, cfg.ToolConcurrency)
	require.NoError(t, cfg.Validate())
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{MaxIterations: 3}.WithDefaults()
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, 300, cfg.TimeoutSeconds)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"zero iterations", Config{MaxIterations: 0, TimeoutSeconds: 10}, "max_iterations"},
		{"negative timeout", Config{MaxIterations: 1, TimeoutSeconds: -1}, "timeout_seconds"},
		{"negative concurrency", Config{MaxIterations: 1, TimeoutSeconds: 10, ToolConcurrency: -2}, "tool_concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestra.yaml")
	content := "max_iterations: 4\ntimeout_seconds: 60\ntool_concurrency: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{MaxIterations: 4, TimeoutSeconds: 60, ToolConcurrency: 2}, cfg)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_iterations: [oops"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_iterations: -5\n"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_iterations")
}
