package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		config  string
		wantErr bool
		server  string
	}{
		{
			name: "valid config",
			config: `version: "1"
server: "https://store.example.com/"
api_key: "test-key"`,
			server: "https://store.example.com",
		},
		{
			name: "server without scheme",
			config: `version: "1"
server: "localhost:3000"`,
			server: "http://localhost:3000",
		},
		{
			name: "missing server",
			config: `version: "1"
api_key: "test-key"`,
			wantErr: true,
		},
		{
			name:    "not yaml",
			config:  "server: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := filepath.Join(tmpDir, "config.yaml")
			require.NoError(t, os.WriteFile(configFile, []byte(tt.config), 0o644))

			err := LoadConfig(configFile)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.server, GetConfig().Server)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{Version: "1", Server: "http://localhost:3000", APIKey: "k"}
	require.NoError(t, cfg.WriteConfig(file))

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, LoadConfig(file))
	assert.Equal(t, cfg, GetConfig())

	assert.Error(t, cfg.WriteConfig(""))
}

func TestMorphServer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"localhost:3000", "http://localhost:3000"},
		{"https://api.vicinae.com//", "https://api.vicinae.com"},
		{"http://localhost", "http://localhost"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MorphServer(tt.in), tt.in)
	}
}
