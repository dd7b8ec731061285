package scaffold

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/discgraph/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		force     bool
		setupFunc func(string)
		wantErr   bool
	}{
		{
			name:      "fresh initialization",
			setupFunc: func(dir string) {},
		},
		{
			name:  "existing file without force",
			force: false,
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, ConfigFile), []byte("old content"), 0644)
			},
			wantErr: true,
		},
		{
			name:  "force replaces existing file",
			force: true,
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, ConfigFile), []byte("old content"), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setupFunc(dir)

			path, err := Initialize(dir, tt.force)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrAlreadyInitialized))

				content, _ := os.ReadFile(filepath.Join(dir, ConfigFile))
				assert.Equal(t, "old content", string(content), "existing file must be left alone")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, ConfigFile), path)

			cfg, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, "default", cfg.Namespace)
			assert.Equal(t, config.BackendRedis, cfg.Store.Backend)
			assert.True(t, cfg.Ledger.ValidateProgramIDs)
		})
	}
}

func TestInitialize_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "conf")

	path, err := Initialize(dir, false)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestCheckExisting(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CheckExisting(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte("x"), 0644))
	assert.ErrorIs(t, CheckExisting(dir), ErrAlreadyInitialized)
}
