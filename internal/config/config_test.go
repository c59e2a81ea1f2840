package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[mainConfig]
port = 9001

[presenceConfig]
staleAfter = "2m"

[typingConfig]
timeout = "3s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, conf.MainConfig.Port)
	assert.Equal(t, "channel", conf.MessageMode)
	assert.Equal(t, 2*time.Minute, conf.StaleAfter)
	assert.Equal(t, time.Minute, conf.SweepInterval)
	assert.Equal(t, 3*time.Second, conf.TypingConfig.Timeout)
	assert.Equal(t, 50, conf.DefaultPageSize)
	assert.False(t, conf.DisableReadOnFetch)
	assert.Contains(t, conf.Roles, "admin")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	conf := Default()
	assert.Equal(t, 5*time.Second, conf.TypingConfig.Timeout)
	assert.Equal(t, 5*time.Minute, conf.StaleAfter)
	assert.Equal(t, 8000, conf.MainConfig.Port)
}
