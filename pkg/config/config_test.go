package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"accounts": [{"username": "ana@example.com", "password": "secret"}, {"username": "other", "password": "x"}],
		"browser_settings": {"headless": true, "wait_time": 7},
		"stealth": {"timing": {"settle_delay": "250ms", "login_settle": 2}}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", cfg.Account().Username)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 7*time.Second, cfg.Browser.WaitTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.Stealth.Timing.SettleDelay.Std())
	assert.Equal(t, 2*time.Second, cfg.Stealth.Timing.LoginSettle.Std())
	// untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Executor.MaxAttempts)
	assert.True(t, cfg.Actions.Like)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
accounts:
  - username: bob
    password: hunter2
browser_settings:
  wait_time: 3
batch:
  delay: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Account().Username)
	assert.Equal(t, 30*time.Second, cfg.Batch.Delay.Std())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		field   string
	}{
		{
			name:    "missing password",
			file:    "c.json",
			content: `{"accounts": [{"username": "ana"}]}`,
			field:   "accounts[0].password",
		},
		{
			name:    "missing username",
			file:    "c.json",
			content: `{"accounts": [{"password": "p"}]}`,
			field:   "accounts[0].username",
		},
		{
			name:    "no accounts",
			file:    "c.json",
			content: `{"browser_settings": {"headless": true}}`,
			field:   "accounts",
		},
		{
			name:    "bad wait time",
			file:    "c.json",
			content: `{"accounts": [{"username": "a", "password": "p"}], "browser_settings": {"wait_time": 0}}`,
			field:   "browser_settings.wait_time",
		},
		{
			name:    "unsupported extension",
			file:    "c.toml",
			content: `x = 1`,
			field:   "path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load("")
	require.True(t, errors.As(err, &cfgErr))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BROWSER_HEADLESS", "true")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeFile(t, "config.json", `{"accounts": [{"username": "a", "password": "p"}]}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveRoundTripsDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Accounts = []Account{{Username: "a", Password: "p"}}
	path := filepath.Join(t.TempDir(), "out", "config.yaml")

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Batch.Delay, loaded.Batch.Delay)
	assert.Equal(t, cfg.Stealth.Typing.MaxKeyDelay, loaded.Stealth.Typing.MaxKeyDelay)
}
