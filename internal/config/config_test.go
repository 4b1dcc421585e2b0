package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/benchctl/internal/config"
	"codeberg.org/mutker/benchctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "benchctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
endpoint = "ws://10.0.0.7:81"
window_size = 20
label_mode = "index"
motor1_speed = 50
motor2_speed = -50
duration = 45
file_name = "run1"
export_dir = "/tmp/exports"
log_level = "debug"
archive = true
archive_db = "/path/to/sessions.db"
`)
	t.Setenv("BENCHCTL_CONFIG", path)

	cfg, err := config.LoadArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, "ws://10.0.0.7:81", cfg.Endpoint)
	assert.Equal(t, 20, cfg.WindowSize)
	assert.Equal(t, config.LabelModeIndex, cfg.LabelMode)
	assert.Equal(t, 50, cfg.Motor1Speed)
	assert.Equal(t, -50, cfg.Motor2Speed)
	assert.InDelta(t, 45.0, cfg.Duration, 1e-9)
	assert.Equal(t, "run1", cfg.FileName)
	assert.Equal(t, "/tmp/exports", cfg.ExportDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Archive)
	assert.Equal(t, "/path/to/sessions.db", cfg.ArchiveDB)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BENCHCTL_CONFIG", "")

	cfg, err := config.LoadArgs(nil)
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, 10, cfg.WindowSize)
	assert.Equal(t, config.LabelModeTime, cfg.LabelMode)
	assert.Equal(t, "data", cfg.FileName)
	assert.False(t, cfg.Archive)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
window_size = 20
file_name = "from_file"
`)

	cfg, err := config.LoadArgs(
		[]string{"--window-size", "5", "--log-level", "warning", "--motor1-speed=100"},
		config.WithConfigFile(path),
	)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.WindowSize, "flag must win over file")
	assert.Equal(t, "from_file", cfg.FileName, "file must win over default")
	assert.Equal(t, "warning", cfg.LogLevel)
	assert.Equal(t, 100, cfg.Motor1Speed)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("RIGTEST_CONFIG", "")
	t.Setenv("RIGTEST_ENDPOINT", "ws://rig.local:81")

	cfg, err := config.LoadArgs(nil, config.WithEnvPrefix("RIGTEST"))
	require.NoError(t, err)
	assert.Equal(t, "ws://rig.local:81", cfg.Endpoint)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("BENCHCTL_CONFIG", path)

	_, err := config.LoadArgs(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
log_level = "invalid"
`)

	_, err := config.LoadArgs(nil, config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestInvalidEndpoint(t *testing.T) {
	t.Setenv("BENCHCTL_CONFIG", "")

	_, err := config.LoadArgs([]string{"--endpoint", "http://192.168.137.157:81"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidEndpoint))
}

func TestInvalidWindowSize(t *testing.T) {
	t.Setenv("BENCHCTL_CONFIG", "")

	_, err := config.LoadArgs([]string{"--window-size", "0"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestUnknownFlag(t *testing.T) {
	t.Setenv("BENCHCTL_CONFIG", "")

	_, err := config.LoadArgs([]string{"--bogus"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrBindFlags))
}
