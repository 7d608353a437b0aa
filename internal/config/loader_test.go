package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// chdir switches to dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func isolatedLoader(t *testing.T) *Loader {
	t.Helper()
	// Keep the user's real config out of the search paths.
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return NewLoaderWithViper(viper.New())
}

func TestLoadWithNoConfigFile(t *testing.T) {
	l := isolatedLoader(t)
	chdir(t, t.TempDir())

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
	assert.Empty(t, l.GetConfigFileUsed())
}

func TestLoadFromSearchPath(t *testing.T) {
	l := isolatedLoader(t)
	dir := t.TempDir()
	chdir(t, dir)

	yamlContent := `
log_level: debug
detection:
  max_dimension: 800
  validation:
    max_aspect: 3.0
  hough:
    threshold: 40
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docscan.yaml"), []byte(yamlContent), 0o600))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 800, cfg.Detection.MaxDimension)
	assert.InDelta(t, 3.0, cfg.Detection.Validation.MaxAspect, 1e-12)
	assert.Equal(t, 40, cfg.Detection.Hough.Threshold)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched keys keep their defaults.
	assert.True(t, cfg.Detection.Validation.Enabled)
	assert.InDelta(t, 0.30, cfg.Detection.Validation.MaxWidthAsymmetry, 1e-12)
	assert.Equal(t, "bilinear", cfg.Rectify.Interpolation)
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rectify:\n  interpolation: nearest\n"), 0o600))

	l := isolatedLoader(t)
	cfg, err := l.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nearest", cfg.Rectify.Interpolation)
	assert.Equal(t, path, l.GetConfigFileUsed())
}

func TestLoadWithFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := isolatedLoader(t).LoadWithFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("server: [unclosed"), 0o600))
	_, err = isolatedLoader(t).LoadWithFile(broken)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("log_level: loud\n"), 0o600))
	_, err = isolatedLoader(t).LoadWithFile(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	cfg, err := isolatedLoader(t).LoadWithFileWithoutValidation(invalid)
	require.NoError(t, err)
	assert.Equal(t, "loud", cfg.LogLevel)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	l := isolatedLoader(t)
	chdir(t, t.TempDir())
	t.Setenv("DOCSCAN_LOG_LEVEL", "warn")
	t.Setenv("DOCSCAN_DETECTION_HOUGH_THRESHOLD", "70")
	t.Setenv("DOCSCAN_DETECTION_VALIDATION_ENABLED", "false")
	t.Setenv("DOCSCAN_SERVER_PORT", "8181")

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 70, cfg.Detection.Hough.Threshold)
	assert.False(t, cfg.Detection.Validation.Enabled)
	assert.Equal(t, 8181, cfg.Server.Port)
}

func TestLoaderAccessors(t *testing.T) {
	l := NewLoaderWithViper(nil)
	require.NotNil(t, l.GetViper())
	l.Set("output.format", "json")
	assert.Equal(t, "json", l.GetString("output.format"))
	assert.Equal(t, "json", l.Get("output.format"))
	assert.Contains(t, l.GetResolvedConfig(), "output")
}

func TestDefaultSettingsAreFlat(t *testing.T) {
	settings, err := defaultSettings()
	require.NoError(t, err)
	assert.Contains(t, settings, "detection.hough.threshold")
	assert.Contains(t, settings, "server.rate_limit.burst")
	assert.Contains(t, settings, "batch.extensions")
	assert.NotContains(t, settings, "detection")
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "docscan.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# docscan configuration")

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, DefaultConfig(), cfg)

	err = GenerateDefaultConfigFile(path, false)
	require.Error(t, err)
	require.NoError(t, GenerateDefaultConfigFile(path, true))

	loaded, err := isolatedLoader(t).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *loaded)
}

func TestGetConfigSearchPaths(t *testing.T) {
	home := t.TempDir()
	xdg := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", xdg)

	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join(xdg, "docscan"))
	assert.Contains(t, paths, filepath.Join(home, ".config", "docscan"))
	assert.Equal(t, "/etc/docscan", paths[len(paths)-1])
}

func TestToYAML(t *testing.T) {
	cfg := DefaultConfig()
	data, err := ToYAML(&cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_dimension: 1000")
}
