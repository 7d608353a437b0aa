package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/config"
	"github.com/MeKo-Tech/docscan/internal/testutil"
)

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, "a.png")
	writeScene(t, dir, "b.png")
	outDir := filepath.Join(dir, "scans")

	stdout, stderr, err := executeCommand(t, "batch", dir, "--format", "csv", "--output-dir", outDir, "--workers", "2", "--stats")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "path,strategy"))
	assert.Contains(t, stderr, "Processing Statistics:")
	assert.Contains(t, stderr, "Written: 2")
	assert.True(t, testutil.FileExists(filepath.Join(outDir, "a_scan.png")))
	assert.True(t, testutil.FileExists(filepath.Join(outDir, "b_scan.png")))
}

func TestBatchCommandNoImages(t *testing.T) {
	_, _, err := executeCommand(t, "batch", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image files found")
}

func TestConfigToBatchConfig(t *testing.T) {
	cmd := newBatchCmd(&cliState{})
	require.NoError(t, cmd.ParseFlags([]string{"--workers", "3", "--detect-only", "--exclude", "tmp_*", "--format", "json"}))

	cfg := config.DefaultConfig()
	cfg.Batch.OutputDir = "from-config"
	bc := configToBatchConfig(cmd, &cfg)

	assert.Equal(t, 3, bc.Workers)
	assert.True(t, bc.DetectOnly)
	assert.Equal(t, []string{"tmp_*"}, bc.ExcludePatterns)
	assert.Equal(t, "json", bc.Format)
	assert.Equal(t, "from-config", bc.OutputDir)
	assert.True(t, bc.ContinueOnError)
	assert.Equal(t, cfg.Batch.Extensions, bc.Extensions)
}
