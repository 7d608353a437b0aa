package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchmarkCommand(t *testing.T) {
	dir := t.TempDir()
	img := writeScene(t, dir, "page.png")

	stdout, _, err := executeCommand(t, "benchmark", "-n", "1", "--backend", "go", img)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Benchmark Results:")
	assert.Contains(t, stdout, "go/"+img+": 1 iterations")
	assert.Contains(t, stdout, "Detection Accuracy:")
}

func TestBenchmarkCommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{"zero iterations", []string{"benchmark", "-n", "0"}, "invalid iterations"},
		{"unknown backend", []string{"benchmark", "--backend", "magic"}, "backend magic"},
		{"missing image", []string{"benchmark", "/nonexistent/page.png"}, "no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
