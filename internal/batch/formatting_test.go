package batch

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

func sampleFileResults() []pipeline.FileResult {
	return []pipeline.FileResult{
		{
			Path: "/scans/a.png",
			Result: &pipeline.Result{
				Detection: &detector.Result{
					Corners: geometry.Quad{
						utils.Point{X: 50, Y: 50}, utils.Point{X: 450, Y: 50},
						utils.Point{X: 450, Y: 650}, utils.Point{X: 50, Y: 650},
					},
					Strategy: detector.StrategyRetryContour,
					Width:    500,
					Height:   700,
				},
				Width:  400,
				Height: 600,
			},
		},
		{Path: "/scans/b.png", Err: errors.New("decode failed")},
	}
}

func TestFormatBatchResults_Text(t *testing.T) {
	output, err := formatBatchResults(sampleFileResults(), "text")
	require.NoError(t, err)

	assert.Contains(t, output, "# /scans/a.png\n")
	assert.Contains(t, output, "Strategy: Retry-Contour\n")
	assert.Contains(t, output, "Top-left: (50.0, 50.0)\n")
	assert.Contains(t, output, "Bottom-right: (450.0, 650.0)\n")
	assert.Contains(t, output, "Output: 400x600\n")
	assert.Contains(t, output, "# /scans/b.png\nError: decode failed\n")
}

func TestFormatBatchResults_JSON(t *testing.T) {
	output, err := formatBatchResults(sampleFileResults(), "json")
	require.NoError(t, err)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "/scans/a.png", entries[0]["path"])
	assert.NotContains(t, entries[0], "error")
	assert.Equal(t, "decode failed", entries[1]["error"])
}

func TestFormatBatchResults_CSV(t *testing.T) {
	output, err := formatBatchResults(sampleFileResults(), "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "path,strategy,"))
	assert.Equal(t, "/scans/a.png,retry-contour,50.0,50.0,450.0,50.0,450.0,650.0,50.0,650.0,400,600,", lines[1])
	assert.True(t, strings.HasSuffix(lines[2], ",decode failed"))
}

func TestFormatBatchResults_Unsupported(t *testing.T) {
	_, err := formatBatchResults(nil, "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
