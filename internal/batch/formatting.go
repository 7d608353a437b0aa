package batch

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MeKo-Tech/docscan/internal/pipeline"
)

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(results []pipeline.FileResult, format string) (string, error) {
	switch format {
	case "json":
		return pipeline.ToJSONFiles(results)
	case "csv":
		return pipeline.ToCSVFiles(results)
	case "text", "":
		return formatText(results), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatText renders one block per file.
func formatText(results []pipeline.FileResult) string {
	title := cases.Title(language.English)
	var output strings.Builder
	for i, r := range results {
		if i > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "# %s\n", r.Path)
		if r.Err != nil {
			fmt.Fprintf(&output, "Error: %v\n", r.Err)
			continue
		}
		if r.Result == nil || r.Result.Detection == nil {
			continue
		}
		det := r.Result.Detection
		fmt.Fprintf(&output, "Strategy: %s\n", title.String(string(det.Strategy)))
		for j, name := range []string{"Top-left", "Top-right", "Bottom-right", "Bottom-left"} {
			p := det.Corners[j]
			fmt.Fprintf(&output, "%s: (%.1f, %.1f)\n", name, p.X, p.Y)
		}
		if r.Result.Width > 0 {
			fmt.Fprintf(&output, "Output: %dx%d\n", r.Result.Width, r.Result.Height)
		}
	}
	return output.String()
}
