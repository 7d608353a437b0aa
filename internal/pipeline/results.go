package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/MeKo-Tech/docscan/internal/detector"
)

// ToJSONDetection serializes a detection result to pretty JSON.
func ToJSONDetection(res *detector.Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONFiles serializes batch results. Failed files carry their error text.
func ToJSONFiles(results []FileResult) (string, error) {
	type entry struct {
		Path   string  `json:"path"`
		Result *Result `json:"result,omitempty"`
		Error  string  `json:"error,omitempty"`
	}
	entries := make([]entry, len(results))
	for i, r := range results {
		entries[i] = entry{Path: r.Path, Result: r.Result}
		if r.Err != nil {
			entries[i].Error = r.Err.Error()
		}
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToCSVFiles exports one row per file: the corners, the strategy and the
// output size.
func ToCSVFiles(results []FileResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"path", "strategy", "tl_x", "tl_y", "tr_x", "tr_y", "br_x", "br_y", "bl_x", "bl_y", "width", "height", "error"}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, r := range results {
		row := make([]string, 0, len(header))
		row = append(row, r.Path)
		if r.Result != nil && r.Result.Detection != nil {
			row = append(row, string(r.Result.Detection.Strategy))
			for _, p := range r.Result.Detection.Corners {
				row = append(row, formatCoord(p.X), formatCoord(p.Y))
			}
			row = append(row, strconv.Itoa(r.Result.Width), strconv.Itoa(r.Result.Height))
		} else {
			row = append(row, make([]string, 11)...)
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		if err := w.Write(append(row, errText)); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

func formatCoord(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

// ValidateDetection performs simple consistency checks on a detection.
func ValidateDetection(res *detector.Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.Width <= 0 || res.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", res.Width, res.Height)
	}
	if res.Strategy == "" {
		return errors.New("missing strategy")
	}
	for i, p := range res.Corners {
		if p.X < 0 || p.Y < 0 || p.X > float64(res.Width) || p.Y > float64(res.Height) {
			return fmt.Errorf("corner %d (%.1f, %.1f) outside %dx%d image", i, p.X, p.Y, res.Width, res.Height)
		}
	}
	return nil
}
