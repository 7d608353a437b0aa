package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MeKo-Tech/docscan/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	Pipeline pipeline.Config

	// Output settings
	Format       string
	OutputFile   string
	OutputDir    string
	ImageFormat  string
	JPEGQuality  int
	OverlayDir   string
	OverlayColor string

	// Parallel processing settings
	Workers         int
	DetectOnly      bool
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	Extensions      []string
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress bool
	Quiet        bool
	ShowStats    bool
}

// DefaultConfig returns a batch configuration with the pipeline defaults.
func DefaultConfig() *Config {
	return &Config{
		Pipeline:        pipeline.DefaultConfig(),
		Format:          "text",
		ImageFormat:     "png",
		Workers:         4,
		ContinueOnError: true,
	}
}

// Result holds the result of batch processing.
type Result struct {
	Files       []pipeline.FileResult
	Written     []string
	Duration    time.Duration
	WorkerCount int
}

// Succeeded counts the files that were scanned without error.
func (r *Result) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts the files that could not be scanned.
func (r *Result) Failed() int { return len(r.Files) - r.Succeeded() }

// Fallbacks counts the files that ended on the default corners.
func (r *Result) Fallbacks() int {
	n := 0
	for _, f := range r.Files {
		if f.Result != nil && f.Result.Detection != nil && f.Result.Detection.IsFallback() {
			n++
		}
	}
	return n
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Files, format)
}

// SaveResults writes the formatted results to outputFile, or to w when no
// file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, _ = fmt.Fprint(w, output)
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	p := message.NewPrinter(language.English)
	total := len(r.Files)
	var avg time.Duration
	var throughput float64
	if total > 0 {
		avg = r.Duration / time.Duration(total)
	}
	if r.Duration > 0 {
		throughput = float64(total) / r.Duration.Seconds()
	}
	_, _ = p.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = p.Fprintf(w, "  Total images: %d\n", total)
	_, _ = p.Fprintf(w, "  Processed: %d\n", r.Succeeded())
	_, _ = p.Fprintf(w, "  Failed: %d\n", r.Failed())
	_, _ = p.Fprintf(w, "  Default corners: %d\n", r.Fallbacks())
	_, _ = p.Fprintf(w, "  Written: %d\n", len(r.Written))
	_, _ = p.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = p.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	_, _ = p.Fprintf(w, "  Avg per image: %v\n", avg.Round(time.Millisecond))
	_, _ = p.Fprintf(w, "  Throughput: %.1f images/sec\n", throughput)
}
