package batch

import (
	"io"
	"runtime"

	"github.com/MeKo-Tech/docscan/internal/pipeline"
)

// buildPipeline creates a scan pipeline from the batch configuration.
func buildPipeline(config *Config) (*pipeline.Pipeline, error) {
	return pipeline.NewBuilder().
		WithConfig(config.Pipeline).
		WithWorkers(config.Workers).
		Build()
}

// parallelConfig maps the batch settings onto the worker pool.
func parallelConfig(config *Config, progress io.Writer) pipeline.ParallelConfig {
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pc := pipeline.ParallelConfig{
		MaxWorkers: workers,
		DetectOnly: config.DetectOnly,
	}
	if config.ShowProgress && !config.Quiet && progress != nil {
		pc.ProgressCallback = pipeline.NewConsoleProgressCallback(progress, "Scanning: ")
	}
	return pc
}
