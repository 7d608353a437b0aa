package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// ParallelConfig holds configuration for parallel processing.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback // Optional progress reporting
	ErrorHandler     func(int, error) // Optional per-item error handler
	DetectOnly       bool             // Skip rectification
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

// FileResult is the outcome for one input file of a batch.
type FileResult struct {
	Path   string
	Result *Result
	Err    error
}

// ProcessImagesParallel scans every image with a worker pool and returns the
// results in input order. The first per-image error is returned alongside
// the partial results.
func (p *Pipeline) ProcessImagesParallel(ctx context.Context, images []image.Image, config ParallelConfig) ([]*Result, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.Detector == nil || p.Rectifier == nil {
		return nil, errors.New("pipeline not initialized")
	}

	results := make([]*Result, len(images))
	errs := make([]error, len(images))
	err := p.runPool(ctx, len(images), config, func(ctx context.Context, i int) error {
		res, err := p.process(ctx, images[i], config)
		results[i], errs[i] = res, err
		return err
	})
	if err != nil {
		return nil, err
	}

	var firstError error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstError == nil {
			firstError = fmt.Errorf("image %d: %w", i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, err)
		}
	}
	return results, firstError
}

// ProcessFiles loads and scans every file with a worker pool. Each file gets
// its own FileResult; only cancellation fails the whole call.
func (p *Pipeline) ProcessFiles(ctx context.Context, paths []string, config ParallelConfig) ([]FileResult, error) {
	if p == nil || p.Detector == nil || p.Rectifier == nil {
		return nil, errors.New("pipeline not initialized")
	}
	out := make([]FileResult, len(paths))
	err := p.runPool(ctx, len(paths), config, func(ctx context.Context, i int) error {
		out[i].Path = paths[i]
		img, _, err := utils.LoadImage(paths[i])
		if err == nil {
			out[i].Result, err = p.process(ctx, img, config)
		}
		out[i].Err = err
		if err != nil && config.ErrorHandler != nil {
			config.ErrorHandler(i, err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) process(ctx context.Context, img image.Image, config ParallelConfig) (*Result, error) {
	if !config.DetectOnly {
		return p.Process(ctx, img)
	}
	det, err := p.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	return &Result{Detection: det}, nil
}

// runPool calls fn for indices 0..n-1 on up to config.MaxWorkers goroutines.
func (p *Pipeline) runPool(ctx context.Context, n int, config ParallelConfig, fn func(context.Context, int) error) error {
	workers := config.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, max(n, 1))

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(n)
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan int)
	done := make(chan error, n)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				done <- fn(ctx, i)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range n {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	processed := 0
	for err := range done {
		processed++
		if config.ProgressCallback != nil {
			if err != nil {
				config.ProgressCallback.OnError(processed, err)
			}
			config.ProgressCallback.OnProgress(processed, n)
		}
	}
	return ctx.Err()
}
