package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docscan/internal/benchmark"
	"github.com/MeKo-Tech/docscan/internal/preprocess"
)

func newBenchmarkCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark [images...]",
		Short: "Time detection per edge-map backend",
		Long: `Run detection repeatedly with every available edge-map backend and report
timing, allocations and accuracy. Without images the built-in synthetic
scenes are used, whose true corners are known.

Examples:
  docscan benchmark
  docscan benchmark --iterations 20 --backend go
  docscan benchmark photo1.jpg photo2.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(cmd, state, args)
		},
	}
	cmd.Flags().IntP("iterations", "n", 5, "detections per backend and image")
	cmd.Flags().StringSlice("backend", nil, "backends to compare (default: all available)")
	return cmd
}

func runBenchmark(cmd *cobra.Command, state *cliState, args []string) error {
	iterations, _ := cmd.Flags().GetInt("iterations")
	if iterations < 1 {
		return fmt.Errorf("invalid iterations: %d (must be at least 1)", iterations)
	}
	backends, _ := cmd.Flags().GetStringSlice("backend")
	if len(backends) == 0 {
		backends = preprocess.AvailableBackends()
	}

	images := benchmark.SceneImages()
	if len(args) > 0 {
		var err error
		if images, err = benchmark.LoadImages(args); err != nil {
			return err
		}
	}

	bench, err := benchmark.NewDetectionBench(cmd.Context(), state.cfg.ToPipelineConfig(), backends, images)
	if err != nil {
		return err
	}
	if _, err := bench.RunAll(cmd.Context(), iterations); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	bench.Print(out)
	_, _ = fmt.Fprintln(out)
	bench.PrintAccuracy(out)

	for _, r := range bench.Results() {
		if r.Error != nil {
			return fmt.Errorf("benchmark %s failed: %w", r.Name, r.Error)
		}
	}
	return nil
}
