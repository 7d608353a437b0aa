// Package benchmark times the scanning pipeline per edge-map backend on the
// synthetic scenes or on user images.
package benchmark

import (
	"context"
	"fmt"
	"image"
	"io"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/MeKo-Tech/docscan/internal/common"
	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// Result is the outcome of one benchmark case.
type Result struct {
	Name        string
	Iterations  int
	Duration    time.Duration
	AllocBytes  uint64
	AllocObject uint64
	Error       error
}

// Avg is the mean duration per iteration.
func (r Result) Avg() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	perOp := uint64(0)
	if r.Iterations > 0 {
		perOp = r.AllocBytes / uint64(r.Iterations) //nolint:gosec // G115: iterations is positive
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB/op",
		r.Name, r.Iterations, r.Avg(), r.Duration, perOp/1024)
}

// Case is a named function timed by the Suite.
type Case struct {
	Name string
	Func func() error
}

// Suite runs cases sequentially and keeps the last results.
type Suite struct {
	cases   []Case
	results []Result
	mu      sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite { return &Suite{} }

// Add registers a case.
func (s *Suite) Add(name string, fn func() error) {
	s.cases = append(s.cases, Case{Name: name, Func: fn})
}

// Run runs the case called name.
func (s *Suite) Run(name string, iterations int) Result {
	for _, c := range s.cases {
		if c.Name == name {
			return runCase(c, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs every case; ctx is checked between cases.
func (s *Suite) RunAll(ctx context.Context, iterations int) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make([]Result, 0, len(s.cases))
	for _, c := range s.cases {
		if err := ctx.Err(); err != nil {
			return s.results, err
		}
		s.results = append(s.results, runCase(c, iterations))
	}
	return s.results, nil
}

// Results returns the results of the last RunAll.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// Print writes one line per result.
func (s *Suite) Print(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

func runCase(c Case, iterations int) Result {
	runtime.GC()
	before := common.ReadMemoryStats()
	sw := common.StartStopwatch()

	res := Result{Name: c.Name, Iterations: iterations}
	for i := range iterations {
		if err := c.Func(); err != nil {
			res.Error = err
			res.Iterations = i
			break
		}
	}
	res.Duration = sw.Elapsed()
	res.AllocBytes, res.AllocObject = common.ReadMemoryStats().AllocatedSince(before)
	return res
}

// Image is a benchmark input. Corners holds the ground truth when known.
type Image struct {
	Name    string
	Img     image.Image
	Corners *geometry.Quad
}

// SceneImages returns the synthetic scenes with their true corners.
func SceneImages() []Image {
	scenes := testutil.Scenes()
	out := make([]Image, len(scenes))
	for i, s := range scenes {
		q := geometry.Quad(s.Corners)
		out[i] = Image{Name: s.Name, Img: s.Render(), Corners: &q}
	}
	return out
}

// LoadImages reads user images; their corners are unknown.
func LoadImages(paths []string) ([]Image, error) {
	out := make([]Image, 0, len(paths))
	for _, p := range paths {
		img, _, err := utils.LoadImage(p)
		if err != nil {
			return nil, err
		}
		out = append(out, Image{Name: p, Img: img})
	}
	return out, nil
}

// Accuracy records how one backend did on one image.
type Accuracy struct {
	Backend  string
	Image    string
	Strategy detector.Strategy
	// MaxCornerError is the largest corner distance to the ground truth in
	// pixels, or -1 when the truth is unknown.
	MaxCornerError float64
}

// DetectionBench times detection with one case per backend and image and
// keeps the accuracy of each case's first run.
type DetectionBench struct {
	*Suite

	mu       sync.Mutex
	accuracy []Accuracy
}

// NewDetectionBench builds a pipeline per backend and registers the cases.
func NewDetectionBench(ctx context.Context, cfg pipeline.Config, backends []string, images []Image) (*DetectionBench, error) {
	b := &DetectionBench{Suite: NewSuite()}
	for _, backend := range backends {
		c := cfg
		c.Detector.Backend = backend
		pl, err := pipeline.New(c)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", backend, err)
		}
		for _, im := range images {
			var once sync.Once
			b.Add(backend+"/"+im.Name, func() error {
				res, err := pl.Detect(ctx, im.Img)
				if err != nil {
					return err
				}
				once.Do(func() { b.record(backend, im, res) })
				return nil
			})
		}
	}
	return b, nil
}

func (b *DetectionBench) record(backend string, im Image, res *detector.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accuracy = append(b.accuracy, Accuracy{
		Backend:        backend,
		Image:          im.Name,
		Strategy:       res.Strategy,
		MaxCornerError: cornerError(res.Corners, im.Corners),
	})
}

// Accuracy returns the recorded accuracy rows in run order.
func (b *DetectionBench) Accuracy() []Accuracy {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.accuracy)
}

// PrintAccuracy writes the strategy and corner error per case.
func (b *DetectionBench) PrintAccuracy(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Detection Accuracy:")
	for _, a := range b.Accuracy() {
		if a.MaxCornerError < 0 {
			_, _ = fmt.Fprintf(w, "  %s/%s: %s\n", a.Backend, a.Image, a.Strategy)
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s/%s: %s, max corner error %.1fpx\n", a.Backend, a.Image, a.Strategy, a.MaxCornerError)
	}
}

func cornerError(got geometry.Quad, want *geometry.Quad) float64 {
	if want == nil {
		return -1
	}
	worst := 0.0
	for i := range got {
		worst = max(worst, geometry.Distance(got[i], want[i]))
	}
	return worst
}
