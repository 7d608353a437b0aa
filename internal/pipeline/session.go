package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// State is the position of a Session in the scan workflow:
//
//	AwaitingInput -> Detecting -> CornersReady -> Rectifying -> Done
//
// Retry leaves CornersReady or Done for Detecting again.
type State int

const (
	StateAwaitingInput State = iota
	StateDetecting
	StateCornersReady
	StateRectifying
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting-input"
	case StateDetecting:
		return "detecting"
	case StateCornersReady:
		return "corners-ready"
	case StateRectifying:
		return "rectifying"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CornerSource tells whether the current corners came from detection or
// were placed by the user.
type CornerSource string

const (
	CornersAuto         CornerSource = "auto"
	CornersUserAdjusted CornerSource = "user-adjusted"
)

// ErrInvalidTransition is returned when an operation is not allowed in the
// session's current state.
var ErrInvalidTransition = errors.New("invalid session state transition")

// Session holds the caller-side state of scanning one image: the source
// image, the current corners and the rectified output. All methods are safe
// for concurrent use; operations that would overlap a running detection or
// rectification fail with ErrInvalidTransition.
type Session struct {
	p *Pipeline

	mu        sync.Mutex
	state     State
	img       image.Image
	detection *detector.Result
	corners   geometry.Quad
	source    CornerSource
	output    *image.NRGBA
}

// NewSession starts a session in StateAwaitingInput.
func (p *Pipeline) NewSession() *Session {
	return &Session{p: p}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transitionError(op string) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, op, s.state)
}

// Detect hands img to the session and runs detection. Detection always ends
// in StateCornersReady; only cancellation or an empty image return the
// session to StateAwaitingInput with an error.
func (s *Session) Detect(ctx context.Context, img image.Image) (*detector.Result, error) {
	s.mu.Lock()
	if s.state != StateAwaitingInput {
		err := s.transitionError("detect")
		s.mu.Unlock()
		return nil, err
	}
	s.img = img
	s.beginDetection()
	s.mu.Unlock()
	return s.runDetection(ctx, img, StateAwaitingInput)
}

// Retry discards the current corners and any output and detects again.
// If the retried detection is cancelled the session falls back to the
// default corners.
func (s *Session) Retry(ctx context.Context) (*detector.Result, error) {
	s.mu.Lock()
	if s.state != StateCornersReady && s.state != StateDone {
		err := s.transitionError("retry")
		s.mu.Unlock()
		return nil, err
	}
	prev, img := s.state, s.img
	s.beginDetection()
	s.mu.Unlock()
	return s.runDetection(ctx, img, prev)
}

// beginDetection claims the session for a detection run. s.mu must be held.
func (s *Session) beginDetection() {
	s.state = StateDetecting
	s.corners, s.detection, s.output, s.source = geometry.Quad{}, nil, nil, ""
}

func (s *Session) runDetection(ctx context.Context, img image.Image, prev State) (*detector.Result, error) {
	res, err := s.p.Detect(ctx, img)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if prev == StateAwaitingInput {
			s.img = nil
			s.state = StateAwaitingInput
			return nil, err
		}
		b := img.Bounds()
		s.corners = detector.InsetCorners(b.Dx(), b.Dy(), s.p.cfg.Detector.InsetRatio)
		s.source = CornersAuto
		s.state = StateCornersReady
		return nil, err
	}
	s.detection = res
	s.corners = res.Corners
	s.source = CornersAuto
	s.state = StateCornersReady
	return res, nil
}

// Corners returns the current corners and where they came from.
func (s *Session) Corners() (geometry.Quad, CornerSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCornersReady && s.state != StateDone {
		return geometry.Quad{}, "", s.transitionError("corners")
	}
	return s.corners, s.source, nil
}

// Detection returns the detection result behind the auto corners, nil after
// a retry failed or before detection.
func (s *Session) Detection() *detector.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detection
}

// SetCorners replaces all four corners. They are kept in the given order;
// the rectifier re-derives corner roles.
func (s *Session) SetCorners(pts []utils.Point) error {
	q, err := geometry.QuadFromPoints(pts)
	if err != nil {
		return fmt.Errorf("%w: %w", rectify.ErrInvalidCorners, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCornersReady {
		return s.transitionError("set corners")
	}
	s.corners = q
	s.source = CornersUserAdjusted
	return nil
}

// NearestCorner returns the index of the corner closest to p, if it lies
// within radius.
func (s *Session) NearestCorner(p utils.Point, radius float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCornersReady {
		return -1, false
	}
	best, bestDist := -1, math.Inf(1)
	for i, c := range s.corners {
		if d := geometry.Distance(c, p); d < bestDist {
			best, bestDist = i, d
		}
	}
	if bestDist > radius {
		return -1, false
	}
	return best, true
}

// MoveCorner places corner i at p, clamped to the image.
func (s *Session) MoveCorner(i int, p utils.Point) (utils.Point, error) {
	if i < 0 || i > 3 {
		return utils.Point{}, fmt.Errorf("corner index %d out of range", i)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCornersReady {
		return utils.Point{}, s.transitionError("move corner")
	}
	b := s.img.Bounds()
	p = utils.ClampPoint(p, b.Dx(), b.Dy())
	s.corners[i] = p
	s.source = CornersUserAdjusted
	return p, nil
}

// Rectify warps the image with the current corners and ends the session in
// StateDone. On failure the session stays in StateCornersReady so the
// corners can be corrected.
func (s *Session) Rectify(ctx context.Context) (*image.NRGBA, error) {
	s.mu.Lock()
	if s.state != StateCornersReady {
		err := s.transitionError("rectify")
		s.mu.Unlock()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state = StateRectifying
	img, corners := s.img, s.corners
	s.mu.Unlock()

	out, err := s.p.Rectify(img, corners.Points())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateCornersReady
		return nil, err
	}
	s.output = out
	s.state = StateDone
	return out, nil
}

// Output returns the rectified image once the session is done.
func (s *Session) Output() (*image.NRGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDone {
		return nil, s.transitionError("output")
	}
	return s.output, nil
}

// Reset drops the image and returns to StateAwaitingInput.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDetecting || s.state == StateRectifying {
		return s.transitionError("reset")
	}
	s.state = StateAwaitingInput
	s.img, s.detection, s.output = nil, nil, nil
	s.corners, s.source = geometry.Quad{}, ""
	return nil
}
