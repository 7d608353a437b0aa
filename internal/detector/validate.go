package detector

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

// ValidationConfig bounds the shapes accepted as a photographed document.
// Limits are exclusive.
type ValidationConfig struct {
	MinAspect          float64 // lower bound of longer-width / longer-height
	MaxAspect          float64
	MaxWidthAsymmetry  float64 // |top-bottom| / max(top, bottom)
	MaxHeightAsymmetry float64 // |left-right| / max(left, right)
	MaxAngleDeviation  float64 // degrees away from 90 per corner
}

// DefaultValidationConfig returns the empirically tuned limits.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MinAspect:          0.5,
		MaxAspect:          2.5,
		MaxWidthAsymmetry:  0.30,
		MaxHeightAsymmetry: 0.30,
		MaxAngleDeviation:  30,
	}
}

// ValidationError reports the first plausibility check a quadrilateral failed.
type ValidationError struct {
	Check string
	Value float64
	Limit float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("quadrilateral rejected by %s check: %.3f (limit %.3f)", e.Check, e.Value, e.Limit)
}

// Validate checks a clockwise-ordered quadrilateral against the limits.
func (c ValidationConfig) Validate(q geometry.Quad) error {
	top, bottom := q.TopWidth(), q.BottomWidth()
	left, right := q.LeftHeight(), q.RightHeight()
	maxW, maxH := math.Max(top, bottom), math.Max(left, right)

	aspect := math.Inf(1)
	if maxH > 0 {
		aspect = maxW / maxH
	}
	if aspect <= c.MinAspect {
		return &ValidationError{Check: "aspect", Value: aspect, Limit: c.MinAspect}
	}
	if aspect >= c.MaxAspect {
		return &ValidationError{Check: "aspect", Value: aspect, Limit: c.MaxAspect}
	}

	if asym := asymmetry(top, bottom); asym >= c.MaxWidthAsymmetry {
		return &ValidationError{Check: "width symmetry", Value: asym, Limit: c.MaxWidthAsymmetry}
	}
	if asym := asymmetry(left, right); asym >= c.MaxHeightAsymmetry {
		return &ValidationError{Check: "height symmetry", Value: asym, Limit: c.MaxHeightAsymmetry}
	}

	for _, a := range q.CornerAngles() {
		if dev := math.Abs(a - 90); dev >= c.MaxAngleDeviation {
			return &ValidationError{Check: "corner angle", Value: a, Limit: c.MaxAngleDeviation}
		}
	}
	return nil
}

func asymmetry(a, b float64) float64 {
	m := math.Max(a, b)
	if m == 0 {
		return math.Inf(1)
	}
	return math.Abs(a-b) / m
}
