package detector

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

func TestDefaultCorners(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want geometry.Quad
	}{
		{
			name: "portrait",
			w:    400, h: 600,
			want: geometry.Quad{{X: 40, Y: 40}, {X: 360, Y: 40}, {X: 360, Y: 560}, {X: 40, Y: 560}},
		},
		{
			name: "landscape",
			w:    1000, h: 500,
			want: geometry.Quad{{X: 100, Y: 100}, {X: 900, Y: 100}, {X: 900, Y: 400}, {X: 100, Y: 400}},
		},
		{
			name: "very wide falls back to height margin",
			w:    1000, h: 100,
			want: geometry.Quad{{X: 10, Y: 10}, {X: 990, Y: 10}, {X: 990, Y: 90}, {X: 10, Y: 90}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertQuadNear(t, tt.want, DefaultCorners(tt.w, tt.h), 1e-9)
		})
	}
}

func TestInsetCorners_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("inset rectangle is ordered and inside the image", prop.ForAll(
		func(w, h int, ratio float64) bool {
			q := InsetCorners(w, h, ratio)
			for _, p := range q {
				if p.X < 0 || p.Y < 0 || p.X > float64(w) || p.Y > float64(h) {
					return false
				}
			}
			return q.TopLeft().X < q.TopRight().X &&
				q.TopLeft().Y < q.BottomLeft().Y &&
				q.BottomRight().X == q.TopRight().X &&
				q.BottomRight().Y == q.BottomLeft().Y &&
				geometry.SortClockwise(q) == q
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 5000),
		gen.Float64Range(0, 0.45),
	))

	properties.TestingRun(t)
}
