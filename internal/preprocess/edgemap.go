package preprocess

import "image"

// EdgeMap is the output of a pre-processing pass. Both planes are row-major,
// Width*Height bytes, 255 on edge pixels and 0 elsewhere.
type EdgeMap struct {
	Width  int
	Height int

	// Edges is the raw Canny output.
	Edges []uint8
	// Closed is Edges after the morphological close.
	Closed []uint8

	// ScaleX and ScaleY map edge-map coordinates back to the source image.
	ScaleX float64
	ScaleY float64

	// Thresholds actually used by Canny.
	Low  float64
	High float64
}

// SourceSize returns the dimensions of the image the map was computed from.
func (m *EdgeMap) SourceSize() (int, int) {
	return int(float64(m.Width)*m.ScaleX + 0.5), int(float64(m.Height)*m.ScaleY + 0.5)
}

// EdgesImage wraps the Canny plane as a gray image, sharing memory.
func (m *EdgeMap) EdgesImage() *image.Gray { return m.plane(m.Edges) }

// ClosedImage wraps the closed plane as a gray image, sharing memory.
func (m *EdgeMap) ClosedImage() *image.Gray { return m.plane(m.Closed) }

func (m *EdgeMap) plane(pix []uint8) *image.Gray {
	return &image.Gray{Pix: pix, Stride: m.Width, Rect: image.Rect(0, 0, m.Width, m.Height)}
}

// CountEdges returns the number of set pixels in the Canny plane.
func (m *EdgeMap) CountEdges() int {
	n := 0
	for _, v := range m.Edges {
		if v != 0 {
			n++
		}
	}
	return n
}
