package preprocess

import (
	"image"

	"github.com/MeKo-Tech/docscan/internal/mempool"
)

// tan(22.5) and tan(67.5) bound the four quantised gradient directions.
const (
	tan22 = 0.4142135623730951
	tan67 = 2.414213562373095
)

// Canny runs Sobel gradients (L1 magnitude), non-maximum suppression and
// hysteresis on g. Pixels with magnitude above high seed edges, which then
// grow through 8-connected pixels above low. The result is a Width*Height
// plane with 255 on edges.
func Canny(g *image.Gray, low, high float64) []uint8 {
	g = compact(g)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if low > high {
		low, high = high, low
	}
	out := make([]uint8, w*h)
	if w < 3 || h < 3 {
		return out
	}

	gx, gy, mag := sobel(g.Pix, w, h)
	defer mempool.PutFloat64(gx)
	defer mempool.PutFloat64(gy)
	defer mempool.PutFloat64(mag)

	// 0 = suppressed, 1 = weak candidate, 2 = strong seed
	class := mempool.GetUint8(w * h)
	defer mempool.PutUint8(class)
	stack := make([]int, 0, 1024)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			var n1, n2 float64
			ax, ay := absf(gx[i]), absf(gy[i])
			switch {
			case ay < ax*tan22:
				n1, n2 = mag[i-1], mag[i+1]
			case ay > ax*tan67:
				n1, n2 = mag[i-w], mag[i+w]
			case (gx[i] < 0) == (gy[i] < 0):
				n1, n2 = mag[i-w-1], mag[i+w+1]
			default:
				n1, n2 = mag[i-w+1], mag[i+w-1]
			}
			// Strict on one side so plateaus yield a single-pixel line.
			if m > n1 && m >= n2 {
				if m > high {
					class[i] = 2
					stack = append(stack, i)
				} else {
					class[i] = 1
				}
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out[i] != 0 {
			continue
		}
		out[i] = 255
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if class[j] != 0 && out[j] == 0 {
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}

// sobel computes the 3x3 Sobel derivatives with replicated borders and
// their L1 magnitude. The planes come from mempool.
func sobel(pix []uint8, w, h int) ([]float64, []float64, []float64) {
	gx := mempool.GetFloat64(w * h)
	gy := mempool.GetFloat64(w * h)
	mag := mempool.GetFloat64(w * h)
	at := func(x, y int) float64 {
		x = clamp(x, 0, w-1)
		y = clamp(y, 0, h-1)
		return float64(pix[y*w+x])
	}
	for y := range h {
		for x := range w {
			tl, t, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			l, r := at(x-1, y), at(x+1, y)
			bl, b, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)
			dx := (tr + 2*r + br) - (tl + 2*l + bl)
			dy := (bl + 2*b + br) - (tl + 2*t + tr)
			i := y*w + x
			gx[i], gy[i] = dx, dy
			mag[i] = absf(dx) + absf(dy)
		}
	}
	return gx, gy, mag
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
