package detector

import "github.com/MeKo-Tech/docscan/internal/mempool"

// compStats summarises one connected component of an edge plane.
type compStats struct {
	label    int
	start    int // first pixel in raster order
	count    int
	minX     int
	minY     int
	maxX     int
	maxY     int
	external bool // touches the background reachable from the image border
}

// eight-neighbourhood offsets in clockwise order on screen, starting east.
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// connectedComponents labels the 8-connected components of the non-zero
// pixels in mask. Labels start at 1; 0 marks background.
func connectedComponents(mask []uint8, w, h int) ([]compStats, []int) {
	labels := make([]int, w*h)
	var comps []compStats
	queue := make([]int, 0, 256)
	label := 0

	for y := range h {
		for x := range w {
			idx := y*w + x
			if mask[idx] == 0 || labels[idx] != 0 {
				continue
			}
			label++
			st := compStats{label: label, start: idx, minX: x, minY: y, maxX: x, maxY: y}
			labels[idx] = label
			queue = append(queue[:0], idx)
			for len(queue) > 0 {
				ci := queue[0]
				queue = queue[1:]
				cx, cy := ci%w, ci/w
				st.add(cx, cy)
				for k := range 8 {
					nx, ny := cx+ndx[k], cy+ndy[k]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if mask[ni] != 0 && labels[ni] == 0 {
						labels[ni] = label
						queue = append(queue, ni)
					}
				}
			}
			comps = append(comps, st)
		}
	}
	markExternal(mask, labels, comps, w, h)
	return comps, labels
}

func (st *compStats) add(x, y int) {
	st.count++
	st.minX = min(st.minX, x)
	st.minY = min(st.minY, y)
	st.maxX = max(st.maxX, x)
	st.maxY = max(st.maxY, y)
}

// markExternal flags components that are not enclosed by another component:
// those touching the image border or 4-adjacent to background that can be
// reached from the border without crossing an edge pixel.
func markExternal(mask []uint8, labels []int, comps []compStats, w, h int) {
	outside := mempool.GetBool(w * h)
	defer mempool.PutBool(outside)
	queue := make([]int, 0, 2*(w+h))
	seed := func(x, y int) {
		i := y*w + x
		if mask[i] == 0 && !outside[i] {
			outside[i] = true
			queue = append(queue, i)
		} else if mask[i] != 0 {
			comps[labels[i]-1].external = true
		}
	}
	for x := range w {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := range h {
		seed(0, y)
		seed(w-1, y)
	}

	dx := [4]int{1, -1, 0, 0}
	dy := [4]int{0, 0, 1, -1}
	for len(queue) > 0 {
		ci := queue[0]
		queue = queue[1:]
		cx, cy := ci%w, ci/w
		for k := range 4 {
			nx, ny := cx+dx[k], cy+dy[k]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			ni := ny*w + nx
			if mask[ni] != 0 {
				comps[labels[ni]-1].external = true
				continue
			}
			if !outside[ni] {
				outside[ni] = true
				queue = append(queue, ni)
			}
		}
	}
}
