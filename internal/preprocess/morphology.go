package preprocess

// Dilate grows set pixels of a binary plane with a k x k square element.
// Pixels outside the plane are ignored.
func Dilate(mask []uint8, w, h, k int) []uint8 {
	return rankFilter(mask, w, h, k, func(a, b uint8) bool { return a > b })
}

// Erode shrinks set pixels of a binary plane with a k x k square element.
// Pixels outside the plane are ignored.
func Erode(mask []uint8, w, h, k int) []uint8 {
	return rankFilter(mask, w, h, k, func(a, b uint8) bool { return a < b })
}

// Close dilates then erodes, bridging gaps narrower than the element.
func Close(mask []uint8, w, h, k int) []uint8 {
	return Erode(Dilate(mask, w, h, k), w, h, k)
}

// rankFilter applies a square max or min filter as two 1-D passes, which is
// exact for rectangular structuring elements.
func rankFilter(mask []uint8, w, h, k int, better func(a, b uint8) bool) []uint8 {
	out := make([]uint8, len(mask))
	copy(out, mask)
	if k <= 1 || w == 0 || h == 0 {
		return out
	}
	half := k / 2

	tmp := make([]uint8, len(mask))
	for y := range h {
		row := y * w
		for x := range w {
			v := mask[row+x]
			for dx := max(0, x-half); dx <= min(w-1, x+half); dx++ {
				if better(mask[row+dx], v) {
					v = mask[row+dx]
				}
			}
			tmp[row+x] = v
		}
	}
	for y := range h {
		for x := range w {
			v := tmp[y*w+x]
			for dy := max(0, y-half); dy <= min(h-1, y+half); dy++ {
				if better(tmp[dy*w+x], v) {
					v = tmp[dy*w+x]
				}
			}
			out[y*w+x] = v
		}
	}
	return out
}
