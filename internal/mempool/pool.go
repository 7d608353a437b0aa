// Package mempool keeps sized pools of scratch planes for the per-pixel
// passes of edge detection, which allocate several Width*Height buffers per
// image.
package mempool

import (
	"sync"
)

var (
	float64Pools sync.Map // key: size class (int), value: *sync.Pool
	uint8Pools   sync.Map
	boolPools    sync.Map
)

// sizeClass rounds n up to the next multiple of 4096 to reduce churn.
func sizeClass(n int) int {
	const step = 4096
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor[T any](pools *sync.Map, cls int) *sync.Pool {
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

func get[T any](pools *sync.Map, n int, zero bool) []T {
	cls := sizeClass(n)
	p := poolFor[T](pools, cls)
	if p == nil {
		return make([]T, n)
	}
	buf, ok := p.Get().([]T)
	if !ok || cap(buf) < cls {
		return make([]T, n)
	}
	buf = buf[:n]
	if zero {
		clear(buf)
	}
	return buf
}

func put[T any](pools *sync.Map, buf []T) {
	if buf == nil {
		return
	}
	// Only buffers that fill their class go back, so Get never sees a short one.
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		return
	}
	if p := poolFor[T](pools, cls); p != nil {
		p.Put(buf[:cap(buf)]) //nolint:staticcheck // slices are small headers
	}
}

// GetFloat64 returns a []float64 of length n. Contents are undefined; use it
// for planes that are fully overwritten.
func GetFloat64(n int) []float64 { return get[float64](&float64Pools, n, false) }

// PutFloat64 returns a buffer to the pool. Nil is ignored.
func PutFloat64(buf []float64) { put(&float64Pools, buf) }

// GetUint8 returns a zeroed []uint8 of length n.
func GetUint8(n int) []uint8 { return get[uint8](&uint8Pools, n, true) }

// PutUint8 returns a buffer to the pool. Nil is ignored.
func PutUint8(buf []uint8) { put(&uint8Pools, buf) }

// GetBool returns a zeroed []bool of length n.
func GetBool(n int) []bool { return get[bool](&boolPools, n, true) }

// PutBool returns a buffer to the pool. Nil is ignored.
func PutBool(buf []bool) { put(&boolPools, buf) }
