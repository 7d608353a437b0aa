package common

import (
	"fmt"
	"runtime"
)

// MemoryStats is the subset of runtime.MemStats the benchmarks report.
type MemoryStats struct {
	Alloc      uint64
	TotalAlloc uint64
	Sys        uint64
	Mallocs    uint64
	NumGC      uint32
}

// ReadMemoryStats samples the runtime allocator.
func ReadMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		Mallocs:    m.Mallocs,
		NumGC:      m.NumGC,
	}
}

// AllocatedSince returns the bytes and objects allocated between before and m.
func (m MemoryStats) AllocatedSince(before MemoryStats) (bytes, objects uint64) {
	if m.TotalAlloc < before.TotalAlloc || m.Mallocs < before.Mallocs {
		return 0, 0
	}
	return m.TotalAlloc - before.TotalAlloc, m.Mallocs - before.Mallocs
}

func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d",
		m.Alloc/1024, m.TotalAlloc/1024, m.Sys/1024, m.NumGC)
}
