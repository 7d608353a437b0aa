// Package common holds small measurement helpers shared by the scanning
// stages and the benchmark tooling.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Lap is one named interval of a Stopwatch.
type Lap struct {
	Name     string
	Duration time.Duration
}

// Stopwatch measures a run split into consecutive named laps.
type Stopwatch struct {
	start time.Time
	last  time.Time
	laps  []Lap
	now   func() time.Time
}

// StartStopwatch starts a stopwatch at the current time.
func StartStopwatch() *Stopwatch {
	return startStopwatchAt(time.Now)
}

func startStopwatchAt(now func() time.Time) *Stopwatch {
	t := now()
	return &Stopwatch{start: t, last: t, now: now}
}

// Lap closes the current interval under name and returns its length.
func (s *Stopwatch) Lap(name string) time.Duration {
	t := s.now()
	d := t.Sub(s.last)
	s.last = t
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Elapsed is the time since the stopwatch started.
func (s *Stopwatch) Elapsed() time.Duration { return s.now().Sub(s.start) }

// Laps returns the recorded laps in order.
func (s *Stopwatch) Laps() []Lap { return s.laps }

// LapDuration returns the summed length of the laps called name.
func (s *Stopwatch) LapDuration(name string) time.Duration {
	var d time.Duration
	for _, l := range s.laps {
		if l.Name == name {
			d += l.Duration
		}
	}
	return d
}

// String renders "name=dur ... total=dur".
func (s *Stopwatch) String() string {
	var b strings.Builder
	for _, l := range s.laps {
		fmt.Fprintf(&b, "%s=%v ", l.Name, l.Duration)
	}
	fmt.Fprintf(&b, "total=%v", s.Elapsed())
	return b.String()
}
