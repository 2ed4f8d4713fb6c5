// Package series is time-ordered sample buffer bounded by count or trailing
// duration, with inter-arrival interval window and sampling rate estimate.
//
// Within one epoch timestamps never decrease. Appending a point older than
// the last one starts new epoch: buffer and intervals are cleared first.
package series

import (
	"time"

	"github.com/temoto/linescope/helpers"
	"github.com/temoto/linescope/helpers/ring"
)

type Point struct {
	Time  float64 `json:"t"`
	Value float64 `json:"v"`
}

// gap is inter-arrival interval leading into point at time `at`.
type gap struct {
	at float64
	dt float64
}

// Buffer is not safe for concurrent use.
type Buffer struct {
	bound  Bound
	points *ring.Ring[Point]
	gaps   *ring.Ring[gap]
	epoch  uint64
}

func New(b Bound) (*Buffer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	self := &Buffer{bound: b}
	if b.Count > 0 {
		self.points = ring.New[Point](b.Count)
		gapCap := b.Count - 1
		if gapCap < 1 {
			gapCap = 1
		}
		self.gaps = ring.New[gap](gapCap)
	} else {
		initial := b.Initial
		if initial == 0 {
			initial = DefaultInitialCapacity
		}
		self.points = ring.NewGrowing[Point](initial)
		self.gaps = ring.NewGrowing[gap](initial)
	}
	return self, nil
}

// Append returns true when p violated ordering and started new epoch.
func (self *Buffer) Append(p Point) (reset bool) {
	last, hasLast := self.points.Back()
	if hasLast && p.Time < last.Time {
		self.Reset()
		reset, hasLast = true, false
	}
	self.points.Push(p)
	if hasLast {
		if dt := p.Time - last.Time; dt > 0 {
			self.gaps.Push(gap{at: p.Time, dt: dt})
		}
	}
	if self.bound.Window > 0 {
		self.Prune(p.Time)
	} else {
		self.trimGaps()
	}
	return reset
}

// Prune evicts points older than latest-Window. No-op for count bound.
func (self *Buffer) Prune(latest float64) {
	if self.bound.Window <= 0 {
		return
	}
	cutoff := latest - self.bound.Window
	for {
		first, ok := self.points.Front()
		if !ok || first.Time >= cutoff {
			break
		}
		self.points.PopFront()
	}
	self.trimGaps()
}

// Gap into the first point refers to evicted predecessor.
func (self *Buffer) trimGaps() {
	first, ok := self.points.Front()
	if !ok {
		self.gaps.Clear()
		return
	}
	for {
		g, ok := self.gaps.Front()
		if !ok || g.at > first.Time {
			return
		}
		self.gaps.PopFront()
	}
}

func (self *Buffer) Reset() {
	self.points.Clear()
	self.gaps.Clear()
	self.epoch++
}

func (self *Buffer) Bound() Bound { return self.bound }
func (self *Buffer) Len() int     { return self.points.Len() }

// Epoch counts resets since construction.
func (self *Buffer) Epoch() uint64 { return self.epoch }

func (self *Buffer) Latest() (Point, bool) { return self.points.Back() }

// Points returns a copy, oldest first.
func (self *Buffer) Points() []Point { return self.points.Slice() }

func (self *Buffer) AppendPoints(dst []Point) []Point { return self.points.AppendTo(dst) }

// Intervals returns inter-arrival gaps in seconds, oldest first.
func (self *Buffer) Intervals() []float64 {
	out := make([]float64, 0, self.gaps.Len())
	for i := 0; i < self.gaps.Len(); i++ {
		out = append(out, self.gaps.At(i).dt)
	}
	return out
}

// Rate is average sampling frequency (count-1)/(last-first).
// Unavailable with less than 2 points or zero duration.
func (self *Buffer) Rate() (float64, bool) {
	n := self.points.Len()
	if n < 2 {
		return 0, false
	}
	first, _ := self.points.Front()
	last, _ := self.points.Back()
	d := last.Time - first.Time
	if d <= 0 {
		return 0, false
	}
	return float64(n-1) / d, true
}

// MeanInterval averages positive gaps, duplicate timestamps do not count.
func (self *Buffer) MeanInterval() (time.Duration, bool) {
	mean, ok := self.meanGap()
	if !ok {
		return 0, false
	}
	return helpers.FloatSecond(mean), true
}

// IntervalRate is 1/mean gap. Unlike Rate it ignores duplicate timestamps.
func (self *Buffer) IntervalRate() (float64, bool) {
	mean, ok := self.meanGap()
	if !ok {
		return 0, false
	}
	return 1 / mean, true
}

func (self *Buffer) meanGap() (float64, bool) {
	n := self.gaps.Len()
	if n == 0 {
		return 0, false
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += self.gaps.At(i).dt
	}
	return sum / float64(n), true
}
