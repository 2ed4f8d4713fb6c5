package source

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/temoto/linescope/helpers/atomic_clock"
	"github.com/temoto/linescope/log2"
)

// Watchdog warns once per silence episode when clock was not stamped for timeout.
type Watchdog struct {
	timeout time.Duration
	last    *atomic_clock.Clock
	log     *log2.Log
	started atomic_clock.Clock
	stale   int32
}

func NewWatchdog(timeout time.Duration, last *atomic_clock.Clock, log *log2.Log) *Watchdog {
	self := &Watchdog{timeout: timeout, last: last, log: log}
	self.started.SetNow()
	return self
}

// Check compares last stamp (or watchdog start) with now, returns true while stale.
func (self *Watchdog) Check(now time.Time) bool {
	last := self.last.UnixNano()
	if last == 0 {
		last = self.started.UnixNano()
	}
	since := time.Duration(now.UnixNano() - last)
	if since >= self.timeout {
		if atomic.CompareAndSwapInt32(&self.stale, 0, 1) {
			self.log.Warningf("no data received for %d seconds", int(since/time.Second))
		}
		return true
	}
	if atomic.CompareAndSwapInt32(&self.stale, 1, 0) {
		self.log.Infof("data resumed")
	}
	return false
}

func (self *Watchdog) Stale() bool { return atomic.LoadInt32(&self.stale) == 1 }

// Run checks at quarter of timeout until ctx is done.
func (self *Watchdog) Run(ctx context.Context) {
	tick := time.NewTicker(self.timeout / 4)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			self.Check(now)
		}
	}
}
