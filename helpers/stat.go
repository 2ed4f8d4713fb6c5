package helpers

import (
	"expvar"
	"io"

	"github.com/temoto/linescope/helpers/atomic_clock"
)

// StatReader counts bytes read into V and stamps Last on every non-empty read.
// Serial source wraps the port with it, watchdog checks Last for staleness.
type StatReader struct {
	R    io.Reader
	V    *expvar.Int
	Last atomic_clock.Clock
}

var _ io.Reader = &StatReader{}

func NewStatReader(r io.Reader, counter *expvar.Int) *StatReader {
	return &StatReader{R: r, V: counter}
}

func (sr *StatReader) Read(p []byte) (n int, err error) {
	n, err = sr.R.Read(p)
	if n > 0 {
		sr.Last.SetNow()
		if sr.V != nil {
			sr.V.Add(int64(n))
		}
	}
	return
}
