package series

import (
	"fmt"
	"math"

	"github.com/juju/errors"
)

const DefaultInitialCapacity = 256

// Bound limits buffer either by point count or by trailing duration, never both.
type Bound struct {
	Count int
	// Window in seconds, points older than latest-Window are evicted.
	Window float64
	// Initial storage for Window bound, grows on demand.
	Initial int
}

func Count(n int) Bound             { return Bound{Count: n} }
func Duration(window float64) Bound { return Bound{Window: window} }

func (b Bound) Validate() error {
	switch {
	case b.Count < 0:
		return errors.NotValidf("series count=%d", b.Count)
	case b.Window < 0 || math.IsNaN(b.Window) || math.IsInf(b.Window, 0):
		return errors.NotValidf("series window=%g", b.Window)
	case b.Count > 0 && b.Window > 0:
		return errors.NotValidf("series bound both count=%d and window=%g", b.Count, b.Window)
	case b.Count == 0 && b.Window == 0:
		return errors.NotValidf("series bound empty")
	case b.Initial < 0:
		return errors.NotValidf("series initial=%d", b.Initial)
	}
	return nil
}

func (b Bound) String() string {
	if b.Count > 0 {
		return fmt.Sprintf("count=%d", b.Count)
	}
	return fmt.Sprintf("window=%gs", b.Window)
}
