package helpers

import (
	"math"
	"time"
)

func IntSecondDefault(x int, def time.Duration) time.Duration {
	if x == 0 {
		return def
	}
	return time.Duration(x) * time.Second
}

func IntMillisecondDefault(x int, def time.Duration) time.Duration {
	if x == 0 {
		return def
	}
	return time.Duration(x) * time.Millisecond
}

// FloatSecond converts seconds to Duration rounding to nearest nanosecond.
func FloatSecond(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}
