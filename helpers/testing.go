package helpers

import (
	"math/rand"
	"time"
)

// RandUnix is time seeded source for shuffled and fuzz-like tests.
func RandUnix() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
