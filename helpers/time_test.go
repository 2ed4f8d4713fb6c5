package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3*time.Second, IntSecondDefault(0, 3*time.Second))
	assert.Equal(t, 5*time.Second, IntSecondDefault(5, 3*time.Second))
	assert.Equal(t, 200*time.Millisecond, IntMillisecondDefault(0, 200*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, IntMillisecondDefault(20, 200*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, FloatSecond(0.1))
	assert.Equal(t, 1500*time.Microsecond, FloatSecond(0.0015))
}
