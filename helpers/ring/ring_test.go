package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBounded(t *testing.T) {
	t.Parallel()

	r := New[int](3)
	for i := 1; i <= 3; i++ {
		_, evicted := r.Push(i)
		assert.False(t, evicted)
	}
	assert.True(t, r.Full())
	old, evicted := r.Push(4)
	require.True(t, evicted)
	assert.Equal(t, 1, old)
	assert.Equal(t, []int{2, 3, 4}, r.Slice())
	front, _ := r.Front()
	back, _ := r.Back()
	assert.Equal(t, 2, front)
	assert.Equal(t, 4, back)
	assert.Equal(t, 3, r.At(1))
	assert.Equal(t, 3, r.Cap())
}

func TestRingWrapCopy(t *testing.T) {
	t.Parallel()

	r := New[string](4)
	for _, s := range []string{"a", "b", "c", "d", "e", "f"} {
		r.Push(s)
	}
	got := r.Slice()
	assert.Equal(t, []string{"c", "d", "e", "f"}, got)
	got[0] = "mutated"
	assert.Equal(t, "c", r.At(0))
	assert.Equal(t, []string{"x", "c", "d", "e", "f"}, r.AppendTo([]string{"x"}))
}

func TestRingGrowing(t *testing.T) {
	t.Parallel()

	r := NewGrowing[float64](2)
	r.Push(0.1)
	r.PopFront()
	for i := 0; i < 9; i++ {
		_, evicted := r.Push(float64(i))
		assert.False(t, evicted)
	}
	assert.Equal(t, 9, r.Len())
	assert.True(t, r.Cap() >= 9)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}, r.Slice())
}

func TestRingClear(t *testing.T) {
	t.Parallel()

	r := New[int](2)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Clear()
	assert.Equal(t, 0, r.Len())
	_, ok := r.Front()
	assert.False(t, ok)
	_, ok = r.PopFront()
	assert.False(t, ok)
	r.Push(7)
	assert.Equal(t, []int{7}, r.Slice())
}

func TestRingInvalid(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { New[int](0) })
	assert.Panics(t, func() { New[int](1).At(0) })
}
