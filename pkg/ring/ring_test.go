package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferEvictsOldestFirst(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 3; i++ {
		_, evicted := b.Push(i)
		require.False(t, evicted)
	}

	old, evicted := b.Push(4)
	require.True(t, evicted)
	assert.Equal(t, 1, old)
	assert.Equal(t, []int{2, 3, 4}, b.Items())
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 3, b.Cap())
}

func TestBufferAt(t *testing.T) {
	b := New[string](2)
	b.Push("a")
	b.Push("b")
	b.Push("c")

	v, ok := b.At(0)
	require.True(t, ok)
	assert.Equal(t, "b", v)

	v, ok = b.At(-1)
	require.True(t, ok)
	assert.Equal(t, "c", v)

	_, ok = b.At(2)
	assert.False(t, ok)
	_, ok = b.At(-3)
	assert.False(t, ok)
}

func TestBufferLast(t *testing.T) {
	b := New[int](5)
	for i := 0; i < 7; i++ {
		b.Push(i)
	}
	assert.Equal(t, []int{4, 5, 6}, b.Last(3))
	assert.Equal(t, []int{2, 3, 4, 5, 6}, b.Last(10))
	assert.Empty(t, b.Last(0))
}

func TestBufferReset(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	b.Push(2)
	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Items())

	b.Push(9)
	assert.Equal(t, []int{9}, b.Items())
}

func TestNewClampsCapacity(t *testing.T) {
	b := New[int](0)
	assert.Equal(t, 1, b.Cap())
}
