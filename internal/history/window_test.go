package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowAppendBelowCapacity(t *testing.T) {
	w := NewWindow(5)
	assert.Equal(t, 0, w.Len())
	assert.False(t, w.Full())

	w.Append(1)
	w.Append(2)
	w.Append(3)

	assert.Equal(t, 3, w.Len())
	assert.False(t, w.Full())
	assert.Equal(t, []float64{1, 2, 3}, w.Prices())

	latest, ok := w.Latest()
	require.True(t, ok)
	assert.Equal(t, 3.0, latest)
}

func TestWindowEvictsOldestAtCapacity(t *testing.T) {
	w := NewWindow(3)
	for i := 1; i <= 3; i++ {
		w.Append(float64(i))
	}
	assert.True(t, w.Full())

	w.Append(4)
	assert.Equal(t, 3, w.Len(), "length never exceeds capacity")
	assert.Equal(t, []float64{2, 3, 4}, w.Prices())

	w.Append(5)
	w.Append(6)
	assert.Equal(t, []float64{4, 5, 6}, w.Prices())
}

// Whatever the number of appends, length stays bounded by capacity and
// eviction is strictly FIFO.
func TestWindowBoundedAfterManyAppends(t *testing.T) {
	const capacity = 7
	w := NewWindow(capacity)

	for i := 0; i < 1000; i++ {
		w.Append(float64(i))
		require.LessOrEqual(t, w.Len(), capacity)
	}

	want := make([]float64, capacity)
	for i := range want {
		want[i] = float64(1000 - capacity + i)
	}
	assert.Equal(t, want, w.Prices())
}

func TestWindowFill(t *testing.T) {
	w := NewWindow(4)

	err := w.Fill([]float64{1, 2, 3})
	assert.Error(t, err, "short fill rejected")

	require.NoError(t, w.Fill([]float64{1, 2, 3, 4}))
	assert.True(t, w.Full())
	assert.Equal(t, []float64{1, 2, 3, 4}, w.Prices())

	// Appends after a fill keep evicting FIFO.
	w.Append(5)
	assert.Equal(t, []float64{2, 3, 4, 5}, w.Prices())
}

func TestWindowLatestEmpty(t *testing.T) {
	w := NewWindow(2)
	_, ok := w.Latest()
	assert.False(t, ok)
}
