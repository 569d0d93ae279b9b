package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue(t *testing.T) {
	t.Run("TopIsFarthest", func(t *testing.T) {
		pq := NewMax(4)
		pq.Push(Item{ID: 0, Distance: 2.0})
		pq.Push(Item{ID: 1, Distance: 5.0})
		pq.Push(Item{ID: 2, Distance: 1.0})

		top, ok := pq.Top()
		require.True(t, ok)
		assert.Equal(t, uint32(1), top.ID)
		assert.Equal(t, float32(5.0), top.Distance)
	})

	t.Run("PopOrder", func(t *testing.T) {
		pq := NewMax(4)
		for _, d := range []float32{3, 1, 4, 2} {
			pq.Push(Item{Distance: d})
		}

		var got []float32
		for pq.Len() > 0 {
			item, ok := pq.Pop()
			require.True(t, ok)
			got = append(got, item.Distance)
		}
		assert.Equal(t, []float32{4, 3, 2, 1}, got)
	})

	t.Run("Empty", func(t *testing.T) {
		pq := NewMax(0)
		_, ok := pq.Top()
		assert.False(t, ok)
		_, ok = pq.Pop()
		assert.False(t, ok)
	})

	t.Run("Reset", func(t *testing.T) {
		pq := NewMax(2)
		pq.Push(Item{Distance: 1})
		pq.Reset()
		assert.Equal(t, 0, pq.Len())
	})
}
