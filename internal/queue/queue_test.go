package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Winch int
	Force float32
}

func TestQueue_PushPop(t *testing.T) {
	q := New[sample](0)
	assert.True(t, q.Empty())

	_, ok := q.Pop()
	assert.False(t, ok)

	assert.Equal(t, 0, q.Push(sample{Winch: 1}, sample{Winch: 2}))
	assert.Equal(t, 2, q.Len())

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, first.Winch)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_DropsOldestBeyondLimit(t *testing.T) {
	q := New[int](3)

	assert.Equal(t, 0, q.Push(1, 2))
	assert.Equal(t, 1, q.Push(3, 4))
	assert.Equal(t, 2, q.Push(5, 6))

	assert.Equal(t, []int{4, 5, 6}, q.GetAndEmpty())
	assert.True(t, q.Empty())
}

func TestQueue_GetAndEmptyReturnsIndependentSlice(t *testing.T) {
	q := New[int](0)
	q.Push(1, 2, 3)

	got := q.GetAndEmpty()
	q.Push(9)

	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, []int{9}, q.GetAndEmpty())
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int](0)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2000, q.Len())
}
