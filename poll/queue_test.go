package poll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkedQueue_FIFOAcrossChunks(t *testing.T) {
	var q chunkedQueue[int]

	const n = queueChunkSize*3 + 7
	for i := 0; i < n; i++ {
		q.push(i)
	}
	require.Equal(t, n, q.len())

	for i := 0; i < n; i++ {
		v, ok := q.pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}

	_, ok := q.pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.len())
}

func TestChunkedQueue_InterleavedPushPop(t *testing.T) {
	var q chunkedQueue[string]

	q.push("a")
	q.push("b")
	v, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	q.push("c")
	assert.Equal(t, []string{"b", "c"}, q.drainTo(nil))
	assert.Equal(t, 0, q.len())

	// reuses the reset chunk
	q.push("d")
	assert.Equal(t, []string{"d"}, q.drainTo(nil))
}

func TestChunkedQueue_Clear(t *testing.T) {
	var q chunkedQueue[int]
	for i := 0; i < queueChunkSize+1; i++ {
		q.push(i)
	}
	q.clear()
	assert.Equal(t, 0, q.len())
	_, ok := q.pop()
	assert.False(t, ok)
}
