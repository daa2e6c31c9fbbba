package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_AppendAndPop(t *testing.T) {
	var q Queue

	assert.True(t, q.Append(Track{Title: "a"}))
	assert.False(t, q.Append(Track{Title: "b"}))
	assert.Equal(t, 2, q.Len())

	head, ok := q.Head()
	require.True(t, ok)
	assert.Equal(t, "a", head.Title)

	popped, ok := q.PopHead()
	require.True(t, ok)
	assert.Equal(t, "a", popped.Title)

	popped, ok = q.PopHead()
	require.True(t, ok)
	assert.Equal(t, "b", popped.Title)

	_, ok = q.PopHead()
	assert.False(t, ok)
	_, ok = q.Head()
	assert.False(t, ok)
}

func TestQueue_TruncateToHead(t *testing.T) {
	var q Queue
	assert.Zero(t, q.TruncateToHead())

	q.Append(Track{Title: "a"})
	assert.Zero(t, q.TruncateToHead())

	q.Append(Track{Title: "b"})
	q.Append(Track{Title: "c"})
	assert.Equal(t, 2, q.TruncateToHead())
	assert.Equal(t, 1, q.Len())

	// Appending after a truncate must not resurrect dropped entries
	q.Append(Track{Title: "d"})
	titles := []string{}
	for _, tr := range q.Snapshot() {
		titles = append(titles, tr.Title)
	}
	assert.Equal(t, []string{"a", "d"}, titles)
}

func TestQueue_SnapshotIsCopy(t *testing.T) {
	var q Queue
	q.Append(Track{Title: "a"})

	snap := q.Snapshot()
	snap[0].Title = "changed"

	head, _ := q.Head()
	assert.Equal(t, "a", head.Title)
}
