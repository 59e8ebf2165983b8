package todo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

func TestAddSplitsAndDropsBlanks(t *testing.T) {
	b := NewBook()
	added, err := b.Add(1, "read ch. 3, , flashcards ,essay")
	require.NoError(t, err)
	assert.Equal(t, []string{"read ch. 3", "flashcards", "essay"}, added)
	assert.Equal(t, added, texts(b.List(1)))

	_, err = b.Add(1, " , ")
	assert.ErrorIs(t, err, ErrEmptyTask)
	assert.Len(t, b.List(1), 3)
	assert.Empty(t, b.List(2))
}

func TestRemoveHighToLow(t *testing.T) {
	for _, raw := range []string{"3,1", "1 3", "1, 3", "3 1 3"} {
		t.Run(raw, func(t *testing.T) {
			b := NewBook()
			_, _ = b.Add(1, "a,b,c")
			removed, err := b.Remove(1, raw)
			require.NoError(t, err)
			assert.Equal(t, []string{"c", "a"}, texts(removed))
			assert.Equal(t, []string{"b"}, texts(b.List(1)))
		})
	}
}

func TestRemoveRejectsWithoutMutating(t *testing.T) {
	b := NewBook()
	_, _ = b.Add(1, "a,b,c")

	_, err := b.Remove(1, "1,4")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	var ie *IndexError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "4", ie.Raw)

	_, err = b.Remove(1, "0")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = b.Remove(1, "two")
	assert.ErrorIs(t, err, ErrBadIndex)
	_, err = b.Remove(1, "  ")
	assert.ErrorIs(t, err, ErrNoIndices)

	assert.Equal(t, []string{"a", "b", "c"}, texts(b.List(1)))
}

func TestRemoveOnEmptyList(t *testing.T) {
	_, err := NewBook().Remove(1, "1")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestMarkDone(t *testing.T) {
	b := NewBook()
	_, _ = b.Add(1, "a,b,c")

	marked, cleared, err := b.MarkDone(1, "1,3")
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.Equal(t, []string{"c", "a"}, texts(marked))

	list := b.List(1)
	assert.Equal(t, []bool{true, false, true}, []bool{list[0].Done, list[1].Done, list[2].Done})
	assert.InDelta(t, 66.67, Completion(list), 0.01)

	_, cleared, err = b.MarkDone(1, "2")
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Empty(t, b.List(1))
}

func TestMarkDoneInvalidLeavesListAlone(t *testing.T) {
	b := NewBook()
	_, _ = b.Add(1, "a,b")
	_, _, err := b.MarkDone(1, "1,x")
	assert.ErrorIs(t, err, ErrBadIndex)
	for _, it := range b.List(1) {
		assert.False(t, it.Done)
	}
}

func TestListsArePerUser(t *testing.T) {
	b := NewBook()
	_, _ = b.Add(1, "a")
	_, _ = b.Add(2, "b,c")
	_, _, err := b.MarkDone(1, "1")
	require.NoError(t, err)
	assert.Empty(t, b.List(1))
	assert.Len(t, b.List(2), 2)
}

func TestCompletion(t *testing.T) {
	assert.Zero(t, Completion(nil))
	assert.Equal(t, 50.0, Completion([]Item{{Done: true}, {}}))
}
