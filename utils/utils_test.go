package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchStrings(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	batches := BatchStrings(ids, 2)
	assert.Equal(t, 3, len(batches))
	assert.Equal(t, []string{"a", "b"}, batches[0])
	assert.Equal(t, []string{"c", "d"}, batches[1])
	assert.Equal(t, []string{"e"}, batches[2])

	assert.Equal(t, 1, len(BatchStrings(ids, 10)))
	assert.Equal(t, 0, len(BatchStrings([]string{}, 10)))
	assert.Equal(t, 0, len(BatchStrings(nil, 3)))
}

func TestUniqueStrings(t *testing.T) {
	res := UniqueStrings([]string{"1", "2"}, []string{"2", "3"}, nil)
	assert.Equal(t, []string{"1", "2", "3"}, res)

	assert.Equal(t, []string{}, UniqueStrings())
}

func TestContainsString(t *testing.T) {
	assert.True(t, ContainsString([]string{"x", "y"}, "y"))
	assert.False(t, ContainsString([]string{"x", "y"}, "z"))
}
