package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameAllocatorDrainsPool(t *testing.T) {
	a := newNameAllocator([]string{"Fox", "Owl"})

	first, err := a.allocate()
	require.NoError(t, err)

	second, err := a.allocate()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Fox", "Owl"}, []string{first, second})
	assert.Equal(t, 0, a.remaining())

	_, err = a.allocate()
	assert.ErrorIs(t, err, ErrNamesExhausted)
}

func TestNameAllocatorNeverRepeats(t *testing.T) {
	a := newNameAllocator(animalNames)

	seen := make(map[string]bool, len(animalNames))
	for range animalNames {
		name, err := a.allocate()
		require.NoError(t, err)
		assert.False(t, seen[name], "name %q handed out twice", name)
		seen[name] = true
	}

	_, err := a.allocate()
	assert.ErrorIs(t, err, ErrNamesExhausted)
}

func TestNameAllocatorRemaining(t *testing.T) {
	a := newNameAllocator([]string{"Fox", "Owl", "Bat"})

	assert.Equal(t, 3, a.remaining())

	_, err := a.allocate()
	require.NoError(t, err)
	assert.Equal(t, 2, a.remaining())
}
