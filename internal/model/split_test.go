package model

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(100, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	all := append(append([]int{}, train...), test...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	train2, test2, err := TrainTestSplit(100, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test3, err := TrainTestSplit(100, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test, test3)
}

func TestTrainTestSplit_Small(t *testing.T) {
	train, test, err := TrainTestSplit(3, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 1)
	assert.Len(t, train, 2)

	train, test, err = TrainTestSplit(1, 0.2, 42)
	require.NoError(t, err)
	assert.Empty(t, test)
	assert.Equal(t, []int{0}, train)

	train, test, err = TrainTestSplit(5, 0, 42)
	require.NoError(t, err)
	assert.Empty(t, test)
	assert.Len(t, train, 5)
}

func TestTrainTestSplit_BadRatio(t *testing.T) {
	_, _, err := TrainTestSplit(10, 1, 42)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(10, -0.1, 42)
	assert.Error(t, err)
}
