package model

import (
	"fmt"
	"math/rand"
	"sort"
)

// TrainTestSplit shuffles row indices with seed and returns the train and
// test partitions. The test size is floor(n*testRatio), at least one row
// when n > 1 and testRatio > 0. Indices within each partition are sorted.
func TrainTestSplit(n int, testRatio float64, seed int64) (train, test []int, err error) {
	if testRatio < 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio must be in [0, 1), got %g", testRatio)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	nTest := int(float64(n) * testRatio)
	if nTest == 0 && testRatio > 0 && n > 1 {
		nTest = 1
	}
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test, nil
}
