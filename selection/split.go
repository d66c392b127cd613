// Package selection partitions datasets into train and test row sets.
package selection

import (
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// SplitResult holds disjoint train and test row indices that together cover
// every original row. Both slices are in ascending (original) row order.
type SplitResult struct {
	Train []int
	Test  []int
}

// TestSize returns floor(n * testFraction), the number of test rows a split
// of n rows produces.
func TestSize(n int, testFraction float64) int {
	return int(math.Floor(float64(n) * testFraction))
}

// TrainTestSplit deterministically partitions n rows. The row indices are
// shuffled by a pseudo-random permutation seeded with seed; the first
// floor(n*testFraction) shuffled indices form the test set and the remainder
// the train set. The same (n, testFraction, seed) always yields the same split.
func TrainTestSplit(n int, testFraction float64, seed int64) (SplitResult, error) {
	if math.IsNaN(testFraction) || testFraction <= 0 || testFraction >= 1 {
		return SplitResult{}, errors.NewValidationError("test_fraction", "must be in the open interval (0, 1)", testFraction)
	}
	if n < 2 {
		return SplitResult{}, errors.NewInsufficientRowsError("TrainTestSplit", n, 2, "")
	}

	nTest := TestSize(n, testFraction)
	if nTest == 0 {
		return SplitResult{}, errors.NewInsufficientRowsError("TrainTestSplit", n, int(math.Ceil(1/testFraction)),
			"test partition would be empty")
	}
	if nTest == n {
		return SplitResult{}, errors.NewInsufficientRowsError("TrainTestSplit", n, n+1, "train partition would be empty")
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	result := SplitResult{
		Test:  append([]int(nil), perm[:nTest]...),
		Train: append([]int(nil), perm[nTest:]...),
	}
	sort.Ints(result.Test)
	sort.Ints(result.Train)
	return result, nil
}
