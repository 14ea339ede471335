package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSplitRatio is returned for split ratios that are not three
// "/"-separated integer percentages.
var ErrInvalidSplitRatio = errors.New("invalid split ratio")

// SplitRatio holds the three percentages of a "train/test/val" ratio string.
//
// Only Train and Val bound a split: the test split takes whatever is left
// after them, so Test is validated but never used in the arithmetic. A ratio
// such as "70/10/20" therefore yields roughly 70% train, 20% val and 10% test.
type SplitRatio struct {
	Train int
	Test  int
	Val   int
}

// ParseSplitRatio parses "a/b/c" with every token an integer in [0,100].
func ParseSplitRatio(s string) (SplitRatio, error) {
	tokens := strings.Split(s, "/")
	if len(tokens) != 3 {
		return SplitRatio{}, fmt.Errorf("%w: %q must have three parts", ErrInvalidSplitRatio, s)
	}

	var pct [3]int
	for i, tok := range tokens {
		v, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return SplitRatio{}, fmt.Errorf("%w: %q: %q is not an integer", ErrInvalidSplitRatio, s, tok)
		}
		if v < 0 || v > 100 {
			return SplitRatio{}, fmt.Errorf("%w: %q: %d is outside 0-100", ErrInvalidSplitRatio, s, v)
		}
		pct[i] = v
	}
	return SplitRatio{Train: pct[0], Test: pct[1], Val: pct[2]}, nil
}

// String formats the ratio the way it was parsed.
func (r SplitRatio) String() string {
	return fmt.Sprintf("%d/%d/%d", r.Train, r.Test, r.Val)
}

// Bounds returns the end index of the train split and of the val split for
// total items: trainEnd = floor(total*train/100) and
// valEnd = trainEnd + floor(total*val/100), capped at total.
func (r SplitRatio) Bounds(total int) (trainEnd, valEnd int) {
	trainEnd = total * r.Train / 100
	valEnd = trainEnd + total*r.Val/100
	return min(trainEnd, total), min(valEnd, total)
}

// Partition cuts an already shuffled id list into contiguous train, val and
// test ranges.
func Partition(ids []string, r SplitRatio) (train, val, test []string) {
	trainEnd, valEnd := r.Bounds(len(ids))
	train = append([]string{}, ids[:trainEnd]...)
	val = append([]string{}, ids[trainEnd:valEnd]...)
	test = append([]string{}, ids[valEnd:]...)
	return train, val, test
}
