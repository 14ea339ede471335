package dedup

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// pairMatches evaluates match for every unordered pair i < j of n items using
// up to workers goroutines. Row i is owned by exactly one goroutine, so the
// result holds, for each i, the matching j in ascending order no matter how
// the rows were scheduled.
func pairMatches(ctx context.Context, n, workers int, match func(i, j int) bool) ([][]int, error) {
	rows := make([][]int, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for j := i + 1; j < n; j++ {
				if match(i, j) {
					rows[i] = append(rows[i], j)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// resolveLater walks matching pairs in (i, j) enumeration order and marks the
// later image j unless either image of the pair is already marked.
func resolveLater(rows [][]int) []bool {
	marked := make([]bool, len(rows))
	for i, js := range rows {
		if marked[i] {
			continue
		}
		for _, j := range js {
			if !marked[j] {
				marked[j] = true
			}
		}
	}
	return marked
}

// markAnyLater marks every j that matches at least one earlier i.
func markAnyLater(rows [][]int) []bool {
	marked := make([]bool, len(rows))
	for _, js := range rows {
		for _, j := range js {
			marked[j] = true
		}
	}
	return marked
}
