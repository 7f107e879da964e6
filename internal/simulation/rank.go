package simulation

import (
	"cmp"
	"slices"
)

// ranks returns the 0-based rank of every value. Ranks come from a stable
// ascending sort, so equal values keep their original index order.
// cmp.Compare orders NaN before every other value, which keeps the sort total.
func ranks(values []float64) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(values[a], values[b])
	})

	r := make([]int, len(values))
	for pos, idx := range order {
		r[idx] = pos
	}
	return r
}

// percentile scales a rank to an integer in [0, 100). Floor division makes
// small samples produce coarse, sometimes duplicated, percentiles.
func percentile(rank, n int) int {
	return rank * 100 / n
}

// quartileBounds returns the exclusive upper rank of each quartile group.
// Every group gets n/4 ranks; the n%4 leftover ranks go one each to the
// highest groups, so with n=6 the sizes are 1, 1, 2, 2.
func quartileBounds(n int) [NumQuartiles]int {
	base, rem := n/NumQuartiles, n%NumQuartiles
	var bounds [NumQuartiles]int
	upper := 0
	for g := 0; g < NumQuartiles; g++ {
		upper += base
		if g >= NumQuartiles-rem {
			upper++
		}
		bounds[g] = upper
	}
	return bounds
}

// quartileOf places a rank into its group given the bounds from quartileBounds.
func quartileOf(rank int, bounds [NumQuartiles]int) Quartile {
	for g, upper := range bounds {
		if rank < upper {
			return Quartile(g)
		}
	}
	return Top
}
