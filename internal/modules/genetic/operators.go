package genetic

import "github.com/aristath/stockselect/internal/utils"

// crossover unions both parents (first-seen order, duplicates dropped), pads
// the union from the rest of the catalog when it is smaller than the
// portfolio size, then draws exactly size members uniformly from it.
//
// The child is not guaranteed to keep members shared by both parents, and in
// the extreme may share nothing with either parent.
func (a *Algorithm) crossover(p1, p2 []int) []int {
	seen := make(map[int]struct{}, len(p1)+len(p2))
	union := make([]int, 0, len(p1)+len(p2))
	for _, parent := range [][]int{p1, p2} {
		for _, g := range parent {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			union = append(union, g)
		}
	}

	if missing := a.size - len(union); missing > 0 {
		pad := utils.SampleFrom(a.rng, utils.Complement(a.catalog.Len(), union), missing)
		union = append(union, pad...)
	}

	return utils.SampleFrom(a.rng, union, a.size)
}

// mutate replaces one random slot with an instrument not already held, with
// probability MutationRate. Nothing happens when the child already holds the
// whole catalog.
func (a *Algorithm) mutate(genes []int) {
	if a.rng.Float64() >= a.params.MutationRate {
		return
	}
	candidates := utils.Complement(a.catalog.Len(), genes)
	if len(candidates) == 0 {
		return
	}
	slot := a.rng.Intn(len(genes))
	genes[slot] = candidates[a.rng.Intn(len(candidates))]
}
