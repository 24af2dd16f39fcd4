package swarm

// Swap overwrites position slot Slot with catalog index Index.
type Swap struct {
	Slot  int `json:"slot"`
	Index int `json:"index"`
}

// Difference returns the swaps that turn position a into position b: the
// indices of b missing from a (in b order) paired with the indices of a
// missing from b (in a order). Each pair writes the added index into the
// slot of a that held the removed one. Unpaired leftovers, possible only
// when a and b differ in length, are dropped.
func Difference(a, b []int) []Swap {
	inA := make(map[int]struct{}, len(a))
	for _, idx := range a {
		inA[idx] = struct{}{}
	}
	inB := make(map[int]struct{}, len(b))
	for _, idx := range b {
		inB[idx] = struct{}{}
	}

	var added []int
	for _, idx := range b {
		if _, ok := inA[idx]; !ok {
			added = append(added, idx)
		}
	}
	var freed []int
	for slot, idx := range a {
		if _, ok := inB[idx]; !ok {
			freed = append(freed, slot)
		}
	}

	n := len(added)
	if len(freed) < n {
		n = len(freed)
	}
	swaps := make([]Swap, n)
	for i := 0; i < n; i++ {
		swaps[i] = Swap{Slot: freed[i], Index: added[i]}
	}
	return swaps
}

// MergeVelocity collapses swaps targeting the same slot. A slot keeps the
// position of its first occurrence and the index of its last one.
func MergeVelocity(swaps []Swap) []Swap {
	order := make(map[int]int, len(swaps))
	merged := make([]Swap, 0, len(swaps))
	for _, s := range swaps {
		if at, ok := order[s.Slot]; ok {
			merged[at].Index = s.Index
			continue
		}
		order[s.Slot] = len(merged)
		merged = append(merged, s)
	}
	return merged
}

// ApplyVelocity returns a repaired copy of position with every swap applied
// in order. Swaps addressing slots outside the position are ignored.
func ApplyVelocity(position []int, velocity []Swap, n int) []int {
	next := make([]int, len(position))
	copy(next, position)
	for _, s := range velocity {
		if s.Slot < 0 || s.Slot >= len(next) {
			continue
		}
		next[s.Slot] = s.Index
	}
	return Repair(next, n)
}

// Repair makes position a set of distinct catalog indices in [0, n),
// in place. The first occurrence of an index keeps its slot; later
// duplicates and out-of-range entries are replaced by the lowest unused
// index. len(position) must not exceed n.
func Repair(position []int, n int) []int {
	used := make([]bool, n)
	var broken []int
	for slot, idx := range position {
		if idx < 0 || idx >= n || used[idx] {
			broken = append(broken, slot)
			continue
		}
		used[idx] = true
	}

	next := 0
	for _, slot := range broken {
		for used[next] {
			next++
		}
		position[slot] = next
		used[next] = true
	}
	return position
}
