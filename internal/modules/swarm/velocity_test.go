package swarm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDifference(t *testing.T) {
	tests := []struct {
		name string
		a, b []int
		want []Swap
	}{
		{"identical", []int{1, 2, 3}, []int{1, 2, 3}, []Swap{}},
		{"same set reordered", []int{1, 2, 3}, []int{3, 1, 2}, []Swap{}},
		{"one replaced", []int{1, 2, 3}, []int{1, 5, 3}, []Swap{{Slot: 1, Index: 5}}},
		{
			"disjoint",
			[]int{0, 1, 2}, []int{7, 8, 9},
			[]Swap{{Slot: 0, Index: 7}, {Slot: 1, Index: 8}, {Slot: 2, Index: 9}},
		},
		{
			"pairs in b order against a order",
			[]int{4, 1, 6, 2}, []int{9, 1, 8, 2},
			[]Swap{{Slot: 0, Index: 9}, {Slot: 2, Index: 8}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Difference(tt.a, tt.b))
		})
	}
}

func TestDifference_AppliedReachesTarget(t *testing.T) {
	a := []int{0, 3, 5, 7}
	b := []int{5, 9, 0, 11}
	got := ApplyVelocity(a, Difference(a, b), 12)
	assert.ElementsMatch(t, b, got)
}

func TestMergeVelocity(t *testing.T) {
	in := []Swap{
		{Slot: 2, Index: 10},
		{Slot: 0, Index: 4},
		{Slot: 2, Index: 11},
		{Slot: 1, Index: 6},
		{Slot: 0, Index: 5},
	}
	want := []Swap{
		{Slot: 2, Index: 11},
		{Slot: 0, Index: 5},
		{Slot: 1, Index: 6},
	}
	assert.Equal(t, want, MergeVelocity(in))
	assert.Empty(t, MergeVelocity(nil))
}

func TestApplyVelocity_IgnoresOutOfRangeSlots(t *testing.T) {
	pos := []int{0, 1, 2}
	got := ApplyVelocity(pos, []Swap{{Slot: 5, Index: 9}, {Slot: -1, Index: 8}, {Slot: 1, Index: 7}}, 10)
	assert.Equal(t, []int{0, 7, 2}, got)
	assert.Equal(t, []int{0, 1, 2}, pos, "input position must not change")
}

func TestApplyVelocity_RepairsDuplicates(t *testing.T) {
	got := ApplyVelocity([]int{2, 3, 4}, []Swap{{Slot: 2, Index: 2}}, 5)
	assert.Equal(t, []int{2, 3, 0}, got)
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		n    int
		want []int
	}{
		{"already valid", []int{4, 2, 0}, 5, []int{4, 2, 0}},
		{"duplicate keeps first slot", []int{3, 3, 1}, 5, []int{3, 0, 1}},
		{"all equal", []int{2, 2, 2}, 3, []int{2, 0, 1}},
		{"out of range", []int{-1, 9, 1}, 4, []int{0, 2, 1}},
		{"full catalog", []int{1, 1, 1, 1}, 4, []int{1, 0, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]int(nil), tt.in...)
			assert.Equal(t, tt.want, Repair(in, tt.n))
		})
	}
}

func TestRepair_RandomInputsAreDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 500; trial++ {
		n := 1 + rng.Intn(15)
		k := 1 + rng.Intn(n)
		pos := make([]int, k)
		for i := range pos {
			pos[i] = rng.Intn(n+6) - 3
		}

		got := Repair(pos, n)
		require.Len(t, got, k)
		seen := make(map[int]bool, k)
		for _, idx := range got {
			require.GreaterOrEqual(t, idx, 0)
			require.Less(t, idx, n)
			require.False(t, seen[idx], "duplicate %d in %v", idx, got)
			seen[idx] = true
		}
	}
}
