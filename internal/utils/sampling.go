package utils

import "math/rand"

// NewRand returns a deterministic random source for the given seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// SampleIndices draws k distinct values from [0, n) uniformly without
// replacement, in draw order. k must not exceed n.
func SampleIndices(rng *rand.Rand, n, k int) []int {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	return SampleFrom(rng, pool, k)
}

// SampleFrom draws k distinct elements of pool uniformly without replacement.
// The pool is not modified. k must not exceed len(pool).
func SampleFrom(rng *rand.Rand, pool []int, k int) []int {
	work := make([]int, len(pool))
	copy(work, pool)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(work)-i)
		work[i], work[j] = work[j], work[i]
	}
	return work[:k:k]
}

// Complement returns the values in [0, n) absent from members, ascending.
func Complement(n int, members []int) []int {
	used := make([]bool, n)
	for _, m := range members {
		if m >= 0 && m < n {
			used[m] = true
		}
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !used[i] {
			out = append(out, i)
		}
	}
	return out
}
