package qlearning

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Key returns the order-independent state key of a partial portfolio.
func Key(indices []int) string {
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Ints(sorted)

	var b strings.Builder
	for i, idx := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(idx))
	}
	return b.String()
}

// Table is a sparse state-value table. Absent states are worth 0.
type Table struct {
	values map[string]float64
	alpha  float64
	gamma  float64
}

// NewTable creates an empty table with learning rate alpha and discount gamma.
func NewTable(alpha, gamma float64) *Table {
	return &Table{
		values: make(map[string]float64),
		alpha:  alpha,
		gamma:  gamma,
	}
}

// Get returns the value of a state.
func (t *Table) Get(key string) float64 {
	return t.values[key]
}

// Len returns the number of states visited so far.
func (t *Table) Len() int {
	return len(t.values)
}

// Update applies one temporal-difference step to key:
//
//	Q(key) += alpha * (reward + gamma*future - Q(key))
//
// A non-finite result leaves the value unchanged and reports false.
func (t *Table) Update(key string, reward, future float64) (float64, bool) {
	old := t.values[key]
	next := old + t.alpha*(reward+t.gamma*future-old)
	if math.IsNaN(next) || math.IsInf(next, 0) {
		return old, false
	}
	t.values[key] = next
	return next, true
}

// BestSuccessor returns the unselected action whose successor state has the
// highest value, and that value. Ties go to the lowest index. ok is false
// when every action is taken.
func (t *Table) BestSuccessor(state []int, taken []bool) (action int, value float64, ok bool) {
	next := make([]int, len(state)+1)
	copy(next, state)
	action = -1
	for a, used := range taken {
		if used {
			continue
		}
		next[len(state)] = a
		v := t.Get(Key(next))
		if action < 0 || v > value {
			action, value = a, v
		}
	}
	return action, value, action >= 0
}
