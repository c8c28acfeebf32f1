package lm

import (
	"fmt"
	"slices"
)

// Reorderer sorts requests by a comparison function and collapses requests
// that compare equal into one. After the collapsed requests are answered in
// sorted order, RestoreOrder fans each answer back out to every original
// request in its group.
type Reorderer[T any] struct {
	items  []T
	groups [][]int
	size   int
}

// NewReorderer groups and sorts items. Items that compare equal form one
// group, represented by the earliest of them.
func NewReorderer[T any](items []T, compare func(a, b T) int) *Reorderer[T] {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return compare(items[a], items[b])
	})

	var groups [][]int
	for _, i := range idx {
		if n := len(groups); n > 0 && compare(items[groups[n-1][0]], items[i]) == 0 {
			groups[n-1] = append(groups[n-1], i)
			continue
		}
		groups = append(groups, []int{i})
	}

	return &Reorderer[T]{items: items, groups: groups, size: len(items)}
}

// Reordered returns one representative per group, in sorted order.
func (r *Reorderer[T]) Reordered() []T {
	out := make([]T, len(r.groups))
	for g, members := range r.groups {
		out[g] = r.items[members[0]]
	}
	return out
}

// Len returns the number of groups.
func (r *Reorderer[T]) Len() int { return len(r.groups) }

// Members returns every original item in group g.
func (r *Reorderer[T]) Members(g int) []T {
	out := make([]T, len(r.groups[g]))
	for k, i := range r.groups[g] {
		out[k] = r.items[i]
	}
	return out
}

// RestoreOrder maps per-group results, given in sorted order, back to the
// original item order.
func RestoreOrder[T, R any](r *Reorderer[T], results []R) ([]R, error) {
	if len(results) != len(r.groups) {
		return nil, fmt.Errorf("reorder: got %d results for %d groups", len(results), len(r.groups))
	}

	out := make([]R, r.size)
	covered := make([]bool, r.size)
	for g, members := range r.groups {
		for _, i := range members {
			out[i] = results[g]
			covered[i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			return nil, fmt.Errorf("reorder: item %d has no result", i)
		}
	}
	return out, nil
}
