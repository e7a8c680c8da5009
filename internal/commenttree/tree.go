// Package commenttree assembles flat comment lists into reply forests.
package commenttree

import (
	"fmt"
)

type Node[T any] struct {
	Comment T          `json:"comment"`
	Replies []*Node[T] `json:"replies"`
}

// OrphanError reports a comment whose parent is not in the list.
type OrphanError struct {
	ID     any
	Parent any
}

func (e *OrphanError) Error() string {
	return fmt.Sprintf("comment %v references missing parent %v", e.ID, e.Parent)
}

type DuplicateError struct {
	ID any
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate comment id %v", e.ID)
}

// CycleError reports comments that never reach a root.
type CycleError struct {
	IDs []any
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("comments %v form a reply cycle", e.IDs)
}

// Build links items by parent id. Items whose parent is the zero value of K
// are roots. Roots and replies keep their input order.
func Build[T any, K comparable](items []T, id, parent func(T) K) ([]*Node[T], error) {
	var zero K
	nodes := make(map[K]*Node[T], len(items))
	order := make([]K, 0, len(items))
	for _, it := range items {
		k := id(it)
		if _, dup := nodes[k]; dup {
			return nil, &DuplicateError{ID: k}
		}
		nodes[k] = &Node[T]{Comment: it, Replies: []*Node[T]{}}
		order = append(order, k)
	}

	roots := []*Node[T]{}
	for _, k := range order {
		n := nodes[k]
		p := parent(n.Comment)
		if p == zero {
			roots = append(roots, n)
			continue
		}
		pn, ok := nodes[p]
		if !ok {
			return nil, &OrphanError{ID: k, Parent: p}
		}
		pn.Replies = append(pn.Replies, n)
	}

	if reached := count(roots); reached != len(order) {
		seen := make(map[K]bool, reached)
		walk(roots, func(n *Node[T]) { seen[id(n.Comment)] = true })
		var stuck []any
		for _, k := range order {
			if !seen[k] {
				stuck = append(stuck, k)
			}
		}
		return nil, &CycleError{IDs: stuck}
	}
	return roots, nil
}

// Flatten lists the forest depth-first, parents before replies.
func Flatten[T any](roots []*Node[T]) []T {
	var out []T
	walk(roots, func(n *Node[T]) { out = append(out, n.Comment) })
	return out
}

func count[T any](roots []*Node[T]) int {
	n := 0
	walk(roots, func(*Node[T]) { n++ })
	return n
}

func walk[T any](roots []*Node[T], fn func(*Node[T])) {
	stack := make([]*Node[T], 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(n)
		for i := len(n.Replies) - 1; i >= 0; i-- {
			stack = append(stack, n.Replies[i])
		}
	}
}
