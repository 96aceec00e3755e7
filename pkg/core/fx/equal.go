// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fx

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// DefaultMaxDepth is the default limit of nested inputs an EqualityChecker will follow.
const DefaultMaxDepth = 30000

// EqualityChecker compares nodes and graphs structurally.
//
// Two nodes are the same if they have the same target, the same op kind, the same number of
// input nodes (see Node.InputNodes), and their input nodes are pairwise the same, in order.
//
// Literal arguments (integers, floats, strings, ...) are not compared: only the shape of the
// computation is. Two nodes calling the same operator on the same inputs with different
// literal arguments are reported as the same.
//
// Results are cached by node pair, so an EqualityChecker should not be reused after either
// graph is mutated (or Reset should be called). It is not safe for concurrent use.
type EqualityChecker struct {
	maxDepth int
	cache    map[nodePair]bool
}

type nodePair struct {
	a, b *Node
}

// NewEqualityChecker returns an EqualityChecker with DefaultMaxDepth.
func NewEqualityChecker() *EqualityChecker {
	return &EqualityChecker{
		maxDepth: DefaultMaxDepth,
		cache:    make(map[nodePair]bool),
	}
}

// WithMaxDepth sets the maximum chain of inputs followed when comparing two nodes.
// The comparison uses an explicit stack, so large values are safe.
//
// It returns the checker, so configuring methods can be cascaded.
func (c *EqualityChecker) WithMaxDepth(maxDepth int) *EqualityChecker {
	if maxDepth <= 0 {
		exceptions.Panicf("EqualityChecker.WithMaxDepth(%d): depth must be positive", maxDepth)
	}
	c.maxDepth = maxDepth
	return c
}

// Reset clears the cache of compared pairs.
func (c *EqualityChecker) Reset() {
	c.cache = make(map[nodePair]bool)
}

// shallowEqual compares the node themselves, and returns their inputs.
func shallowEqual(a, b *Node) (equal bool, inputsA, inputsB []*Node) {
	if a.target != b.target || a.op != b.op {
		return false, nil, nil
	}
	inputsA, inputsB = a.InputNodes(), b.InputNodes()
	if len(inputsA) != len(inputsB) {
		return false, nil, nil
	}
	return true, inputsA, inputsB
}

// SameNode returns whether a and b are structurally the same node. See EqualityChecker for the definition.
//
// It panics with an error wrapping ErrDepthExceeded if the inputs chain is deeper than the configured limit.
func (c *EqualityChecker) SameNode(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if result, found := c.cache[nodePair{a, b}]; found {
		return result
	}

	type frame struct {
		pair             nodePair
		inputsA, inputsB []*Node
		next             int
	}
	// fail marks the pair that differs and every pair on the stack (which depend on it) as different.
	var stack []*frame
	fail := func(pair nodePair) bool {
		c.cache[pair] = false
		for _, f := range stack {
			c.cache[f.pair] = false
		}
		return false
	}

	equal, inputsA, inputsB := shallowEqual(a, b)
	if !equal {
		return fail(nodePair{a, b})
	}
	stack = append(stack, &frame{pair: nodePair{a, b}, inputsA: inputsA, inputsB: inputsB})
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.inputsA) {
			// All inputs are the same.
			c.cache[top.pair] = true
			stack = stack[:len(stack)-1]
			continue
		}
		pair := nodePair{top.inputsA[top.next], top.inputsB[top.next]}
		top.next++
		if result, found := c.cache[pair]; found {
			if !result {
				return fail(pair)
			}
			continue
		}
		equal, inputsA, inputsB := shallowEqual(pair.a, pair.b)
		if !equal {
			return fail(pair)
		}
		if len(stack) >= c.maxDepth {
			panic(errors.Wrapf(ErrDepthExceeded, "comparing nodes %q and %q: depth limit of %d reached",
				a.name, b.name, c.maxDepth))
		}
		stack = append(stack, &frame{pair: pair, inputsA: inputsA, inputsB: inputsB})
	}
	return c.cache[nodePair{a, b}]
}

// IdenticalGraph returns whether both graphs have the same number of nodes and their nodes,
// taken position by position in execution order, are the same (see SameNode).
//
// This is stricter than semantic equivalence: two graphs with the same topology but whose nodes
// are stored in a different (equally valid) order are not identical.
func (c *EqualityChecker) IdenticalGraph(g1, g2 *Graph) bool {
	if g1.Len() != g2.Len() {
		return false
	}
	nodes1, nodes2 := g1.Nodes(), g2.Nodes()
	for ii := range nodes1 {
		if !c.SameNode(nodes1[ii], nodes2[ii]) {
			return false
		}
	}
	return true
}

// SameNode compares two nodes with a new EqualityChecker. See EqualityChecker.SameNode.
func SameNode(a, b *Node) bool {
	return NewEqualityChecker().SameNode(a, b)
}

// IdenticalGraph compares two graphs with a new EqualityChecker. See EqualityChecker.IdenticalGraph.
func IdenticalGraph(g1, g2 *Graph) bool {
	return NewEqualityChecker().IdenticalGraph(g1, g2)
}

// CheckIdenticalGraph is like IdenticalGraph, but returns an error instead of panicking if the
// comparison exceeds maxDepth.
func CheckIdenticalGraph(g1, g2 *Graph, maxDepth int) (identical bool, err error) {
	err = exceptions.TryCatch[error](func() {
		identical = NewEqualityChecker().WithMaxDepth(maxDepth).IdenticalGraph(g1, g2)
	})
	return
}
