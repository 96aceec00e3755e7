// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package partitioner assigns delegation tags to the nodes of a graph that a backend supports,
// grouping them into partitions that can each be lowered as a whole.
package partitioner

import (
	"fmt"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultTagPrefix is used when CapabilityPartitioner.TagPrefix is empty.
const DefaultTagPrefix = "tag"

// CapabilityPartitioner groups the supported call_function nodes of a graph greedily, in graph order:
// a supported node joins the partition of one of its inputs when possible, or starts a new partition.
//
// A node joins a partition only if the partition stays convex (no path leaves it and comes back)
// and no cycle is created between partitions, so every partition can be lowered in turn with
// delegate.ToBackend or delegate.LowerTaggedPartitions.
type CapabilityPartitioner struct {
	// Supported reports whether the backend can run the node. Only call_function nodes are offered.
	Supported func(node *fx.Node) bool

	// TagPrefix is the prefix of the tags assigned, followed by the partition number.
	TagPrefix string
}

// SupportedTargets returns a CapabilityPartitioner.Supported function accepting nodes calling one of targets.
func SupportedTargets(targets ...fx.Target) func(*fx.Node) bool {
	supported := sets.MakeWith(targets...)
	return func(node *fx.Node) bool {
		return node.Op() == fx.OpKindCallFunction && supported.Has(node.Target())
	}
}

// SupportedTargetNames is like SupportedTargets, with the targets given by name, e.g. "aten.add.Tensor".
func SupportedTargetNames(names ...string) func(*fx.Node) bool {
	targets := make([]fx.Target, len(names))
	for ii, name := range names {
		targets[ii] = fx.ParseTarget(name)
	}
	return SupportedTargets(targets...)
}

// partitionState tracks the partition of each node, and the partitions each node and each
// partition depend on.
type partitionState struct {
	partOf   map[*fx.Node]int
	deps     map[*fx.Node]sets.Set[int] // Partitions a node depends on, including its own.
	partDeps []sets.Set[int]            // Partitions a partition depends on, transitively.
}

// Partition sets Meta.DelegationTag of the supported nodes of g, and returns the tags assigned,
// in the order the partitions were created. Other nodes are not changed.
func (p *CapabilityPartitioner) Partition(g *fx.Graph) ([]string, error) {
	if p.Supported == nil {
		return nil, errors.New("CapabilityPartitioner.Supported is not set")
	}
	prefix := p.TagPrefix
	if prefix == "" {
		prefix = DefaultTagPrefix
	}

	state := &partitionState{
		partOf: make(map[*fx.Node]int),
		deps:   make(map[*fx.Node]sets.Set[int]),
	}
	var members [][]*fx.Node
	for _, node := range g.Nodes() {
		inputs := node.InputNodes()
		inDeps := sets.Make[int]()
		for _, input := range inputs {
			for part := range state.deps[input] {
				inDeps.Insert(part)
			}
		}
		state.deps[node] = inDeps
		if node.Op() != fx.OpKindCallFunction || !p.Supported(node) {
			continue
		}

		part := -1
		for _, input := range inputs {
			candidate, found := state.partOf[input]
			if found && state.canJoin(candidate, inputs, inDeps) {
				part = candidate
				break
			}
		}
		if part == -1 {
			part = len(members)
			members = append(members, nil)
			state.partDeps = append(state.partDeps, sets.Make[int]())
		}
		members[part] = append(members[part], node)
		state.join(node, part, inDeps)
	}

	tags := make([]string, len(members))
	for part, nodes := range members {
		tags[part] = fmt.Sprintf("%s%d", prefix, part)
		for _, node := range nodes {
			node.Meta.DelegationTag = tags[part]
		}
		klog.V(2).Infof("Partition %q: %d nodes", tags[part], len(nodes))
	}
	klog.V(1).Infof("CapabilityPartitioner(%q): %d partitions", g.Name(), len(tags))
	return tags, nil
}

// canJoin returns whether a node with the given inputs can be added to partition part.
func (s *partitionState) canJoin(part int, inputs []*fx.Node, inDeps sets.Set[int]) bool {
	for _, input := range inputs {
		inputPart, found := s.partOf[input]
		if (!found || inputPart != part) && s.deps[input].Has(part) {
			// Path leaving part and coming back.
			return false
		}
	}
	for other := range inDeps {
		if other != part && s.partDeps[other].Has(part) {
			// part would depend on a partition that depends on it.
			return false
		}
	}
	return true
}

// join adds node to partition part, and updates the dependencies.
func (s *partitionState) join(node *fx.Node, part int, inDeps sets.Set[int]) {
	s.partOf[node] = part
	s.deps[node].Insert(part)
	added := sets.Make[int]()
	for other := range inDeps {
		if other == part {
			continue
		}
		added.Insert(other)
		for transitive := range s.partDeps[other] {
			added.Insert(transitive)
		}
	}
	if len(added) == 0 {
		return
	}
	for dep := range added {
		s.partDeps[part].Insert(dep)
	}
	// Partitions depending on part now also depend on what part depends on.
	for other, deps := range s.partDeps {
		if other != part && deps.Has(part) {
			for dep := range added {
				deps.Insert(dep)
			}
		}
	}
}
