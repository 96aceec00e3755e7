// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/gomlx/delegate/pkg/support/sets"
)

// Partition is a set of nodes of a graph, usually produced by a partitioner, meant to be replaced
// as a whole (by a fused operator or a lowered module).
//
// Params are the nodes of the partition that hold constant data (parameters, buffers, constants)
// but are not part of the replaced computation.
type Partition struct {
	// Tag is the delegation tag shared by the nodes, if the partition was built from tags.
	Tag string

	Nodes  *sets.Ordered[*fx.Node]
	Params sets.Set[*fx.Node]
}

// NewPartition creates a Partition with the given nodes and params. Params are also
// included in Nodes, if not already listed there.
func NewPartition(nodes []*fx.Node, params ...*fx.Node) *Partition {
	p := &Partition{
		Nodes:  sets.MakeOrdered(nodes...),
		Params: sets.MakeWith(params...),
	}
	p.Nodes.Insert(params...)
	return p
}

// ComputeNodes returns the nodes that are not params, in the order they were given.
func (p *Partition) ComputeNodes() []*fx.Node {
	var nodes []*fx.Node
	for node := range p.Nodes.All {
		if !p.Params.Has(node) {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// PartitionsFromTags groups the nodes of g by delegation tag, in graph order. Partitions are
// ordered by the first appearance of their tag. Placeholders and get_attr nodes are added as params.
//
// Nodes of already lowered partitions (see isLoweredArtifact) are never included, even if tagged.
func PartitionsFromTags(g *fx.Graph) []*Partition {
	var partitions []*Partition
	byTag := make(map[string]*Partition)
	for _, node := range g.Nodes() {
		tag := node.Meta.DelegationTag
		if tag == "" || node.Op() == fx.OpKindOutput || isLoweredArtifact(node) {
			continue
		}
		p, found := byTag[tag]
		if !found {
			p = &Partition{Tag: tag, Nodes: sets.MakeOrdered[*fx.Node](), Params: sets.Make[*fx.Node]()}
			byTag[tag] = p
			partitions = append(partitions, p)
		}
		p.Nodes.Insert(node)
		if isConstantData(node) {
			p.Params.Insert(node)
		}
	}
	return partitions
}

// isLoweredArtifact returns whether node was created by lowering a partition: a delegate call,
// a getitem unpacking its results, or a get_attr fetching a LoweredModule.
func isLoweredArtifact(node *fx.Node) bool {
	switch {
	case ops.IsCall(node, ops.CallDelegate), IsDelegateGetItem(node):
		return true
	case node.Op() == fx.OpKindGetAttr:
		value, _ := node.Graph().Attr(node.Target().Name)
		_, isLowered := value.(*LoweredModule)
		return isLowered
	}
	return false
}
