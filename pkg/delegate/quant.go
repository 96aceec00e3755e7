// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"slices"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/gomlx/delegate/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// fusedSubmoduleName is the temporary submodule created while fusing a quantized partition.
const fusedSubmoduleName = "to_be_replaced"

// ReplaceQuantizedPartitionWithOp replaces the partition, which must come from a quantized module,
// together with its dequantize inputs and quantize outputs, by a single call to replacementOp.
//
// The boundaries are recomputed from the graph, scanning the partition nodes in graph order:
//
//   - dq: the dequantize nodes outside the partition used by partition nodes, in first-use order.
//     A dequantize node used by more than one partition node is listed once per use.
//   - q: the quantize nodes using the partition nodes that have users outside the partition.
//
// It returns an error wrapping ErrMissingQuantBoundary if either list is empty.
//
// The nodes dq + partition (without params) + q are moved into a submodule (see
// fx.CreateSubmoduleFromNodes), and the resulting call node is replaced by a call to replacementOp
// with the same arguments (the inputs of the dequantize nodes and the other external inputs, in
// first-use order) and the same metadata.
func ReplaceQuantizedPartitionWithOp(g *fx.Graph, partition *Partition, replacementOp fx.Target) (
	replaced *fx.Node, dq, q []*fx.Node, err error) {
	pos := make(map[*fx.Node]int, g.Len())
	for ii, node := range g.Nodes() {
		pos[node] = ii
	}
	scan := make([]*fx.Node, 0, partition.Nodes.Len())
	for node := range partition.Nodes.All {
		if node.Graph() != g {
			return nil, nil, nil, errors.Errorf("partition node %q is not part of graph %q", node.Name(), g.Name())
		}
		scan = append(scan, node)
	}
	slices.SortFunc(scan, func(a, b *fx.Node) int { return pos[a] - pos[b] })

	// External inputs and outputs.
	var inputNodes, outputNodes []*fx.Node
	for _, node := range scan {
		for ii := range node.NumArgs() {
			if arg := node.ArgNode(ii); arg != nil && !partition.Nodes.Has(arg) {
				inputNodes = append(inputNodes, arg)
			}
		}
		for _, user := range node.Users() {
			if !partition.Nodes.Has(user) {
				outputNodes = append(outputNodes, node)
				break
			}
		}
	}
	for _, node := range inputNodes {
		if ops.IsDequantize(node) {
			dq = append(dq, node)
		}
	}
	seenQ := sets.Make[*fx.Node]()
	for _, node := range outputNodes {
		for _, user := range node.Users() {
			if ops.IsQuantize(user) && !seenQ.Has(user) {
				seenQ.Insert(user)
				q = append(q, user)
			}
		}
	}
	if len(dq) == 0 {
		return nil, nil, nil, errors.Wrapf(ErrMissingQuantBoundary,
			"no dequantize node feeds the partition %v of graph %q", nodeNames(scan), g.Name())
	}
	if len(q) == 0 {
		return nil, nil, nil, errors.Wrapf(ErrMissingQuantBoundary,
			"no quantize node consumes the outputs %v of graph %q", nodeNames(outputNodes), g.Name())
	}

	nodeList := make([]*fx.Node, 0, len(dq)+len(scan)+len(q))
	nodeList = append(nodeList, dq...)
	for _, node := range scan {
		if !partition.Params.Has(node) {
			nodeList = append(nodeList, node)
		}
	}
	nodeList = append(nodeList, q...)
	_, callNode, err := fx.CreateSubmoduleFromNodes(g, nodeList, fusedSubmoduleName)
	if err != nil {
		return nil, nil, nil, errors.WithMessagef(err, "fusing quantized partition into %s", replacementOp)
	}

	g.InsertingBefore(callNode, func() {
		replaced = g.CallFunction(replacementOp, callNode.Args(), callNode.Kwargs()...)
	})
	callNode.ReplaceAllUsesWith(replaced)
	g.EraseNode(callNode)
	g.DeleteAttr(fusedSubmoduleName)
	replaced.Meta = callNode.Meta
	if err = g.Recompile(); err != nil {
		return nil, nil, nil, err
	}
	klog.V(1).Infof("Graph(%q): fused %d nodes (%d dequantize, %d quantize) into %q",
		g.Name(), len(nodeList), len(dq), len(q), replaced.Name())
	return replaced, dq, q, nil
}

// RemoveFirstQuantAndLastDequant removes the quantization of the graph inputs and the dequantization
// of the graph outputs, so the graph takes and returns quantized values:
//
//   - quantize nodes applied to a placeholder are bypassed: their users use the placeholder instead.
//   - dequantize nodes used by the output node are bypassed in the output.
//
// Bypassed nodes left without users are removed.
func RemoveFirstQuantAndLastDequant(g *fx.Graph) error {
	output := g.OutputNode()
	for _, node := range g.Nodes() {
		switch {
		case ops.IsQuantize(node):
			input := node.ArgNode(0)
			if input == nil || input.Op() != fx.OpKindPlaceholder {
				continue
			}
			for _, user := range node.Users() {
				user.ReplaceInputWith(node, input)
			}
		case ops.IsDequantize(node) && output != nil:
			input := node.ArgNode(0)
			if input == nil {
				continue
			}
			for _, user := range node.Users() {
				if user == output {
					output.ReplaceInputWith(node, input)
				}
			}
		}
	}
	removed := g.EliminateDeadCode()
	klog.V(1).Infof("Graph(%q): removed %d input quantize / output dequantize nodes", g.Name(), removed)
	return g.Recompile()
}

func nodeNames(nodes []*fx.Node) []string {
	names := make([]string, len(nodes))
	for ii, node := range nodes {
		names[ii] = node.Name()
	}
	return names
}
