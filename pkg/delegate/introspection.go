// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"strings"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
)

// IsDelegateGetItem returns whether node only unpacks one result of a delegate call:
// getitem(call_delegate, <int>).
func IsDelegateGetItem(node *fx.Node) bool {
	if !ops.IsGetItem(node) || node.NumArgs() != 2 {
		return false
	}
	if _, isInt := node.Arg(1).Int(); !isInt {
		return false
	}
	return ops.IsCall(node.ArgNode(0), ops.CallDelegate)
}

// NonLoweredNodes returns the call_function nodes of g that were not lowered to a backend, in graph order.
// Delegate calls and the getitem nodes unpacking their results are not included.
func NonLoweredNodes(g *fx.Graph) []*fx.Node {
	var nodes []*fx.Node
	for _, node := range g.Nodes() {
		if node.Op() != fx.OpKindCallFunction || ops.IsCall(node, ops.CallDelegate) || IsDelegateGetItem(node) {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// Delegates returns the get_attr nodes of g fetching lowered modules, in graph order.
func Delegates(g *fx.Graph) []*fx.Node {
	var nodes []*fx.Node
	for _, node := range g.Nodes() {
		if node.Op() == fx.OpKindGetAttr && strings.HasPrefix(node.Name(), LoweredModulePrefix) {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// PrintDelegatedGraph renders g like fx.Graph.String, and after each lowered module its backend and
// the graph it was lowered from, one level deeper. For example:
//
//	graph():
//	  %x : [num_users=1] = placeholder[target=x]
//	  %lowered_module_0 : [num_users=1] = get_attr[target=lowered_module_0]
//	    backend_id: BackendWithCompilerDemo
//	    lowered graph():
//	      %x : [num_users=1] = placeholder[target=x]
//	      ...
//	  %executorch_call_delegate : ...
//
// The output is meant for people: it's not stable and can't be parsed back.
func PrintDelegatedGraph(g *fx.Graph) string {
	var sb strings.Builder
	sb.WriteString("graph():\n")
	printNodes(&sb, g, 1)
	return sb.String()
}

const printIndent = "  "

func printNodes(sb *strings.Builder, g *fx.Graph, depth int) {
	indent := strings.Repeat(printIndent, depth)
	for _, node := range g.Nodes() {
		sb.WriteString(indent + node.Format() + "\n")
		if node.Op() != fx.OpKindGetAttr || !strings.HasPrefix(node.Name(), LoweredModulePrefix) {
			continue
		}
		value, _ := g.Attr(node.Target().Name)
		lowered, ok := value.(*LoweredModule)
		if !ok {
			continue
		}
		sb.WriteString(indent + printIndent + "backend_id: " + lowered.BackendID + "\n")
		sb.WriteString(indent + printIndent + "lowered graph():\n")
		if lowered.Original != nil {
			printNodes(sb, lowered.Original, depth+2)
		}
	}
}
