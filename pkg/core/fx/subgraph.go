// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fx

import (
	"slices"

	"github.com/gomlx/delegate/pkg/support/sets"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CreateSubmoduleFromNodes moves nodes out of g into a new Graph (the submodule) and replaces them in g
// with a single call_module node, returned as callNode. The submodule is stored as the attribute name
// of g, which is also the target of callNode.
//
//   - The submodule has one placeholder per node outside of the selection used by the selection, in the
//     order they are first used (following the graph order), and callNode takes them as arguments in the
//     same order.
//   - The submodule returns, in graph order, the selected nodes that are used outside the selection.
//     If there is only one, callNode replaces it directly. Otherwise, one getitem(callNode, i) node
//     is created for each.
//   - Placeholders in nodes are not moved: they become inputs of the submodule. get_attr nodes are
//     moved together with their attribute.
//   - Nodes outside the selection keep their arguments and metadata. They may be moved after callNode
//     if they used a selected node and were placed before the last selected node.
//
// The metadata of callNode carries the delegation tag of the selected nodes (when they all agree on it)
// and the sorted debug handles of the nodes it replaced (Meta.SourceHandles).
//
// It returns an error wrapping ErrNonConvexPartition if the selection can't be replaced without creating
// a cycle, and an error if nodes is empty or includes the output node or nodes of another graph.
// Duplicate nodes are ignored.
func CreateSubmoduleFromNodes(g *Graph, nodes []*Node, name string) (submodule *Graph, callNode *Node, err error) {
	err = exceptions.TryCatch[error](func() {
		submodule, callNode = createSubmodule(g, nodes, name)
	})
	return
}

// ExtractSubmodule returns the submodule CreateSubmoduleFromNodes would create for nodes, without
// changing g. It fails in the same cases.
func ExtractSubmodule(g *Graph, nodes []*Node, name string) (submodule *Graph, err error) {
	err = exceptions.TryCatch[error](func() {
		submodule = buildSubmodule(g, selectNodes(g, nodes, name), name)
	})
	return
}

// selection of nodes to move into a submodule, and its boundaries.
type selection struct {
	selected sets.Set[NodeId]
	moved    []*Node // In graph order.
	inputs   *sets.Ordered[NodeId]
	outputs  []*Node
}

func selectNodes(g *Graph, nodes []*Node, name string) *selection {
	if len(nodes) == 0 {
		exceptions.Panicf("Graph(%q): no nodes given to create submodule %q", g.name, name)
	}
	if _, found := g.attrs[name]; found {
		exceptions.Panicf("Graph(%q): attribute %q already exists, can't create submodule with that name", g.name, name)
	}

	pos := g.positions()
	sel := &selection{selected: sets.Make[NodeId](len(nodes)), inputs: sets.MakeOrdered[NodeId]()}
	for _, node := range nodes {
		node.AssertValid()
		if node.graph != g {
			exceptions.Panicf("Graph(%q): node %q given to submodule %q belongs to another graph", g.name, node.name, name)
		}
		if node.op == OpKindOutput {
			exceptions.Panicf("Graph(%q): the output node can't be moved into submodule %q", g.name, name)
		}
		if node.op == OpKindPlaceholder || sel.selected.Has(node.id) {
			continue
		}
		sel.selected.Insert(node.id)
		sel.moved = append(sel.moved, node)
	}
	if len(sel.moved) == 0 {
		exceptions.Panicf("Graph(%q): only placeholders given to create submodule %q", g.name, name)
	}
	slices.SortFunc(sel.moved, func(a, b *Node) int { return pos[a.id] - pos[b.id] })
	assertConvex(g, sel.selected, pos[sel.moved[0].id], pos[sel.moved[len(sel.moved)-1].id])

	for _, node := range sel.moved {
		for _, id := range node.inputIds() {
			if !sel.selected.Has(id) {
				sel.inputs.Insert(id)
			}
		}
		for id := range g.users[node.id].All {
			if !sel.selected.Has(id) {
				sel.outputs = append(sel.outputs, node)
				break
			}
		}
	}
	return sel
}

// buildSubmodule creates the submodule graph for the selection, without changing g.
func buildSubmodule(g *Graph, sel *selection, name string) *Graph {
	sub := NewGraph(name)
	subIds := make(map[NodeId]NodeId, sel.inputs.Len()+len(sel.moved))
	remap := func(id NodeId) Arg { return Arg{kind: ArgNode, node: subIds[id]} }
	for id := range sel.inputs.All {
		input := g.nodes[id]
		kind := InputKindUser
		if input.op == OpKindPlaceholder {
			kind = input.inputKind
		}
		placeholder := sub.Placeholder(input.name, kind)
		if input.Meta.Val != nil {
			placeholder.Meta.Val = input.Meta.Clone().Val
		}
		subIds[id] = placeholder.id
	}
	for _, node := range sel.moved {
		subNode := sub.newNode(node.op, node.target, node.name,
			mapArgsRefs(node.args, remap), mapKwargsRefs(node.kwargs, remap))
		subNode.inputKind = node.inputKind
		subNode.Meta = node.Meta.Clone()
		subIds[node.id] = subNode.id
		if node.op == OpKindGetAttr || node.op == OpKindCallModule {
			if value, found := g.attrs[node.target.Name]; found {
				sub.attrs[node.target.Name] = value
			}
		}
	}
	outputArgs := make([]Arg, len(sel.outputs))
	for ii, output := range sel.outputs {
		outputArgs[ii] = remap(output.id)
	}
	sub.Output(outputArgs...)
	return sub
}

func createSubmodule(g *Graph, nodes []*Node, name string) (*Graph, *Node) {
	sel := selectNodes(g, nodes, name)
	sub := buildSubmodule(g, sel, name)
	moved, inputs, outputs := sel.moved, sel.inputs, sel.outputs

	// Splice the call node in the parent graph, just after the last moved node.
	g.attrs[name] = sub
	isOutside := func(user *Node) bool { return !sel.selected.Has(user.id) }
	var callNode *Node
	g.insertingAfter(moved[len(moved)-1], func() {
		callArgs := make([]Arg, 0, inputs.Len())
		for id := range inputs.All {
			callArgs = append(callArgs, Arg{kind: ArgNode, node: id})
		}
		callNode = g.CallModule(name, callArgs)
		callNode.Meta = spliceMeta(moved)
		if len(outputs) == 1 {
			outputs[0].ReplaceUsesIf(callNode, isOutside)
			return
		}
		for ii, output := range outputs {
			getItem := g.CallFunction(GetItem, []Arg{Ref(callNode), Int(ii)})
			getItem.Meta.Val = output.Meta.Clone().Val
			output.ReplaceUsesIf(getItem, isOutside)
		}
	})

	// Erase moved nodes, users first, then the attributes only they referred to.
	for ii := len(moved) - 1; ii >= 0; ii-- {
		g.detach(moved[ii])
	}
	g.compactOrder()
	var movedAttrs []string
	for _, node := range moved {
		if node.op == OpKindGetAttr || node.op == OpKindCallModule {
			movedAttrs = append(movedAttrs, node.target.Name)
		}
	}
	if len(movedAttrs) > 0 {
		inUse := g.attrsInUse()
		for _, attrName := range movedAttrs {
			if !inUse.Has(attrName) {
				delete(g.attrs, attrName)
			}
		}
	}
	g.legalize()
	if err := g.Lint(); err != nil {
		panic(errors.WithMessagef(err, "graph invalid after creating submodule %q", name))
	}
	klog.V(1).Infof("Graph(%q): moved %d nodes into submodule %q (%d inputs, %d outputs)",
		g.name, len(moved), name, inputs.Len(), len(outputs))
	return sub, callNode
}

// assertConvex panics if some path goes from a selected node to a node outside the selection and back
// to a selected node. Only nodes between the first and last selected positions can be on such a path.
func assertConvex(g *Graph, selected sets.Set[NodeId], first, last int) {
	// tainted are the nodes outside the selection that depend on a selected node.
	tainted := sets.Make[NodeId]()
	for _, id := range g.order[first : last+1] {
		node := g.nodes[id]
		inSelection := selected.Has(id)
		for _, inputId := range node.inputIds() {
			switch {
			case tainted.Has(inputId) && inSelection:
				panic(errors.Wrapf(ErrNonConvexPartition,
					"graph %q: node %q depends on selected nodes through %q, which is not selected",
					g.name, node.name, g.nodes[inputId].name))
			case !inSelection && (selected.Has(inputId) || tainted.Has(inputId)):
				tainted.Insert(id)
			}
		}
	}
}

// spliceMeta returns the metadata for a node replacing nodes.
func spliceMeta(nodes []*Node) Meta {
	var meta Meta
	tags := sets.MakeOrdered[string]()
	handles := sets.Make[int]()
	for _, node := range nodes {
		if node.Meta.DelegationTag != "" {
			tags.Insert(node.Meta.DelegationTag)
		}
		if h, ok := node.Meta.DebugHandle.Value(); ok {
			handles.Insert(h)
		}
		handles.Insert(node.Meta.SourceHandles...)
	}
	if tags.Len() == 1 {
		meta.DelegationTag = tags.Elements()[0]
	}
	if len(handles) > 0 {
		meta.SourceHandles = make([]int, 0, len(handles))
		for h := range handles {
			meta.SourceHandles = append(meta.SourceHandles, h)
		}
		slices.Sort(meta.SourceHandles)
	}
	return meta
}

// insertingAfter calls fn with the graph set to insert new nodes right after node.
func (g *Graph) insertingAfter(node *Node, fn func()) {
	pos := slices.Index(g.order, node.id)
	if pos+1 < len(g.order) {
		g.InsertingBefore(g.nodes[g.order[pos+1]], fn)
		return
	}
	// node is the last one: new nodes are appended.
	previous := g.insertPoint
	g.insertPoint = nil
	defer func() { g.insertPoint = previous }()
	fn()
}

// attrsInUse returns the names of the attributes referred to by get_attr and call_module nodes.
func (g *Graph) attrsInUse() sets.Set[string] {
	names := sets.Make[string]()
	for _, node := range g.nodes {
		if node.op == OpKindGetAttr || node.op == OpKindCallModule {
			names.Insert(node.target.Name)
		}
	}
	return names
}
