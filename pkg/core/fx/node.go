// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fx

import (
	"slices"

	"github.com/gomlx/delegate/pkg/support/sets"
	"github.com/gomlx/exceptions"
)

// Node is one operation in a Graph.
//
// Nodes are created by the Graph building methods (Graph.Placeholder, Graph.CallFunction, etc.)
// and are owned by the Graph: after Graph.EraseNode a Node is no longer valid.
//
// Node.Meta can be freely changed: the graph doesn't interpret it.
type Node struct {
	graph     *Graph
	id        NodeId
	name      string
	op        OpKind
	target    Target
	args      []Arg
	kwargs    []Kwarg
	inputKind InputKind

	// Meta holds the node metadata: debug handle, delegation tag, etc.
	Meta Meta
}

// Graph that owns the node. It returns nil for erased nodes.
func (n *Node) Graph() *Graph {
	if n == nil {
		return nil
	}
	return n.graph
}

// Id is the unique id of the node within its Graph.
func (n *Node) Id() NodeId {
	if n == nil || n.graph == nil {
		return InvalidNodeId
	}
	return n.id
}

// Name of the node, unique within its Graph.
func (n *Node) Name() string { return n.name }

// SetName renames the node. The name is sanitized and made unique within the graph, and the final name
// is returned.
func (n *Node) SetName(name string) string {
	n.AssertValid()
	g := n.graph
	if sanitizeName(name) == n.name {
		return n.name
	}
	delete(g.names, n.name)
	n.name = g.uniqueName(name)
	g.names.Insert(n.name)
	return n.name
}

// Op returns the kind of operation of the node.
func (n *Node) Op() OpKind { return n.op }

// Target is the operator called (call_function), or the attribute/input name for the other kinds.
func (n *Node) Target() Target { return n.target }

// InputKind is the kind of input of a placeholder node. It is InputKindUser for other kinds of nodes.
func (n *Node) InputKind() InputKind { return n.inputKind }

// IsErased returns whether the node was removed from its graph.
func (n *Node) IsErased() bool { return n.graph == nil }

// AssertValid panics if n is nil or was erased from its graph.
func (n *Node) AssertValid() {
	if n == nil {
		exceptions.Panicf("Node is nil")
	}
	if n.graph == nil {
		exceptions.Panicf("Node %q was erased from its graph", n.name)
	}
}

// Args returns a copy of the positional arguments.
func (n *Node) Args() []Arg { return slices.Clone(n.args) }

// NumArgs returns the number of positional arguments.
func (n *Node) NumArgs() int { return len(n.args) }

// Arg returns the i-th positional argument.
func (n *Node) Arg(i int) Arg { return n.args[i] }

// ArgNode returns the node referenced by the i-th positional argument, or nil if it doesn't
// exist or is not a node reference.
func (n *Node) ArgNode(i int) *Node {
	if i < 0 || i >= len(n.args) {
		return nil
	}
	id, ok := n.args[i].NodeId()
	if !ok || n.graph == nil {
		return nil
	}
	return n.graph.nodes[id]
}

// Kwargs returns a copy of the keyword arguments, in order.
func (n *Node) Kwargs() []Kwarg { return slices.Clone(n.kwargs) }

// Kwarg returns the keyword argument with the given name.
func (n *Node) Kwarg(name string) (Arg, bool) {
	for _, kw := range n.kwargs {
		if kw.Name == name {
			return kw.Value, true
		}
	}
	return Arg{}, false
}

// inputIds returns the ids of the distinct nodes referenced by args and kwargs, in first-seen order.
func (n *Node) inputIds() []NodeId {
	seen := sets.MakeOrdered[NodeId]()
	for _, a := range n.args {
		a.visitRefs(func(id NodeId) { seen.Insert(id) })
	}
	for _, kw := range n.kwargs {
		kw.Value.visitRefs(func(id NodeId) { seen.Insert(id) })
	}
	return seen.Elements()
}

// InputNodes returns the distinct nodes used by n, in the order they first appear in its
// positional and then keyword arguments.
func (n *Node) InputNodes() []*Node {
	n.AssertValid()
	ids := n.inputIds()
	inputs := make([]*Node, len(ids))
	for ii, id := range ids {
		inputs[ii] = n.graph.nodes[id]
	}
	return inputs
}

// Users returns the nodes that use n as an argument, in the order they started using it.
func (n *Node) Users() []*Node {
	n.AssertValid()
	userIds := n.graph.users[n.id]
	users := make([]*Node, 0, userIds.Len())
	for id := range userIds.All {
		users = append(users, n.graph.nodes[id])
	}
	return users
}

// NumUsers returns the number of distinct nodes using n.
func (n *Node) NumUsers() int {
	if n.graph == nil {
		return 0
	}
	return n.graph.users[n.id].Len()
}

// SetArgs replaces the positional arguments of the node, and updates the users of the
// nodes referenced.
func (n *Node) SetArgs(args ...Arg) {
	n.AssertValid()
	g := n.graph
	g.assertRefs(n.name, args, nil)
	g.removeUses(n)
	n.args = slices.Clone(args)
	g.addUses(n)
}

// SetKwargs replaces the keyword arguments of the node, and updates the users of the nodes referenced.
func (n *Node) SetKwargs(kwargs ...Kwarg) {
	n.AssertValid()
	g := n.graph
	g.assertRefs(n.name, nil, kwargs)
	g.removeUses(n)
	n.kwargs = slices.Clone(kwargs)
	g.addUses(n)
}

// ReplaceAllUsesWith makes every user of n use replacement instead.
// It returns the users that were changed.
func (n *Node) ReplaceAllUsesWith(replacement *Node) []*Node {
	return n.replaceUses(replacement, nil)
}

// ReplaceUsesIf is like ReplaceAllUsesWith, but only changes the users for which filter returns true.
func (n *Node) ReplaceUsesIf(replacement *Node, filter func(user *Node) bool) []*Node {
	return n.replaceUses(replacement, filter)
}

func (n *Node) replaceUses(replacement *Node, filter func(user *Node) bool) []*Node {
	n.AssertValid()
	replacement.AssertValid()
	g := n.graph
	if replacement.graph != g {
		exceptions.Panicf("cannot replace uses of %q with %q: they belong to different graphs", n.name, replacement.name)
	}
	if replacement == n {
		return nil
	}
	swap := func(id NodeId) Arg {
		if id == n.id {
			return Ref(replacement)
		}
		return Arg{kind: ArgNode, node: id}
	}
	var changed []*Node
	for _, user := range n.Users() {
		if filter != nil && !filter(user) {
			continue
		}
		g.removeUses(user)
		user.args = mapArgsRefs(user.args, swap)
		user.kwargs = mapKwargsRefs(user.kwargs, swap)
		g.addUses(user)
		changed = append(changed, user)
	}
	return changed
}

// ReplaceInputWith replaces every reference to oldInput in n's arguments by newInput.
func (n *Node) ReplaceInputWith(oldInput, newInput *Node) {
	n.AssertValid()
	newInput.AssertValid()
	g := n.graph
	if oldInput.graph != g || newInput.graph != g {
		exceptions.Panicf("ReplaceInputWith(%q): inputs must belong to the same graph", n.name)
	}
	swap := func(id NodeId) Arg {
		if id == oldInput.id {
			return Ref(newInput)
		}
		return Arg{kind: ArgNode, node: id}
	}
	g.removeUses(n)
	n.args = mapArgsRefs(n.args, swap)
	n.kwargs = mapKwargsRefs(n.kwargs, swap)
	g.addUses(n)
}

// String implements fmt.Stringer. See Node.Format.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	if n.graph == nil {
		return "Node(erased " + n.name + ")"
	}
	return n.Format()
}
