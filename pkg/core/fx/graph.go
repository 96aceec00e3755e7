// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fx

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/gomlx/delegate/pkg/support/sets"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Graph owns an ordered sequence of nodes, and the attributes (constants, submodules, lowered
// modules) referenced by its get_attr and call_module nodes.
//
// The order of the nodes is the execution order: a valid graph has every node after the nodes
// it uses, and exactly one output node, in the last position. See Graph.Lint.
//
// A Graph is not safe for concurrent use: callers must serialize mutations.
type Graph struct {
	name string

	// nodes is the arena of all live nodes, order is their execution order.
	nodes map[NodeId]*Node
	order []NodeId

	// users is the reverse index of the node references in args and kwargs.
	users map[NodeId]*sets.Ordered[NodeId]

	names  sets.Set[string]
	suffix map[string]int // Last numeric suffix used per base name.
	nextId NodeId
	attrs  map[string]any

	// insertPoint, if set, is the node before which new nodes are inserted.
	insertPoint *Node
}

var (
	muGraphCount sync.Mutex
	graphCount   int
)

// NewGraph creates an empty Graph. If name is empty a unique one is generated.
func NewGraph(name string) *Graph {
	if name == "" {
		muGraphCount.Lock()
		name = fmt.Sprintf("graph_#%d", graphCount)
		graphCount++
		muGraphCount.Unlock()
	}
	return &Graph{
		name:   name,
		nodes:  make(map[NodeId]*Node),
		users:  make(map[NodeId]*sets.Ordered[NodeId]),
		names:  sets.Make[string](),
		suffix: make(map[string]int),
		attrs:  make(map[string]any),
	}
}

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.order) }

// Nodes returns the nodes of the graph in execution order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, len(g.order))
	for ii, id := range g.order {
		nodes[ii] = g.nodes[id]
	}
	return nodes
}

// NodeById returns the node with the given id, or nil if there is none.
func (g *Graph) NodeById(id NodeId) *Node {
	return g.nodes[id]
}

// NodeByName returns the node with the given name, or nil if there is none.
func (g *Graph) NodeByName(name string) *Node {
	if !g.names.Has(name) {
		return nil
	}
	for _, id := range g.order {
		if g.nodes[id].name == name {
			return g.nodes[id]
		}
	}
	return nil
}

// OutputNode returns the output node, or nil if it was not yet created.
func (g *Graph) OutputNode() *Node {
	for ii := len(g.order) - 1; ii >= 0; ii-- {
		if node := g.nodes[g.order[ii]]; node.op == OpKindOutput {
			return node
		}
	}
	return nil
}

// Placeholders returns the placeholder nodes, in order.
func (g *Graph) Placeholders() []*Node {
	var placeholders []*Node
	for _, id := range g.order {
		if node := g.nodes[id]; node.op == OpKindPlaceholder {
			placeholders = append(placeholders, node)
		}
	}
	return placeholders
}

// Placeholder creates an input of the given kind.
func (g *Graph) Placeholder(name string, kind InputKind) *Node {
	node := g.newNode(OpKindPlaceholder, AttrTarget(name), name, nil, nil)
	node.inputKind = kind
	return node
}

// GetAttr creates a node that fetches the graph attribute name. See Graph.SetAttr.
func (g *Graph) GetAttr(name string) *Node {
	return g.newNode(OpKindGetAttr, AttrTarget(name), name, nil, nil)
}

// CallFunction creates a node calling the operator target.
func (g *Graph) CallFunction(target Target, args []Arg, kwargs ...Kwarg) *Node {
	if target.IsZero() {
		exceptions.Panicf("Graph(%q).CallFunction with an empty target", g.name)
	}
	return g.newNode(OpKindCallFunction, target, target.nameHint(), args, kwargs)
}

// CallModule creates a node calling the submodule stored in the graph attribute name.
func (g *Graph) CallModule(name string, args []Arg, kwargs ...Kwarg) *Node {
	return g.newNode(OpKindCallModule, AttrTarget(name), name, args, kwargs)
}

// Output creates the output node of the graph, returning values. It panics if the graph already has one.
func (g *Graph) Output(values ...Arg) *Node {
	if g.OutputNode() != nil {
		exceptions.Panicf("Graph(%q) already has an output node", g.name)
	}
	return g.newNode(OpKindOutput, AttrTarget("output"), "output", values, nil)
}

// InsertingBefore calls fn with the graph set to insert new nodes before node.
//
// By default, new nodes are appended at the end of the graph, but before the output node if there is one.
func (g *Graph) InsertingBefore(node *Node, fn func()) {
	node.AssertValid()
	if node.graph != g {
		exceptions.Panicf("Graph(%q).InsertingBefore(%q): node belongs to another graph", g.name, node.name)
	}
	previous := g.insertPoint
	g.insertPoint = node
	defer func() { g.insertPoint = previous }()
	fn()
}

func (g *Graph) newNode(op OpKind, target Target, nameHint string, args []Arg, kwargs []Kwarg) *Node {
	g.assertRefs(nameHint, args, kwargs)
	node := &Node{
		graph:  g,
		id:     g.nextId,
		name:   g.uniqueName(nameHint),
		op:     op,
		target: target,
		args:   slices.Clone(args),
		kwargs: slices.Clone(kwargs),
	}
	g.nextId++
	g.nodes[node.id] = node
	g.names.Insert(node.name)

	pos := len(g.order)
	switch {
	case g.insertPoint != nil:
		pos = slices.Index(g.order, g.insertPoint.id)
	case pos > 0 && g.nodes[g.order[pos-1]].op == OpKindOutput:
		pos--
	}
	g.order = slices.Insert(g.order, pos, node.id)
	g.addUses(node)
	return node
}

// uniqueName returns hint sanitized, with a numeric suffix if the name is already taken.
func (g *Graph) uniqueName(hint string) string {
	base := sanitizeName(hint)
	if !g.names.Has(base) {
		return base
	}
	for ii := g.suffix[base] + 1; ; ii++ {
		candidate := fmt.Sprintf("%s_%d", base, ii)
		if !g.names.Has(candidate) {
			g.suffix[base] = ii
			return candidate
		}
	}
}

// assertRefs panics if any node referenced in args or kwargs is not a live node of g.
func (g *Graph) assertRefs(nodeName string, args []Arg, kwargs []Kwarg) {
	check := func(id NodeId) {
		if _, found := g.nodes[id]; !found {
			exceptions.Panicf("Graph(%q): node %q references node #%d which is not part of the graph",
				g.name, nodeName, id)
		}
	}
	for _, a := range args {
		a.visitRefs(check)
	}
	for _, kw := range kwargs {
		kw.Value.visitRefs(check)
	}
}

func (g *Graph) addUses(node *Node) {
	for _, id := range node.inputIds() {
		users := g.users[id]
		if users == nil {
			users = sets.MakeOrdered[NodeId]()
			g.users[id] = users
		}
		users.Insert(node.id)
	}
}

func (g *Graph) removeUses(node *Node) {
	for _, id := range node.inputIds() {
		if users := g.users[id]; users != nil {
			users.Remove(node.id)
		}
	}
}

// EraseNode removes node from the graph. It panics if the node is still used by other nodes.
func (g *Graph) EraseNode(node *Node) {
	g.detach(node)
	g.compactOrder()
}

// detach removes node from the graph, except from the execution order: callers removing many nodes
// call compactOrder once when done.
func (g *Graph) detach(node *Node) {
	node.AssertValid()
	if node.graph != g {
		exceptions.Panicf("Graph(%q).EraseNode(%q): node belongs to another graph", g.name, node.name)
	}
	if node.NumUsers() > 0 {
		exceptions.Panicf("Graph(%q).EraseNode(%q): node still has %d users: %v",
			g.name, node.name, node.NumUsers(), nodeNames(node.Users()))
	}
	if g.insertPoint == node {
		exceptions.Panicf("Graph(%q).EraseNode(%q): node is the current insertion point", g.name, node.name)
	}
	g.removeUses(node)
	delete(g.users, node.id)
	delete(g.nodes, node.id)
	delete(g.names, node.name)
	node.graph = nil
}

// compactOrder drops detached nodes from the execution order.
func (g *Graph) compactOrder() {
	g.order = slices.DeleteFunc(g.order, func(id NodeId) bool {
		_, alive := g.nodes[id]
		return !alive
	})
}

// EliminateDeadCode removes call and get_attr nodes whose value is not used, until none is left.
// Placeholders and the output node are never removed. It returns the number of nodes removed.
func (g *Graph) EliminateDeadCode() int {
	var removed int
	for ii := len(g.order) - 1; ii >= 0; ii-- {
		node := g.nodes[g.order[ii]]
		switch node.op {
		case OpKindCallFunction, OpKindCallModule, OpKindGetAttr:
			if node.NumUsers() == 0 {
				klog.V(2).Infof("Graph(%q): removing dead node %q", g.name, node.name)
				g.detach(node)
				removed++
			}
		}
	}
	if removed > 0 {
		g.compactOrder()
	}
	return removed
}

// SetAttr sets a graph attribute, referenced by get_attr and call_module nodes through their target name.
func (g *Graph) SetAttr(name string, value any) {
	g.attrs[name] = value
}

// Attr returns the graph attribute with the given name.
func (g *Graph) Attr(name string) (value any, found bool) {
	value, found = g.attrs[name]
	return
}

// DeleteAttr removes a graph attribute.
func (g *Graph) DeleteAttr(name string) {
	delete(g.attrs, name)
}

// AttrNames returns the names of the graph attributes, sorted.
func (g *Graph) AttrNames() []string {
	names := make([]string, 0, len(g.attrs))
	for name := range g.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SubGraph returns the graph stored in the attribute name, if it is one.
func (g *Graph) SubGraph(name string) (*Graph, bool) {
	sub, ok := g.attrs[name].(*Graph)
	return sub, ok
}

// Lint checks the graph invariants, and returns an error wrapping ErrInvalidGraph describing
// the first violation found:
//
//   - every node referenced as an argument is a node of the graph that comes before its user;
//   - get_attr and call_module nodes refer to existing attributes;
//   - there is exactly one output node, and it is the last one;
//   - the users index matches the arguments.
func (g *Graph) Lint() error {
	seen := sets.Make[NodeId](len(g.order))
	expectedUsers := make(map[NodeId]sets.Set[NodeId])
	var numOutputs int
	for pos, id := range g.order {
		node := g.nodes[id]
		if node == nil || node.id != id || node.graph != g {
			return errors.Wrapf(ErrInvalidGraph, "graph %q: position %d holds an invalid node #%d", g.name, pos, id)
		}
		for _, inputId := range node.inputIds() {
			if !seen.Has(inputId) {
				input := g.nodes[inputId]
				if input == nil {
					return errors.Wrapf(ErrInvalidGraph, "graph %q: node %q uses node #%d which is not in the graph",
						g.name, node.name, inputId)
				}
				return errors.Wrapf(ErrInvalidGraph, "graph %q: node %q uses %q which does not precede it",
					g.name, node.name, input.name)
			}
			if expectedUsers[inputId] == nil {
				expectedUsers[inputId] = sets.Make[NodeId]()
			}
			expectedUsers[inputId].Insert(id)
		}
		switch node.op {
		case OpKindGetAttr, OpKindCallModule:
			if _, found := g.attrs[node.target.Name]; !found {
				return errors.Wrapf(ErrInvalidGraph, "graph %q: node %q refers to missing attribute %q",
					g.name, node.name, node.target.Name)
			}
		case OpKindOutput:
			numOutputs++
			if pos != len(g.order)-1 {
				return errors.Wrapf(ErrInvalidGraph, "graph %q: output node %q is not the last node", g.name, node.name)
			}
		case OpKindInvalid:
			return errors.Wrapf(ErrInvalidGraph, "graph %q: node %q has an invalid op kind", g.name, node.name)
		}
		seen.Insert(id)
	}
	if len(seen) != len(g.nodes) {
		return errors.Wrapf(ErrInvalidGraph, "graph %q: %d nodes are not in the execution order",
			g.name, len(g.nodes)-len(seen))
	}
	if numOutputs != 1 {
		return errors.Wrapf(ErrInvalidGraph, "graph %q: expected exactly one output node, got %d", g.name, numOutputs)
	}
	for id := range g.nodes {
		if !g.users[id].ToSet().Equal(expectedUsers[id]) {
			return errors.Wrapf(ErrInvalidGraph, "graph %q: users index of node %q is out of sync",
				g.name, g.nodes[id].name)
		}
	}
	return nil
}

// Recompile rebuilds the users index from the node arguments and validates the graph with Lint.
// It should be called after a pass finishes mutating the graph.
func (g *Graph) Recompile() error {
	g.users = make(map[NodeId]*sets.Ordered[NodeId], len(g.nodes))
	for _, id := range g.order {
		g.addUses(g.nodes[id])
	}
	if err := g.Lint(); err != nil {
		return err
	}
	klog.V(2).Infof("Graph(%q) recompiled: %d nodes", g.name, len(g.order))
	return nil
}

// Copy returns an independent copy of the graph: same node names, ops, targets, arguments and
// metadata, in the same order. Attributes holding a *Graph are copied recursively, others are shared.
func (g *Graph) Copy() *Graph {
	c := NewGraph(g.name)
	idMap := make(map[NodeId]NodeId, len(g.nodes))
	remap := func(id NodeId) Arg { return Arg{kind: ArgNode, node: idMap[id]} }
	for _, id := range g.order {
		node := g.nodes[id]
		nodeCopy := c.newNode(node.op, node.target, node.name,
			mapArgsRefs(node.args, remap), mapKwargsRefs(node.kwargs, remap))
		nodeCopy.inputKind = node.inputKind
		nodeCopy.Meta = node.Meta.Clone()
		idMap[id] = nodeCopy.id
	}
	for name, value := range g.attrs {
		if sub, ok := value.(*Graph); ok {
			value = sub.Copy()
		}
		c.attrs[name] = value
	}
	return c
}

// positions returns the position of each node in the execution order.
func (g *Graph) positions() map[NodeId]int {
	pos := make(map[NodeId]int, len(g.order))
	for ii, id := range g.order {
		pos[id] = ii
	}
	return pos
}

// legalize re-sorts the nodes topologically, moving a node only when one of its inputs comes after it.
// Among the nodes ready to be placed, the one earliest in the current order goes first.
func (g *Graph) legalize() {
	pos := g.positions()
	if g.isOrdered(pos) {
		return
	}
	pending := make(map[NodeId]int, len(g.order))
	var ready []NodeId
	insertReady := func(id NodeId) {
		at, _ := slices.BinarySearchFunc(ready, pos[id], func(e NodeId, p int) int { return pos[e] - p })
		ready = slices.Insert(ready, at, id)
	}
	for _, id := range g.order {
		pending[id] = len(g.nodes[id].inputIds())
		if pending[id] == 0 {
			insertReady(id)
		}
	}
	newOrder := make([]NodeId, 0, len(g.order))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		newOrder = append(newOrder, id)
		for userId := range g.users[id].All {
			pending[userId]--
			if pending[userId] == 0 {
				insertReady(userId)
			}
		}
	}
	if len(newOrder) != len(g.order) {
		panic(errors.Wrapf(ErrInvalidGraph, "graph %q has a cycle: only %d of %d nodes could be ordered",
			g.name, len(newOrder), len(g.order)))
	}
	g.order = newOrder
}

// isOrdered returns whether every node comes after its inputs.
func (g *Graph) isOrdered(pos map[NodeId]int) bool {
	for ii, id := range g.order {
		for _, inputId := range g.nodes[id].inputIds() {
			if pos[inputId] >= ii {
				return false
			}
		}
	}
	return true
}

// String renders the graph, one node per line. See Node.Format.
func (g *Graph) String() string {
	parts := []string{"graph():"}
	for _, node := range g.Nodes() {
		parts = append(parts, "  "+node.Format())
	}
	return strings.Join(parts, "\n")
}

func nodeNames(nodes []*Node) []string {
	names := make([]string, len(nodes))
	for ii, node := range nodes {
		names[ii] = node.name
	}
	return names
}
