// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fx

import (
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// ArgKind is the type of value held by an Arg.
type ArgKind int

const (
	ArgNone ArgKind = iota
	ArgNode
	ArgInt
	ArgFloat
	ArgBool
	ArgString
	ArgDType
	ArgList
)

// Arg is one operand of a Node: either a reference to another node of the same graph, or a literal.
//
// The zero value is the None literal.
type Arg struct {
	kind  ArgKind
	node  NodeId
	i     int64
	f     float64
	b     bool
	s     string
	dtype dtypes.DType
	list  []Arg
}

// Kwarg is a named operand. Kwargs are kept in the order given.
type Kwarg struct {
	Name  string
	Value Arg
}

// None returns the None literal.
func None() Arg { return Arg{} }

// Ref returns an Arg referencing node. It panics if node is nil.
//
// The reference is kept by NodeId: it must only be used in arguments of nodes of the same graph.
func Ref(node *Node) Arg {
	if node == nil {
		exceptions.Panicf("fx.Ref(nil): cannot reference a nil node")
	}
	return Arg{kind: ArgNode, node: node.id}
}

// Refs returns one Ref per node.
func Refs(nodes ...*Node) []Arg {
	args := make([]Arg, len(nodes))
	for ii, node := range nodes {
		args[ii] = Ref(node)
	}
	return args
}

// Int returns an integer literal.
func Int(v int) Arg { return Arg{kind: ArgInt, i: int64(v)} }

// Float returns a floating point literal.
func Float(v float64) Arg { return Arg{kind: ArgFloat, f: v} }

// Bool returns a boolean literal.
func Bool(v bool) Arg { return Arg{kind: ArgBool, b: v} }

// Str returns a string literal.
func Str(v string) Arg { return Arg{kind: ArgString, s: v} }

// DType returns a data type literal, as used by quantize/dequantize operators.
func DType(dtype dtypes.DType) Arg { return Arg{kind: ArgDType, dtype: dtype} }

// List returns a list of arguments, which may include node references.
func List(elements ...Arg) Arg {
	list := make([]Arg, len(elements))
	copy(list, elements)
	return Arg{kind: ArgList, list: list}
}

// Kind of the value held.
func (a Arg) Kind() ArgKind { return a.kind }

// IsNode returns whether the Arg references a node.
func (a Arg) IsNode() bool { return a.kind == ArgNode }

// NodeId of the referenced node, if Arg is a node reference.
func (a Arg) NodeId() (NodeId, bool) { return a.node, a.kind == ArgNode }

// Int value, if Arg is an integer literal.
func (a Arg) Int() (int, bool) { return int(a.i), a.kind == ArgInt }

// Float value, if Arg is a floating point literal.
func (a Arg) Float() (float64, bool) { return a.f, a.kind == ArgFloat }

// Bool value, if Arg is a boolean literal.
func (a Arg) Bool() (bool, bool) { return a.b, a.kind == ArgBool }

// Str value, if Arg is a string literal.
func (a Arg) Str() (string, bool) { return a.s, a.kind == ArgString }

// DType value, if Arg is a data type literal.
func (a Arg) DType() (dtypes.DType, bool) { return a.dtype, a.kind == ArgDType }

// List elements, if Arg is a list. The returned slice is owned by the Arg and must not be changed.
func (a Arg) List() ([]Arg, bool) { return a.list, a.kind == ArgList }

// Equal compares two args by value. Node references are equal if they reference the same NodeId.
func (a Arg) Equal(b Arg) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case ArgNone:
		return true
	case ArgNode:
		return a.node == b.node
	case ArgInt:
		return a.i == b.i
	case ArgFloat:
		return a.f == b.f
	case ArgBool:
		return a.b == b.b
	case ArgString:
		return a.s == b.s
	case ArgDType:
		return a.dtype == b.dtype
	case ArgList:
		if len(a.list) != len(b.list) {
			return false
		}
		for ii := range a.list {
			if !a.list[ii].Equal(b.list[ii]) {
				return false
			}
		}
		return true
	}
	return false
}

// ArgsEqual compares two lists of args with Arg.Equal.
func ArgsEqual(a, b []Arg) bool {
	if len(a) != len(b) {
		return false
	}
	for ii := range a {
		if !a[ii].Equal(b[ii]) {
			return false
		}
	}
	return true
}

// visitRefs calls fn for every node reference in a, recursing into lists.
func (a Arg) visitRefs(fn func(NodeId)) {
	switch a.kind {
	case ArgNode:
		fn(a.node)
	case ArgList:
		for _, e := range a.list {
			e.visitRefs(fn)
		}
	}
}

// mapRefs returns a copy of a where every node reference was replaced by fn(id).
func (a Arg) mapRefs(fn func(NodeId) Arg) Arg {
	switch a.kind {
	case ArgNode:
		return fn(a.node)
	case ArgList:
		list := make([]Arg, len(a.list))
		for ii, e := range a.list {
			list[ii] = e.mapRefs(fn)
		}
		return Arg{kind: ArgList, list: list}
	}
	return a
}

func mapArgsRefs(args []Arg, fn func(NodeId) Arg) []Arg {
	if args == nil {
		return nil
	}
	mapped := make([]Arg, len(args))
	for ii, a := range args {
		mapped[ii] = a.mapRefs(fn)
	}
	return mapped
}

func mapKwargsRefs(kwargs []Kwarg, fn func(NodeId) Arg) []Kwarg {
	if kwargs == nil {
		return nil
	}
	mapped := make([]Kwarg, len(kwargs))
	for ii, kw := range kwargs {
		mapped[ii] = Kwarg{Name: kw.Name, Value: kw.Value.mapRefs(fn)}
	}
	return mapped
}

// format renders the Arg, using nodeName to render node references.
func (a Arg) format(nodeName func(NodeId) string) string {
	switch a.kind {
	case ArgNone:
		return "None"
	case ArgNode:
		return nodeName(a.node)
	case ArgInt:
		return strconv.FormatInt(a.i, 10)
	case ArgFloat:
		return strconv.FormatFloat(a.f, 'g', -1, 64)
	case ArgBool:
		if a.b {
			return "True"
		}
		return "False"
	case ArgString:
		return strconv.Quote(a.s)
	case ArgDType:
		return a.dtype.String()
	case ArgList:
		parts := make([]string, len(a.list))
		for ii, e := range a.list {
			parts[ii] = e.format(nodeName)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "?"
}
