// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fx

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
)

// DebugHandle is an optional integer assigned at trace time to each node, used to attribute
// profiling information of delegates back to the original graph.
//
// The zero value is NoHandle.
type DebugHandle struct {
	value int
	valid bool
}

// NoHandle represents a missing debug handle.
var NoHandle = DebugHandle{}

// Handle returns a set DebugHandle with the given value.
func Handle(value int) DebugHandle {
	return DebugHandle{value: value, valid: true}
}

// Handles converts a list of values to set debug handles.
func Handles(values ...int) []DebugHandle {
	handles := make([]DebugHandle, len(values))
	for ii, v := range values {
		handles[ii] = Handle(v)
	}
	return handles
}

// Value returns the handle value and whether it is set.
func (h DebugHandle) Value() (int, bool) {
	return h.value, h.valid
}

// IsSet returns whether the handle holds a value.
func (h DebugHandle) IsSet() bool {
	return h.valid
}

// String implements fmt.Stringer.
func (h DebugHandle) String() string {
	if !h.valid {
		return "None"
	}
	return fmt.Sprintf("%d", h.value)
}

// TensorMeta describes the value produced by a node, when known.
type TensorMeta struct {
	DType dtypes.DType
	Dims  []int
}

// String implements fmt.Stringer.
func (t *TensorMeta) String() string {
	if t == nil {
		return "?"
	}
	return fmt.Sprintf("(%s)%v", t.DType, t.Dims)
}

// Meta is the metadata attached to a Node.
type Meta struct {
	// DebugHandle assigned at trace time, if any.
	DebugHandle DebugHandle

	// DelegationTag assigned by a partitioner; empty means the node is not tagged.
	DelegationTag string

	// SourceHandles holds the sorted debug handles of the nodes a call node stands in for, after a splice.
	SourceHandles []int

	// Val describes the produced value.
	Val *TensorMeta

	// Extra holds metadata not known by this package, e.g. coming from the front-end.
	Extra map[string]any
}

// Clone returns a deep copy of m. Values in Extra are copied shallowly.
func (m Meta) Clone() Meta {
	c := m
	c.SourceHandles = slices.Clone(m.SourceHandles)
	if m.Val != nil {
		c.Val = &TensorMeta{DType: m.Val.DType, Dims: slices.Clone(m.Val.Dims)}
	}
	if m.Extra != nil {
		c.Extra = maps.Clone(m.Extra)
	}
	return c
}
