// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fx

// OpKind is the kind of operation a Node performs.
type OpKind int

const (
	OpKindInvalid OpKind = iota

	// OpKindPlaceholder is an input to the graph. Its target is the input name.
	OpKindPlaceholder

	// OpKindGetAttr fetches an attribute owned by the graph (a constant, a submodule or a lowered module).
	// Its target is the attribute name.
	OpKindGetAttr

	// OpKindCallFunction calls the operator given by its target.
	OpKindCallFunction

	// OpKindCallModule calls a submodule stored as a graph attribute, named by its target.
	OpKindCallModule

	// OpKindOutput returns the values of the graph. There must be exactly one, and it must be the last node.
	OpKindOutput
)

// InputKind tells what a placeholder feeds into the graph: user inputs, or constant data that
// was lifted into an input (parameters, buffers and tensor constants).
type InputKind int

const (
	InputKindUser InputKind = iota
	InputKindParameter
	InputKindBuffer
	InputKindConstantTensor
)

// IsConstantData returns whether the input carries constant data (parameter, buffer or lifted tensor constant).
func (k InputKind) IsConstantData() bool {
	return k == InputKindParameter || k == InputKindBuffer || k == InputKindConstantTensor
}
