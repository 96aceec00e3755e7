// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package delegate implements the graph passes used to hand parts of a graph over to backends
// (delegates):
//
//   - TagConstantData assigns constants (parameters, buffers, lifted constants) to the partition
//     of their users, after a partitioner tagged the compute nodes.
//   - ReplaceQuantizedPartitionWithOp fuses a quantized partition, together with its
//     dequantize/quantize boundaries, into a single operator call.
//   - ToBackend and LowerTaggedPartitions replace partitions by calls to lowered modules,
//     produced by a registered Backend.
//   - DelegateMappingBuilder accumulates the mapping from delegate debug identifiers to the
//     debug handles of the original nodes, used for profiling.
//   - NonLoweredNodes, Delegates and PrintDelegatedGraph inspect the result.
//
// All passes mutate the graph in place and are not safe for concurrent use on the same graph.
// Errors wrap one of the sentinel errors below, and can be tested with errors.Is.
package delegate

import (
	"github.com/pkg/errors"
)

var (
	// ErrOwnershipConflict is returned when a constant is used by nodes with different delegation tags.
	ErrOwnershipConflict = errors.New("constant data owned by more than one delegate")

	// ErrArgumentConflict is returned when a mapping entry is given both nodes and handles, or neither.
	ErrArgumentConflict = errors.New("exactly one of nodes or handles must be given")

	// ErrIdentifierConflict is returned when an identifier is given to a builder that generates them.
	ErrIdentifierConflict = errors.New("builder with generated identifiers can't take an explicit identifier")

	// ErrMissingIdentifier is returned when no identifier is given to a builder that doesn't generate them.
	ErrMissingIdentifier = errors.New("missing delegate debug identifier")

	// ErrDuplicateIdentifier is returned when an identifier is inserted twice in a mapping.
	ErrDuplicateIdentifier = errors.New("duplicate delegate debug identifier")

	// ErrEmptyHandleSet is returned when a mapping entry has no debug handle.
	ErrEmptyHandleSet = errors.New("no valid debug handle for mapping entry")

	// ErrMissingQuantBoundary is returned when a quantized partition has no dequantize input or no quantize output.
	ErrMissingQuantBoundary = errors.New("missing quantization boundary")
)
