// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fx holds the traced computation graph used by the delegation passes.
//
// A Graph owns an ordered list of Node's: the order is the execution order, and every node
// must come after the nodes it uses as arguments. Nodes reference each other through
// arguments (see Arg), by NodeId, and the Graph keeps the reverse index (Node.Users)
// up to date on every mutation.
//
// The main elements in the package are:
//
//   - Graph and Node: the graph model, with building methods (Placeholder, GetAttr, CallFunction,
//     Output) and mutation methods (Node.SetArgs, Node.ReplaceAllUsesWith, Graph.EraseNode, ...).
//
//   - EqualityChecker: structural comparison of nodes and whole graphs.
//
//   - CreateSubmoduleFromNodes: splices a subset of nodes out into its own Graph, replacing them
//     with a single call node in the parent.
//
// # Error Handling
//
// Like the rest of the library, building a graph "throws" errors with panic() when it is misused
// (a node from another graph, erasing a node still in use, etc.): those are bugs in the caller.
// Passes that can fail on valid-looking input (e.g. CreateSubmoduleFromNodes on a non-convex
// selection) return an error instead.
package fx

//go:generate go tool enumer -type=OpKind -trimprefix=OpKind -transform=snake -output=gen_opkind_enumer.go opkind.go
//go:generate go tool enumer -type=InputKind -trimprefix=InputKind -transform=snake -output=gen_inputkind_enumer.go opkind.go
//go:generate go tool enumer -type=ArgKind -trimprefix=Arg -output=gen_argkind_enumer.go arg.go

import "github.com/pkg/errors"

// NodeId is a unique id of a Node within a Graph. Ids are never reused, even after a node is erased.
type NodeId int

// InvalidNodeId is returned for nodes that don't belong to a graph (e.g. erased ones).
const InvalidNodeId = NodeId(-1)

var (
	// ErrNonConvexPartition is returned when a set of nodes can't be replaced by a single call
	// node without creating a cycle: some path leaves the set and comes back into it.
	ErrNonConvexPartition = errors.New("node set is not convex")

	// ErrDepthExceeded is thrown when the comparison of two nodes goes deeper than
	// EqualityChecker.WithMaxDepth allows.
	ErrDepthExceeded = errors.New("maximum comparison depth exceeded")

	// ErrInvalidGraph is returned by Graph.Lint when an invariant of the graph is broken.
	ErrInvalidGraph = errors.New("invalid graph")
)
