// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"slices"
	"sync"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/exceptions"
)

// CompileSpec is an option passed to a Backend when lowering a partition. Its meaning is
// backend specific.
type CompileSpec struct {
	Key   string `yaml:"key"`
	Value []byte `yaml:"value"`
}

// PreprocessResult is what a Backend produces for a partition.
type PreprocessResult struct {
	// ProcessedBytes is the compiled program, opaque to this package.
	ProcessedBytes []byte

	// DebugHandleMap maps the backend debug identifiers to the debug handles of the original nodes,
	// usually built with a DelegateMappingBuilder. It can be nil.
	DebugHandleMap map[Identifier][]int
}

// Backend compiles partitions of a graph.
type Backend interface {
	// ID is the unique name of the backend, e.g. "BackendWithCompilerDemo".
	ID() string

	// Preprocess compiles the submodule holding the partition.
	// It must not change the submodule.
	Preprocess(submodule *fx.Graph, specs []CompileSpec) (*PreprocessResult, error)
}

var (
	muBackends sync.Mutex
	backends   = make(map[string]Backend)
)

// RegisterBackend makes backend available by its ID with GetBackend. It panics if another
// backend was registered with the same ID.
//
// To be safe, call RegisterBackend during initialization of a package.
func RegisterBackend(backend Backend) {
	muBackends.Lock()
	defer muBackends.Unlock()
	id := backend.ID()
	if previous, found := backends[id]; found && previous != backend {
		exceptions.Panicf("delegate backend %q registered twice", id)
	}
	backends[id] = backend
}

// GetBackend returns the registered backend with the given ID.
func GetBackend(id string) (Backend, bool) {
	muBackends.Lock()
	defer muBackends.Unlock()
	backend, found := backends[id]
	return backend, found
}

// RegisteredBackends returns the IDs of the registered backends, sorted.
func RegisteredBackends() []string {
	muBackends.Lock()
	defer muBackends.Unlock()
	ids := make([]string, 0, len(backends))
	for id := range backends {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
