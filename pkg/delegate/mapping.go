// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/support/sets"
	"github.com/pkg/errors"
)

// Identifier is a delegate debug identifier: an integer or a string.
// The zero value is NoIdentifier.
type Identifier struct {
	kind identifierKind
	i    int
	s    string
}

type identifierKind int

const (
	identifierNone identifierKind = iota
	identifierInt
	identifierString
)

// NoIdentifier is used when no identifier is given.
var NoIdentifier = Identifier{}

// IntId returns an integer Identifier.
func IntId(i int) Identifier { return Identifier{kind: identifierInt, i: i} }

// StrId returns a string Identifier.
func StrId(s string) Identifier { return Identifier{kind: identifierString, s: s} }

// IsSet returns whether id is not NoIdentifier.
func (id Identifier) IsSet() bool { return id.kind != identifierNone }

// Int returns the value of an integer identifier.
func (id Identifier) Int() (int, bool) { return id.i, id.kind == identifierInt }

// Str returns the value of a string identifier.
func (id Identifier) Str() (string, bool) { return id.s, id.kind == identifierString }

// String implements fmt.Stringer. String identifiers are quoted.
func (id Identifier) String() string {
	switch id.kind {
	case identifierInt:
		return strconv.Itoa(id.i)
	case identifierString:
		return strconv.Quote(id.s)
	}
	return "None"
}

// CompareIdentifiers orders integers before strings, integers numerically and strings lexicographically.
func CompareIdentifiers(a, b Identifier) int {
	if a.kind != b.kind {
		return int(a.kind) - int(b.kind)
	}
	switch {
	case a.i < b.i || (a.i == b.i && a.s < b.s):
		return -1
	case a == b:
		return 0
	}
	return 1
}

// MappingEntry is one entry to insert in a DelegateMappingBuilder.
//
// Exactly one of Nodes or Handles must be non-nil. Debug handles are taken from the nodes
// (Meta.DebugHandle) or from Handles, dropping unset ones.
type MappingEntry struct {
	Nodes      []*fx.Node
	Handles    []fx.DebugHandle
	Identifier Identifier
}

// DelegateMappingBuilder accumulates the mapping from delegate debug identifiers to the debug handles
// of the original nodes, built by backends while lowering a graph, and used for profiling.
//
// A builder either generates its identifiers (0, 1, 2, ...) or takes them from the caller, and this
// is fixed when it's created. Entries are never merged or changed once inserted.
//
// It is not safe for concurrent use.
type DelegateMappingBuilder struct {
	generated bool
	nextIndex int
	order     []Identifier
	handles   map[Identifier]sets.Set[int]
}

// NewDelegateMappingBuilder creates an empty builder. If generated is true identifiers are generated
// by the builder, otherwise they must be given with each entry.
func NewDelegateMappingBuilder(generated bool) *DelegateMappingBuilder {
	return &DelegateMappingBuilder{
		generated: generated,
		handles:   make(map[Identifier]sets.Set[int]),
	}
}

// Generated returns whether the builder generates its identifiers.
func (b *DelegateMappingBuilder) Generated() bool { return b.generated }

// Len returns the number of entries inserted.
func (b *DelegateMappingBuilder) Len() int { return len(b.order) }

// Insert adds entry to the mapping, and returns its identifier.
//
// Errors wrap ErrArgumentConflict, ErrIdentifierConflict, ErrMissingIdentifier, ErrDuplicateIdentifier or
// ErrEmptyHandleSet. A failed insertion adds no entry. In a builder generating identifiers, the identifier is
// taken before the handles are checked, so an entry failing with ErrEmptyHandleSet still consumes it.
func (b *DelegateMappingBuilder) Insert(entry MappingEntry) (Identifier, error) {
	if (entry.Nodes == nil) == (entry.Handles == nil) {
		return NoIdentifier, errors.Wrapf(ErrArgumentConflict, "mapping entry with %d nodes and %d handles",
			len(entry.Nodes), len(entry.Handles))
	}
	id := entry.Identifier
	switch {
	case b.generated && id.IsSet():
		return NoIdentifier, errors.Wrapf(ErrIdentifierConflict, "identifier %s", id)
	case b.generated:
		id = IntId(b.nextIndex)
		b.nextIndex++
	case !id.IsSet():
		return NoIdentifier, errors.WithStack(ErrMissingIdentifier)
	}
	if _, found := b.handles[id]; found {
		return NoIdentifier, errors.Wrapf(ErrDuplicateIdentifier, "identifier %s", id)
	}

	handles := sets.Make[int]()
	if entry.Nodes != nil {
		for _, node := range entry.Nodes {
			if h, ok := node.Meta.DebugHandle.Value(); ok {
				handles.Insert(h)
			}
		}
	} else {
		for _, handle := range entry.Handles {
			if h, ok := handle.Value(); ok {
				handles.Insert(h)
			}
		}
	}
	if len(handles) == 0 {
		return NoIdentifier, errors.Wrapf(ErrEmptyHandleSet, "entry %s", id)
	}

	b.handles[id] = handles
	b.order = append(b.order, id)
	return id, nil
}

// InsertNodes is a shortcut to Insert the debug handles of nodes.
// Use NoIdentifier with builders that generate identifiers.
func (b *DelegateMappingBuilder) InsertNodes(id Identifier, nodes ...*fx.Node) (Identifier, error) {
	if nodes == nil {
		nodes = []*fx.Node{}
	}
	return b.Insert(MappingEntry{Nodes: nodes, Identifier: id})
}

// InsertHandles is a shortcut to Insert the given debug handles.
// Use NoIdentifier with builders that generate identifiers.
func (b *DelegateMappingBuilder) InsertHandles(id Identifier, handles ...fx.DebugHandle) (Identifier, error) {
	if handles == nil {
		handles = []fx.DebugHandle{}
	}
	return b.Insert(MappingEntry{Handles: handles, Identifier: id})
}

// Identifiers returns the identifiers inserted, in insertion order.
func (b *DelegateMappingBuilder) Identifiers() []Identifier {
	return slices.Clone(b.order)
}

// Mapping returns a snapshot of the mapping: for each identifier, the sorted distinct debug handles.
// The returned map and slices are owned by the caller.
func (b *DelegateMappingBuilder) Mapping() map[Identifier][]int {
	mapping := make(map[Identifier][]int, len(b.handles))
	for id, handles := range b.handles {
		sorted := make([]int, 0, len(handles))
		for h := range handles {
			sorted = append(sorted, h)
		}
		slices.Sort(sorted)
		mapping[id] = sorted
	}
	return mapping
}

// FormatMapping renders a mapping one entry per line, sorted by identifier (see CompareIdentifiers).
func FormatMapping(mapping map[Identifier][]int) string {
	ids := make([]Identifier, 0, len(mapping))
	for id := range mapping {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, CompareIdentifiers)
	var sb strings.Builder
	for _, id := range ids {
		_, _ = fmt.Fprintf(&sb, "%s: %v\n", id, mapping[id])
	}
	return sb.String()
}
