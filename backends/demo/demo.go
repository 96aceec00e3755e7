// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package demo implements a toy delegation backend, "BackendWithCompilerDemo", that "compiles" a
// partition into a textual program: one instruction per call_function node.
//
// It's used by tests and by the delegate_inspect tool. To use it, import it for its side effect
// of registering the backend:
//
//	import _ "github.com/gomlx/delegate/backends/demo"
package demo

import (
	"fmt"
	"strings"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/gomlx/delegate/pkg/delegate"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendID is the ID the backend is registered with.
const BackendID = "BackendWithCompilerDemo"

// Compile specs keys understood by the backend.
const (
	// SpecMaxInstructions limits the number of instructions of a program, given as a decimal number.
	SpecMaxInstructions = "max_instructions"

	// SpecNodeNames appends the original node name to each instruction, if set to "true".
	SpecNodeNames = "node_names"
)

// SupportedTargets lists the operators the backend can compile.
var SupportedTargets = []fx.Target{
	ops.Add, ops.Sub, ops.Mul, ops.MatMul, ops.AddMM, ops.Linear, ops.Relu,
}

// Backend implements delegate.Backend.
type Backend struct {
	supported map[fx.Target]bool
}

// New returns a new demo Backend.
func New() *Backend {
	b := &Backend{supported: make(map[fx.Target]bool, len(SupportedTargets))}
	for _, target := range SupportedTargets {
		b.supported[target] = true
	}
	return b
}

// Default is the instance registered with delegate.RegisterBackend.
var Default = New()

func init() {
	delegate.RegisterBackend(Default)
}

// Compile-time check.
var _ delegate.Backend = (*Backend)(nil)

// ID implements delegate.Backend.
func (b *Backend) ID() string { return BackendID }

// IsSupported returns whether the backend can compile the node. It can be used as
// partitioner.CapabilityPartitioner.Supported.
func (b *Backend) IsSupported(node *fx.Node) bool {
	return node.Op() == fx.OpKindCallFunction && b.supported[node.Target()]
}

type options struct {
	maxInstructions int
	nodeNames       bool
}

func parseSpecs(specs []delegate.CompileSpec) (options, error) {
	var opts options
	for _, spec := range specs {
		switch spec.Key {
		case SpecMaxInstructions:
			if _, err := fmt.Sscanf(string(spec.Value), "%d", &opts.maxInstructions); err != nil {
				return opts, errors.Wrapf(err, "invalid compile spec %q=%q", spec.Key, spec.Value)
			}
		case SpecNodeNames:
			opts.nodeNames = string(spec.Value) == "true"
		default:
			return opts, errors.Errorf("backend %q: unknown compile spec %q", BackendID, spec.Key)
		}
	}
	return opts, nil
}

// Preprocess implements delegate.Backend.
//
// The program has one line per call_function node of the submodule, in order:
//
//	<instruction index>#<operator>#<comma separated arguments>
//
// Arguments referencing the submodule inputs are rendered as "$<input index>", and arguments referencing
// previous instructions as "%<instruction index>". The debug handle map has one entry per instruction,
// mapping the instruction index to the debug handle of the node it was compiled from.
func (b *Backend) Preprocess(submodule *fx.Graph, specs []delegate.CompileSpec) (*delegate.PreprocessResult, error) {
	opts, err := parseSpecs(specs)
	if err != nil {
		return nil, err
	}
	refs := make(map[fx.NodeId]string)
	for ii, placeholder := range submodule.Placeholders() {
		refs[placeholder.Id()] = fmt.Sprintf("$%d", ii)
	}
	mapping := delegate.NewDelegateMappingBuilder(false)
	var sb strings.Builder
	numInstructions := 0
	for _, node := range submodule.Nodes() {
		switch node.Op() {
		case fx.OpKindPlaceholder, fx.OpKindOutput:
			continue
		case fx.OpKindCallFunction:
			if !b.supported[node.Target()] {
				return nil, errors.Errorf("backend %q doesn't support operator %s (node %q)",
					BackendID, node.Target(), node.Name())
			}
		default:
			return nil, errors.Errorf("backend %q doesn't support %s node %q", BackendID, node.Op(), node.Name())
		}
		if opts.maxInstructions > 0 && numInstructions == opts.maxInstructions {
			return nil, errors.Errorf("backend %q: partition exceeds %d instructions", BackendID, opts.maxInstructions)
		}

		args := make([]string, 0, node.NumArgs())
		for _, arg := range node.Args() {
			id, isNode := arg.NodeId()
			if !isNode {
				return nil, errors.Errorf("backend %q: node %q has a non-tensor argument %s", BackendID, node.Name(), arg.Kind())
			}
			args = append(args, refs[id])
		}
		_, _ = fmt.Fprintf(&sb, "%d#%s#%s", numInstructions, node.Target(), strings.Join(args, ","))
		if opts.nodeNames {
			_, _ = fmt.Fprintf(&sb, "#%s", node.Name())
		}
		sb.WriteString("\n")
		refs[node.Id()] = fmt.Sprintf("%%%d", numInstructions)

		// Nodes without debug handle are not mapped.
		if node.Meta.DebugHandle.IsSet() {
			if _, err := mapping.Insert(delegate.MappingEntry{
				Handles:    []fx.DebugHandle{node.Meta.DebugHandle},
				Identifier: delegate.IntId(numInstructions),
			}); err != nil {
				return nil, errors.WithMessagef(err, "backend %q: node %q", BackendID, node.Name())
			}
		}
		numInstructions++
	}
	klog.V(1).Infof("%s: compiled %q into %d instructions", BackendID, submodule.Name(), numInstructions)
	return &delegate.PreprocessResult{
		ProcessedBytes: []byte(sb.String()),
		DebugHandleMap: mapping.Mapping(),
	}, nil
}
