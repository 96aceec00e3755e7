// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LoweredModulePrefix is the name prefix of the get_attr nodes (and graph attributes) holding
// lowered modules.
const LoweredModulePrefix = "lowered_module_"

// LoweredModule is a partition of a graph compiled by a Backend. It is stored as a graph
// attribute, fetched by a get_attr node and called with ops.CallDelegate.
type LoweredModule struct {
	ID        uuid.UUID
	BackendID string

	// Tag is the delegation tag of the lowered nodes, if they all agreed on one.
	Tag string

	ProcessedBytes []byte
	CompileSpecs   []CompileSpec

	// Original is the submodule that was compiled.
	Original *fx.Graph

	// DebugHandleMap as returned by the backend, possibly nil.
	DebugHandleMap map[Identifier][]int
}

// String implements fmt.Stringer.
func (m *LoweredModule) String() string {
	return fmt.Sprintf("LoweredModule(%s, backend=%s, %s processed, %d nodes)",
		m.ID, m.BackendID, humanize.Bytes(uint64(len(m.ProcessedBytes))), m.Original.Len())
}

// nextLoweredModuleName returns the first "lowered_module_<n>" not yet used as an attribute or node name.
func nextLoweredModuleName(g *fx.Graph) string {
	for ii := 0; ; ii++ {
		name := fmt.Sprintf("%s%d", LoweredModulePrefix, ii)
		if _, found := g.Attr(name); !found && g.NodeByName(name) == nil {
			return name
		}
	}
}

// ToBackend compiles nodes with backend and replaces them in g by a call to the lowered module:
//
//	%lowered_module_0 = get_attr[target=lowered_module_0]
//	%executorch_call_delegate = call_function[target=higher_order.executorch_call_delegate](%lowered_module_0, inputs...)
//	%getitem = call_function[target=operator.getitem](%executorch_call_delegate, 0)
//
// with one getitem node per value used outside the partition. The call node metadata carries the
// debug handles of the nodes (Meta.SourceHandles). Their delegation tag moves to LoweredModule.Tag:
// the call node is left untagged, so the lowered partition is not picked up again.
//
// The graph is not changed if the nodes can't be extracted or if the backend fails.
func ToBackend(g *fx.Graph, nodes []*fx.Node, backend Backend, specs []CompileSpec) (*LoweredModule, *fx.Node, error) {
	name := nextLoweredModuleName(g)
	preview, err := fx.ExtractSubmodule(g, nodes, name)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "lowering to backend %q", backend.ID())
	}
	result, err := backend.Preprocess(preview, specs)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "backend %q failed to preprocess %q", backend.ID(), name)
	}
	if result == nil {
		result = &PreprocessResult{}
	}

	submodule, callModule, err := fx.CreateSubmoduleFromNodes(g, nodes, name)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "lowering to backend %q", backend.ID())
	}
	lowered := &LoweredModule{
		ID:             uuid.New(),
		BackendID:      backend.ID(),
		Tag:            callModule.Meta.DelegationTag,
		ProcessedBytes: result.ProcessedBytes,
		CompileSpecs:   specs,
		Original:       submodule,
		DebugHandleMap: result.DebugHandleMap,
	}

	var attrNode, callDelegate *fx.Node
	g.InsertingBefore(callModule, func() {
		attrNode = g.GetAttr(name)
		callDelegate = g.CallFunction(ops.CallDelegate, append(fx.Refs(attrNode), callModule.Args()...))
		callDelegate.Meta = callModule.Meta.Clone()
		callDelegate.Meta.DelegationTag = ""
		if submodule.OutputNode().NumArgs() == 1 {
			// A single output was used directly: the delegate call always returns a tuple.
			getItem := g.CallFunction(fx.GetItem, []fx.Arg{fx.Ref(callDelegate), fx.Int(0)})
			getItem.Meta.Val = submodule.OutputNode().ArgNode(0).Meta.Clone().Val
			callModule.ReplaceAllUsesWith(getItem)
		}
	})
	// With several outputs the users are getitem(callModule, i) nodes.
	callModule.ReplaceAllUsesWith(callDelegate)
	g.EraseNode(callModule)
	g.SetAttr(name, lowered)
	attrNode.SetName(name)
	callDelegate.SetName("executorch_call_delegate")
	if err := g.Recompile(); err != nil {
		return nil, nil, errors.WithMessagef(err, "graph invalid after lowering %q", name)
	}
	klog.V(1).Infof("Graph(%q): lowered %d nodes to backend %q as %q (%s)", g.Name(), submodule.Len(),
		backend.ID(), name, humanize.Bytes(uint64(len(lowered.ProcessedBytes))))
	return lowered, callDelegate, nil
}

// BackendChooser selects the backend (and its options) for a delegation tag. If it returns false
// the partition is not lowered.
type BackendChooser func(tag string) (backend Backend, specs []CompileSpec, ok bool)

// LowerTaggedPartitions tags the constants (see TagConstantData) and then lowers each partition
// (see PartitionsFromTags) to the backend chosen for its tag. Partitions are lowered in the order
// their tag first appears in the graph.
//
// It stops at the first error: partitions lowered before it stay lowered.
func LowerTaggedPartitions(g *fx.Graph, choose BackendChooser) ([]*LoweredModule, error) {
	if err := TagConstantData(g); err != nil {
		return nil, err
	}
	var lowered []*LoweredModule
	for _, partition := range PartitionsFromTags(g) {
		if len(partition.ComputeNodes()) == 0 {
			// Only constants left over from an earlier lowering.
			klog.V(2).Infof("Graph(%q): partition %q has nothing to compute", g.Name(), partition.Tag)
			continue
		}
		backend, specs, ok := choose(partition.Tag)
		if !ok {
			klog.V(1).Infof("Graph(%q): partition %q not lowered", g.Name(), partition.Tag)
			continue
		}
		module, _, err := ToBackend(g, partition.Nodes.Elements(), backend, specs)
		if err != nil {
			return lowered, errors.WithMessagef(err, "partition %q", partition.Tag)
		}
		lowered = append(lowered, module)
	}
	return lowered, nil
}

// ChooseByPrefix returns a BackendChooser that lowers every tag starting with prefix to backend.
func ChooseByPrefix(prefix string, backend Backend, specs ...CompileSpec) BackendChooser {
	return func(tag string) (Backend, []CompileSpec, bool) {
		return backend, specs, strings.HasPrefix(tag, prefix)
	}
}
