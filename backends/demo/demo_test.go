// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package demo

import (
	"testing"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/gomlx/delegate/pkg/delegate"
	"github.com/gomlx/delegate/pkg/partitioner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

// buildModel returns relu(x @ w + b), reshaped.
func buildModel() *fx.Graph {
	g := fx.NewGraph("model")
	x := g.Placeholder("x", fx.InputKindUser)
	w := g.Placeholder("w", fx.InputKindParameter)
	b := g.Placeholder("b", fx.InputKindParameter)
	mm := g.CallFunction(ops.MatMul, fx.Refs(x, w))
	mm.Meta.DebugHandle = fx.Handle(1)
	add := g.CallFunction(ops.Add, fx.Refs(mm, b))
	add.Meta.DebugHandle = fx.Handle(2)
	relu := g.CallFunction(ops.Relu, fx.Refs(add))
	relu.Meta.DebugHandle = fx.Handle(3)
	view := g.CallFunction(ops.ViewCopy, []fx.Arg{fx.Ref(relu), fx.List(fx.Int(-1))})
	view.Meta.DebugHandle = fx.Handle(4)
	g.Output(fx.Ref(view))
	return g
}

func TestRegistered(t *testing.T) {
	backend, found := delegate.GetBackend(BackendID)
	require.True(t, found)
	assert.Same(t, Default, backend)
	assert.Contains(t, delegate.RegisteredBackends(), BackendID)
}

func TestLowering(t *testing.T) {
	g := buildModel()
	p := &partitioner.CapabilityPartitioner{Supported: Default.IsSupported}
	tags, err := p.Partition(g)
	require.NoError(t, err)
	require.Equal(t, []string{"tag0"}, tags)

	lowered, err := delegate.LowerTaggedPartitions(g, delegate.ChooseByPrefix("tag", Default))
	require.NoError(t, err)
	require.Len(t, lowered, 1)
	assert.Equal(t, BackendID, lowered[0].BackendID)
	assert.Equal(t, "0#aten.mm.default#$0,$1\n1#aten.add.Tensor#%0,$2\n2#aten.relu.default#%1\n",
		string(lowered[0].ProcessedBytes))
	assert.Equal(t, map[delegate.Identifier][]int{
		delegate.IntId(0): {1},
		delegate.IntId(1): {2},
		delegate.IntId(2): {3},
	}, lowered[0].DebugHandleMap)

	remaining := delegate.NonLoweredNodes(g)
	require.Len(t, remaining, 1)
	assert.Equal(t, ops.ViewCopy, remaining[0].Target())
}

func TestPreprocess(t *testing.T) {
	t.Run("NodeNames", func(t *testing.T) {
		g := fx.NewGraph("sub")
		x := g.Placeholder("x", fx.InputKindUser)
		g.Output(fx.Ref(g.CallFunction(ops.Relu, fx.Refs(x))))
		result, err := Default.Preprocess(g, []delegate.CompileSpec{{Key: SpecNodeNames, Value: []byte("true")}})
		require.NoError(t, err)
		assert.Equal(t, "0#aten.relu.default#$0#aten_relu_default\n", string(result.ProcessedBytes))
		assert.Empty(t, result.DebugHandleMap, "nodes without debug handle are not mapped")
	})

	t.Run("Unsupported", func(t *testing.T) {
		g := fx.NewGraph("sub")
		x := g.Placeholder("x", fx.InputKindUser)
		g.Output(fx.Ref(g.CallFunction(ops.Convolution, fx.Refs(x))))
		_, err := Default.Preprocess(g, nil)
		require.ErrorContains(t, err, "aten.convolution.default")
	})

	t.Run("CompileSpecs", func(t *testing.T) {
		g := buildModel()
		sub, err := fx.ExtractSubmodule(g, g.Nodes()[3:6], "sub")
		require.NoError(t, err)

		_, err = Default.Preprocess(sub, []delegate.CompileSpec{{Key: SpecMaxInstructions, Value: []byte("2")}})
		require.ErrorContains(t, err, "exceeds 2 instructions")
		_, err = Default.Preprocess(sub, []delegate.CompileSpec{{Key: SpecMaxInstructions, Value: []byte("many")}})
		require.Error(t, err)
		_, err = Default.Preprocess(sub, []delegate.CompileSpec{{Key: "opt_level", Value: []byte("3")}})
		require.ErrorContains(t, err, "unknown compile spec")
		result, err := Default.Preprocess(sub, []delegate.CompileSpec{{Key: SpecMaxInstructions, Value: []byte("3")}})
		require.NoError(t, err)
		assert.Len(t, result.DebugHandleMap, 3)
	})
}
