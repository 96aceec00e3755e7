// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"testing"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quantizedRelu = fx.Op("qnn", "relu", "default")

// buildQuantizedRelu builds x -> q -> dq -> relu -> q -> dq -> output, with debug handles 1 to 5.
func buildQuantizedRelu() *fx.Graph {
	g := fx.NewGraph("quantized_relu")
	x := g.Placeholder("x", fx.InputKindUser)
	q0 := g.CallFunction(ops.QuantizePerTensor, quantArgs(x))
	dq0 := g.CallFunction(ops.DequantizePerTensor, quantArgs(q0))
	relu := g.CallFunction(ops.Relu, fx.Refs(dq0))
	q1 := g.CallFunction(ops.QuantizePerTensor, quantArgs(relu))
	dq1 := g.CallFunction(ops.DequantizePerTensor, quantArgs(q1))
	g.Output(fx.Ref(dq1))
	for ii, node := range []*fx.Node{q0, dq0, relu, q1, dq1} {
		node.Meta.DebugHandle = fx.Handle(ii + 1)
	}
	relu.Meta.DelegationTag = "tag0"
	return g
}

func countTargets(g *fx.Graph, target fx.Target) int {
	var count int
	for _, node := range g.Nodes() {
		if ops.IsCall(node, target) {
			count++
		}
	}
	return count
}

func TestReplaceQuantizedPartitionWithOp(t *testing.T) {
	t.Run("SingleComputeNode", func(t *testing.T) {
		g := buildQuantizedRelu()
		q0 := g.NodeByName("quantized_decomposed_quantize_per_tensor_default")
		dq0 := g.NodeByName("quantized_decomposed_dequantize_per_tensor_default")
		relu := g.NodeByName("aten_relu_default")
		q1 := g.NodeByName("quantized_decomposed_quantize_per_tensor_default_1")

		replaced, dq, q, err := ReplaceQuantizedPartitionWithOp(g, NewPartition([]*fx.Node{relu}), quantizedRelu)
		require.NoError(t, err)
		require.NoError(t, g.Lint())
		assert.Equal(t, []*fx.Node{dq0}, dq)
		assert.Equal(t, []*fx.Node{q1}, q)
		assert.True(t, dq0.IsErased())
		assert.True(t, relu.IsErased())
		assert.True(t, q1.IsErased())

		assert.Equal(t, 1, countTargets(g, quantizedRelu))
		assert.Equal(t, quantizedRelu, replaced.Target())
		assert.Equal(t, 1, countTargets(g, ops.QuantizePerTensor))
		assert.Equal(t, 1, countTargets(g, ops.DequantizePerTensor))
		assert.Equal(t, []string{"x", "quantized_decomposed_quantize_per_tensor_default", "qnn_relu_default",
			"quantized_decomposed_dequantize_per_tensor_default_1", "output"}, nodeNames(g.Nodes()))

		// Arguments are the node arguments of the dequantize boundary.
		assert.True(t, fx.ArgsEqual([]fx.Arg{fx.Ref(q0)}, replaced.Args()))
		assert.Equal(t, "tag0", replaced.Meta.DelegationTag)
		assert.Equal(t, []int{2, 3, 4}, replaced.Meta.SourceHandles)
		_, found := g.Attr(fusedSubmoduleName)
		assert.False(t, found)
	})

	t.Run("ParamsStayInputs", func(t *testing.T) {
		g := fx.NewGraph("quantized_linear")
		x := g.Placeholder("x", fx.InputKindUser)
		wq := g.Placeholder("w_q", fx.InputKindParameter)
		bias := g.Placeholder("bias", fx.InputKindParameter)
		qx := g.CallFunction(ops.QuantizePerTensor, quantArgs(x))
		dqx := g.CallFunction(ops.DequantizePerTensor, quantArgs(qx))
		dqw := g.CallFunction(ops.DequantizePerTensor, quantArgs(wq))
		linear := g.CallFunction(ops.Linear, fx.Refs(dqx, dqw, bias))
		qOut := g.CallFunction(ops.QuantizePerTensor, quantArgs(linear))
		g.Output(fx.Ref(qOut))

		replacement := fx.Op("qnn", "linear", "default")
		replaced, dq, q, err := ReplaceQuantizedPartitionWithOp(g, NewPartition([]*fx.Node{linear}, bias), replacement)
		require.NoError(t, err)
		require.NoError(t, g.Lint())
		assert.Equal(t, []*fx.Node{dqx, dqw}, dq)
		assert.Equal(t, []*fx.Node{qOut}, q)
		assert.Equal(t, []string{"quantized_decomposed_quantize_per_tensor_default", "w_q", "bias"},
			nodeNames(replaced.InputNodes()))
		assert.Equal(t, []string{"output"}, nodeNames(replaced.Users()))
		assert.False(t, bias.IsErased())
		assert.Equal(t, 0, countTargets(g, ops.DequantizePerTensor))
	})

	t.Run("RepeatedFusions", func(t *testing.T) {
		g := buildQuantizedRelu()
		relu := g.NodeByName("aten_relu_default")
		_, _, _, err := ReplaceQuantizedPartitionWithOp(g, NewPartition([]*fx.Node{relu}), quantizedRelu)
		require.NoError(t, err)

		// Append a second quantized relu after the output dequantize.
		dq1 := g.NodeByName("quantized_decomposed_dequantize_per_tensor_default_1")
		var relu2 *fx.Node
		g.InsertingBefore(g.OutputNode(), func() {
			relu2 = g.CallFunction(ops.Relu, fx.Refs(dq1))
			q := g.CallFunction(ops.QuantizePerTensor, quantArgs(relu2))
			g.OutputNode().SetArgs(fx.Ref(q))
		})
		require.NoError(t, g.Lint())
		_, _, _, err = ReplaceQuantizedPartitionWithOp(g, NewPartition([]*fx.Node{relu2}), quantizedRelu)
		require.NoError(t, err)
		assert.Equal(t, 2, countTargets(g, quantizedRelu))
		assert.Equal(t, 0, countTargets(g, ops.Relu))
	})

	t.Run("MissingBoundaries", func(t *testing.T) {
		g := buildQuantizedRelu()
		before := g.String()
		dq0 := g.NodeByName("quantized_decomposed_dequantize_per_tensor_default")
		_, _, _, err := ReplaceQuantizedPartitionWithOp(g, NewPartition([]*fx.Node{dq0}), quantizedRelu)
		require.ErrorIs(t, err, ErrMissingQuantBoundary)
		assert.Contains(t, err.Error(), "dequantize")

		g2 := fx.NewGraph("")
		x := g2.Placeholder("x", fx.InputKindUser)
		q := g2.CallFunction(ops.QuantizePerTensor, quantArgs(x))
		dq := g2.CallFunction(ops.DequantizePerTensor, quantArgs(q))
		relu := g2.CallFunction(ops.Relu, fx.Refs(dq))
		g2.Output(fx.Ref(relu))
		_, _, _, err = ReplaceQuantizedPartitionWithOp(g2, NewPartition([]*fx.Node{relu}), quantizedRelu)
		require.ErrorIs(t, err, ErrMissingQuantBoundary)
		assert.Contains(t, err.Error(), "quantize node consumes")
		assert.Equal(t, before, g.String())
	})
}

func TestRemoveFirstQuantAndLastDequant(t *testing.T) {
	g := buildQuantizedRelu()
	require.NoError(t, RemoveFirstQuantAndLastDequant(g))
	assert.Equal(t, []string{"x", "quantized_decomposed_dequantize_per_tensor_default", "aten_relu_default",
		"quantized_decomposed_quantize_per_tensor_default_1", "output"}, nodeNames(g.Nodes()))
	assert.Equal(t, []string{"x"}, nodeNames(g.NodeByName("quantized_decomposed_dequantize_per_tensor_default").InputNodes()))
	assert.Equal(t, []string{"quantized_decomposed_quantize_per_tensor_default_1"}, nodeNames(g.OutputNode().InputNodes()))

	// Nothing left to remove.
	before := g.String()
	require.NoError(t, RemoveFirstQuantAndLastDequant(g))
	assert.Equal(t, before, g.String())
}
