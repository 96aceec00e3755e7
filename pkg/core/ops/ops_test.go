// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"testing"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	target, found := Lookup("quantized_decomposed.quantize_per_tensor.default")
	require.True(t, found)
	assert.Equal(t, QuantizePerTensor, target)
	target, found = Lookup("higher_order.executorch_call_delegate")
	require.True(t, found)
	assert.Equal(t, CallDelegate, target)
	_, found = Lookup("aten.softmax.int")
	assert.False(t, found)

	softmax := fx.Op("aten", "softmax", "int")
	Register(softmax)
	target, found = Lookup("aten.softmax.int")
	require.True(t, found)
	assert.Equal(t, softmax, target)
	assert.Contains(t, Registered(), softmax)
	assert.Panics(t, func() { Register(fx.Target{}) })

	registered := Registered()
	for ii := 1; ii < len(registered); ii++ {
		assert.Less(t, registered[ii-1].String(), registered[ii].String())
	}
}

func TestPredicates(t *testing.T) {
	g := fx.NewGraph("")
	x := g.Placeholder("x", fx.InputKindUser)
	qArgs := func(n *fx.Node) []fx.Arg {
		return []fx.Arg{fx.Ref(n), fx.Float(0.1), fx.Int(0), fx.Int(-128), fx.Int(127), fx.DType(dtypes.Int8)}
	}
	q := g.CallFunction(QuantizePerTensor, qArgs(x))
	dq := g.CallFunction(DequantizePerTensor, qArgs(q))
	g.Output(fx.Ref(dq))

	assert.True(t, IsQuantize(q))
	assert.False(t, IsQuantize(dq))
	assert.True(t, IsDequantize(dq))
	assert.False(t, IsDequantize(x))
	assert.False(t, IsQuantize(nil))
	assert.False(t, IsGetItem(q))
}
