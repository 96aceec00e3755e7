// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fxjson

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quantizedLinear = `{
  "name": "quantized_linear",
  "nodes": [
    {"name": "x", "op": "placeholder", "input_kind": "user", "meta": {"val": {"dtype": "Float32", "dims": [1, 4]}}},
    {"name": "w", "op": "placeholder", "input_kind": "parameter"},
    {"name": "q", "op": "call_function", "target": "quantized_decomposed.quantize_per_tensor.default",
     "args": [{"node": "x"}, {"float": 0.05}, {"int": 0}, {"int": -128}, {"int": 127}, {"dtype": "Int8"}],
     "meta": {"debug_handle": 1}},
    {"name": "dq", "op": "call_function", "target": "quantized_decomposed.dequantize_per_tensor.default",
     "args": [{"node": "q"}, {"float": 0.05}, {"int": 0}, {"int": -128}, {"int": 127}, {"dtype": "Int8"}],
     "meta": {"debug_handle": 2}},
    {"name": "linear", "op": "call_function", "target": "aten.linear.default",
     "args": [{"node": "dq"}, {"node": "w"}, {}], "kwargs": [{"name": "dims", "value": {"list": [{"int": 1}, {"int": 4}]}}],
     "meta": {"debug_handle": 3, "delegation_tag": "tag0"}},
    {"name": "weird_op", "op": "call_function", "target": "custom.weird_op", "args": [{"node": "linear"}, {"bool": true}, {"str": "mode"}]},
    {"name": "output", "op": "output", "args": [{"node": "weird_op"}]}
  ]
}`

func TestUnmarshal(t *testing.T) {
	g, err := Unmarshal([]byte(quantizedLinear))
	require.NoError(t, err)
	assert.Equal(t, "quantized_linear", g.Name())
	require.Equal(t, 7, g.Len())

	q := g.NodeByName("q")
	require.NotNil(t, q)
	assert.True(t, ops.IsQuantize(q))
	dtype, ok := q.Arg(5).DType()
	require.True(t, ok)
	assert.Equal(t, dtypes.Int8, dtype)
	h, ok := q.Meta.DebugHandle.Value()
	assert.True(t, ok)
	assert.Equal(t, 1, h)

	w := g.NodeByName("w")
	assert.Equal(t, fx.InputKindParameter, w.InputKind())
	x := g.NodeByName("x")
	require.NotNil(t, x.Meta.Val)
	assert.Equal(t, dtypes.Float32, x.Meta.Val.DType)
	assert.Equal(t, []int{1, 4}, x.Meta.Val.Dims)

	linear := g.NodeByName("linear")
	assert.Equal(t, ops.Linear, linear.Target())
	assert.Equal(t, "tag0", linear.Meta.DelegationTag)
	assert.Equal(t, fx.ArgNone, linear.Arg(2).Kind())
	dims, found := linear.Kwarg("dims")
	require.True(t, found)
	assert.True(t, dims.Equal(fx.List(fx.Int(1), fx.Int(4))))

	// Unregistered operators are parsed.
	assert.Equal(t, fx.Op("custom", "weird_op", ""), g.NodeByName("weird_op").Target())
}

func TestRoundTrip(t *testing.T) {
	g := must.M1(Unmarshal([]byte(quantizedLinear)))
	sub := fx.NewGraph("sub")
	p := sub.Placeholder("p", fx.InputKindUser)
	sub.Output(fx.Ref(p))
	g.SetAttr("sub", sub)
	g.SetAttr("scale", &fx.TensorMeta{DType: dtypes.Float32, Dims: []int{4}})
	g.SetAttr("opaque", struct{}{})

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, g))
	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, g.String(), loaded.String())
	assert.True(t, fx.IdenticalGraph(g, loaded))
	assert.Equal(t, g.AttrNames(), loaded.AttrNames())
	loadedSub, ok := loaded.SubGraph("sub")
	require.True(t, ok)
	assert.True(t, fx.IdenticalGraph(sub, loadedSub))
	opaque, _ := loaded.Attr("opaque")
	assert.Equal(t, OpaqueAttr{Type: "struct {}"}, opaque)

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, must.M1(Marshal(g)), 0o644))
	fromFile, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, g.String(), fromFile.String())
}

func TestUnmarshalErrors(t *testing.T) {
	for name, data := range map[string]string{
		"InvalidJSON":      `{"nodes": [`,
		"ForwardReference": `{"nodes": [{"name": "a", "op": "call_function", "target": "aten.relu.default", "args": [{"node": "b"}]}]}`,
		"InvalidOp":        `{"nodes": [{"name": "a", "op": "call_method"}]}`,
		"DuplicateName":    `{"nodes": [{"name": "a", "op": "placeholder"}, {"name": "a", "op": "placeholder"}]}`,
		"MissingOutput":    `{"nodes": [{"name": "a", "op": "placeholder"}]}`,
		"InvalidDType":     `{"nodes": [{"name": "a", "op": "placeholder", "meta": {"val": {"dtype": "Float7", "dims": []}}}]}`,
		"MissingAttr":      `{"nodes": [{"name": "c", "op": "get_attr"}, {"name": "output", "op": "output", "args": [{"node": "c"}]}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(data))
			require.Error(t, err)
		})
	}
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
