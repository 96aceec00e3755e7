// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/gomlx/gopjrt/dtypes"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

// quantArgs returns the arguments of a per-tensor quantize/dequantize of input.
func quantArgs(input *fx.Node) []fx.Arg {
	return []fx.Arg{fx.Ref(input), fx.Float(0.05), fx.Int(0), fx.Int(-128), fx.Int(127), fx.DType(dtypes.Int8)}
}

// buildLinear builds sub(add(mm(x, w), b), x), with debug handles 1, 2, 3 on the compute nodes.
func buildLinear() *fx.Graph {
	g := fx.NewGraph("linear")
	x := g.Placeholder("x", fx.InputKindUser)
	w := g.Placeholder("w", fx.InputKindParameter)
	b := g.Placeholder("b", fx.InputKindParameter)
	mm := g.CallFunction(ops.MatMul, fx.Refs(x, w))
	add := g.CallFunction(ops.Add, fx.Refs(mm, b))
	sub := g.CallFunction(ops.Sub, fx.Refs(add, x))
	g.Output(fx.Ref(sub))
	for ii, node := range []*fx.Node{mm, add, sub} {
		node.Meta.DebugHandle = fx.Handle(ii + 1)
	}
	return g
}

func tags(g *fx.Graph) map[string]string {
	m := make(map[string]string)
	for _, node := range g.Nodes() {
		m[node.Name()] = node.Meta.DelegationTag
	}
	return m
}
