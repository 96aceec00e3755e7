// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"testing"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/stretchr/testify/assert"
)

// buildDelegated builds by hand a graph with one delegate call producing 2 outputs, unpacked by
// 2 getitem nodes, and one arithmetic node.
func buildDelegated() *fx.Graph {
	original := fx.NewGraph("original")
	ox := original.Placeholder("x", fx.InputKindUser)
	oy := original.Placeholder("y", fx.InputKindUser)
	original.Output(fx.Ref(original.CallFunction(ops.Mul, fx.Refs(ox, oy))), fx.Ref(ox))

	g := fx.NewGraph("delegated")
	x := g.Placeholder("x", fx.InputKindUser)
	y := g.Placeholder("y", fx.InputKindUser)
	attr := g.GetAttr("lowered_module_0")
	g.SetAttr("lowered_module_0", &LoweredModule{BackendID: "Demo", Original: original})
	call := g.CallFunction(ops.CallDelegate, fx.Refs(attr, x, y))
	first := g.CallFunction(fx.GetItem, []fx.Arg{fx.Ref(call), fx.Int(0)})
	second := g.CallFunction(fx.GetItem, []fx.Arg{fx.Ref(call), fx.Int(1)})
	add := g.CallFunction(ops.Add, fx.Refs(first, second))
	g.Output(fx.Ref(add))
	return g
}

func TestNonLoweredNodes(t *testing.T) {
	g := buildDelegated()
	assert.Equal(t, []string{"aten_add_tensor"}, nodeNames(NonLoweredNodes(g)))
	assert.Equal(t, []string{"lowered_module_0"}, nodeNames(Delegates(g)))

	// getitem of something else, or with a non integer index, is not a delegate result.
	x := g.NodeByName("x")
	var other, nonInt *fx.Node
	g.InsertingBefore(g.OutputNode(), func() {
		other = g.CallFunction(fx.GetItem, []fx.Arg{fx.Ref(x), fx.Int(0)})
		nonInt = g.CallFunction(fx.GetItem, []fx.Arg{fx.Ref(g.NodeByName("higher_order_executorch_call_delegate")), fx.Str("a")})
	})
	assert.False(t, IsDelegateGetItem(other))
	assert.False(t, IsDelegateGetItem(nonInt))
	assert.True(t, IsDelegateGetItem(g.NodeByName("getitem")))
	assert.Len(t, NonLoweredNodes(g), 3)

	// Get_attr nodes not following the naming convention are not delegates.
	g.SetAttr("weights", 1)
	g.InsertingBefore(g.OutputNode(), func() { g.GetAttr("weights") })
	assert.Len(t, Delegates(g), 1)
}

func TestPrintDelegatedGraph(t *testing.T) {
	g := buildDelegated()
	want := `graph():
  %x : [num_users=1] = placeholder[target=x]
  %y : [num_users=1] = placeholder[target=y]
  %lowered_module_0 : [num_users=1] = get_attr[target=lowered_module_0]
    backend_id: Demo
    lowered graph():
      %x : [num_users=2] = placeholder[target=x]
      %y : [num_users=1] = placeholder[target=y]
      %aten_mul_tensor : [num_users=1] = call_function[target=aten.mul.Tensor](args = (%x, %y), kwargs = {})
      return [aten_mul_tensor, x]
  %higher_order_executorch_call_delegate : [num_users=2] = call_function[target=higher_order.executorch_call_delegate](args = (%lowered_module_0, %x, %y), kwargs = {})
  %getitem : [num_users=1] = call_function[target=operator.getitem](args = (%higher_order_executorch_call_delegate, 0), kwargs = {})
  %getitem_1 : [num_users=1] = call_function[target=operator.getitem](args = (%higher_order_executorch_call_delegate, 1), kwargs = {})
  %aten_add_tensor : [num_users=1] = call_function[target=aten.add.Tensor](args = (%getitem, %getitem_1), kwargs = {})
  return [aten_add_tensor]
`
	assert.Equal(t, want, PrintDelegatedGraph(g))

	// Without lowered modules it matches the graph rendering.
	plain := buildLinear()
	assert.Equal(t, plain.String()+"\n", PrintDelegatedGraph(plain))
}
