// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"testing"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagConstantData(t *testing.T) {
	t.Run("ConstantsFollowTheirUsers", func(t *testing.T) {
		g := fx.NewGraph("")
		x := g.Placeholder("x", fx.InputKindUser)
		w := g.Placeholder("w", fx.InputKindParameter)
		buf := g.Placeholder("buf", fx.InputKindBuffer)
		lifted := g.Placeholder("lifted", fx.InputKindConstantTensor)
		c := g.GetAttr("c")
		g.SetAttr("c", 1.0)
		unused := g.Placeholder("unused", fx.InputKindParameter)
		mm := g.CallFunction(ops.MatMul, fx.Refs(x, w))
		add := g.CallFunction(ops.Add, fx.Refs(mm, buf))
		mul := g.CallFunction(ops.Mul, fx.Refs(add, c, lifted))
		g.Output(fx.Ref(mul))
		mm.Meta.DelegationTag, add.Meta.DelegationTag = "tag0", "tag0"
		mul.Meta.DelegationTag = "tag1"

		require.NoError(t, TagConstantData(g))
		assert.Equal(t, "tag0", w.Meta.DelegationTag)
		assert.Equal(t, "tag0", buf.Meta.DelegationTag)
		assert.Equal(t, "tag1", c.Meta.DelegationTag)
		assert.Equal(t, "tag1", lifted.Meta.DelegationTag)
		assert.Equal(t, "", x.Meta.DelegationTag, "user inputs are not constants")
		assert.Equal(t, "", unused.Meta.DelegationTag)

		// Idempotent.
		once := tags(g)
		require.NoError(t, TagConstantData(g))
		assert.Equal(t, once, tags(g))
	})

	t.Run("OwnershipConflict", func(t *testing.T) {
		g := fx.NewGraph("")
		x := g.Placeholder("x", fx.InputKindUser)
		w := g.Placeholder("w", fx.InputKindParameter)
		mm := g.CallFunction(ops.MatMul, fx.Refs(x, w))
		mul := g.CallFunction(ops.Mul, fx.Refs(mm, w))
		g.Output(fx.Ref(mul))
		mm.Meta.DelegationTag, mul.Meta.DelegationTag = "tag0", "tag1"

		err := TagConstantData(g)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOwnershipConflict))
		assert.Contains(t, err.Error(), `"w"`)
		assert.Contains(t, err.Error(), "[tag0, tag1]")
	})

	t.Run("TaggedAndUntaggedUsers", func(t *testing.T) {
		g := fx.NewGraph("")
		x := g.Placeholder("x", fx.InputKindUser)
		w := g.Placeholder("w", fx.InputKindParameter)
		mm := g.CallFunction(ops.MatMul, fx.Refs(x, w))
		mul := g.CallFunction(ops.Mul, fx.Refs(mm, w))
		g.Output(fx.Ref(mul))
		mm.Meta.DelegationTag = "tag0"

		err := TagConstantData(g)
		require.ErrorIs(t, err, ErrOwnershipConflict)
		assert.Contains(t, err.Error(), "<none>")
	})

	t.Run("UntaggedUsersLeaveConstantUntouched", func(t *testing.T) {
		g := buildLinear()
		w := g.NodeByName("w")
		w.Meta.DelegationTag = "previous"
		require.NoError(t, TagConstantData(g))
		assert.Equal(t, "previous", w.Meta.DelegationTag)
	})
}

func TestPartitionsFromTags(t *testing.T) {
	g := buildLinear()
	for _, name := range []string{"aten_mm_default", "aten_add_tensor"} {
		g.NodeByName(name).Meta.DelegationTag = "tag0"
	}
	g.NodeByName("aten_sub_tensor").Meta.DelegationTag = "tag1"
	require.NoError(t, TagConstantData(g))

	partitions := PartitionsFromTags(g)
	require.Len(t, partitions, 2)
	assert.Equal(t, "tag0", partitions[0].Tag)
	assert.Equal(t, []string{"w", "b", "aten_mm_default", "aten_add_tensor"}, nodeNames(partitions[0].Nodes.Elements()))
	assert.True(t, partitions[0].Params.Has(g.NodeByName("w")))
	assert.Equal(t, []string{"aten_mm_default", "aten_add_tensor"}, nodeNames(partitions[0].ComputeNodes()))
	assert.Equal(t, "tag1", partitions[1].Tag)
	assert.Equal(t, []string{"aten_sub_tensor"}, nodeNames(partitions[1].Nodes.Elements()))

	p := NewPartition([]*fx.Node{g.NodeByName("aten_mm_default")}, g.NodeByName("w"))
	assert.Equal(t, []string{"aten_mm_default", "w"}, nodeNames(p.Nodes.Elements()))
	assert.Equal(t, []string{"aten_mm_default"}, nodeNames(p.ComputeNodes()))
}
