// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/delegate/backends/demo"
	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/fx/fxjson"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/gomlx/delegate/pkg/delegate"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGraph() *fx.Graph {
	g := fx.NewGraph("model")
	x := g.Placeholder("x", fx.InputKindUser)
	w := g.Placeholder("w", fx.InputKindParameter)
	mm := g.CallFunction(ops.MatMul, fx.Refs(x, w))
	relu := g.CallFunction(ops.Relu, fx.Refs(mm))
	view := g.CallFunction(ops.ViewCopy, []fx.Arg{fx.Ref(relu), fx.List(fx.Int(-1))})
	g.Output(fx.Ref(g.CallFunction(ops.Mul, fx.Refs(view, view))))
	return g
}

func TestLoadConfig(t *testing.T) {
	cfg := must.M1(loadConfig("", demo.BackendID))
	assert.Equal(t, "tag", cfg.TagPrefix)
	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, demo.BackendID, cfg.Backends[0].ID)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tag_prefix: demo
backends:
  - id: BackendWithCompilerDemo
    supported_ops: [aten.mm.default]
    compile_specs:
      - key: max_instructions
        value: "16"
`), 0o644))
	cfg = must.M1(loadConfig(path, "ignored"))
	assert.Equal(t, "demo", cfg.TagPrefix)
	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, []string{"aten.mm.default"}, cfg.Backends[0].SupportedOps)
	assert.Equal(t, []delegate.CompileSpec{{Key: "max_instructions", Value: []byte("16")}},
		cfg.Backends[0].compileSpecs())

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
}

func TestLower(t *testing.T) {
	t.Run("BackendCapabilities", func(t *testing.T) {
		g := buildGraph()
		lowered, err := lower(g, must.M1(loadConfig("", demo.BackendID)))
		require.NoError(t, err)
		// view_copy splits the graph: mul is lowered separately.
		require.Len(t, lowered, 2)
		assert.Equal(t, 2, lowered[0].Original.Len()-len(lowered[0].Original.Placeholders())-1)
		remaining := delegate.NonLoweredNodes(g)
		require.Len(t, remaining, 1)
		assert.Equal(t, ops.ViewCopy, remaining[0].Target())
		assert.Len(t, delegate.Delegates(g), 2)
		for _, module := range lowered {
			assert.True(t, strings.HasPrefix(module.Tag, "tag0_"), "tag %q", module.Tag)
		}

		// Lowering again finds nothing left to lower.
		before := g.String()
		again, err := lower(g, must.M1(loadConfig("", demo.BackendID)))
		require.NoError(t, err)
		assert.Empty(t, again)
		assert.Equal(t, before, g.String())
	})

	t.Run("ConfiguredOps", func(t *testing.T) {
		g := buildGraph()
		cfg := &Config{TagPrefix: "demo", Backends: []BackendConfig{{ID: demo.BackendID, SupportedOps: []string{"aten.mm.default"}}}}
		lowered, err := lower(g, cfg)
		require.NoError(t, err)
		require.Len(t, lowered, 1)
		assert.Len(t, delegate.NonLoweredNodes(g), 3)
	})

	t.Run("UnknownBackend", func(t *testing.T) {
		_, err := lower(buildGraph(), must.M1(loadConfig("", "NoSuchBackend")))
		require.ErrorContains(t, err, "NoSuchBackend")
	})

	t.Run("SaveLowered", func(t *testing.T) {
		g := buildGraph()
		_ = must.M1(lower(g, must.M1(loadConfig("", demo.BackendID))))
		path := filepath.Join(t.TempDir(), "lowered.json")
		require.NoError(t, saveGraph(g, path))
		loaded := must.M1(fxjson.LoadFile(path))
		assert.Equal(t, g.Len(), loaded.Len())
		assert.Len(t, delegate.Delegates(loaded), 2)
	})
}
