// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops lists the operator targets known to the delegation passes, and a registry used to
// resolve operator names (e.g. when loading a graph from JSON).
//
// Any operator can be used in a graph (see fx.Op): the registry only matters for tools that need
// to resolve a target from its name.
package ops

import (
	"slices"
	"sync"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/exceptions"
)

// Quantization boundary operators.
var (
	// QuantizePerTensor args: input, scale, zero point, quant min, quant max, dtype.
	QuantizePerTensor = fx.Op("quantized_decomposed", "quantize_per_tensor", "default")

	// DequantizePerTensor args: input, scale, zero point, quant min, quant max, dtype.
	DequantizePerTensor = fx.Op("quantized_decomposed", "dequantize_per_tensor", "default")
)

// CallDelegate calls a lowered module: the first argument is the get_attr node of the lowered
// module, followed by the inputs of the delegated subgraph. It returns a tuple, unpacked
// with fx.GetItem.
var CallDelegate = fx.Op("higher_order", "executorch_call_delegate", "")

// Compute operators.
var (
	Add         = fx.Op("aten", "add", "Tensor")
	Sub         = fx.Op("aten", "sub", "Tensor")
	Mul         = fx.Op("aten", "mul", "Tensor")
	MatMul      = fx.Op("aten", "mm", "default")
	AddMM       = fx.Op("aten", "addmm", "default")
	Linear      = fx.Op("aten", "linear", "default")
	Relu        = fx.Op("aten", "relu", "default")
	Convolution = fx.Op("aten", "convolution", "default")
	ViewCopy    = fx.Op("aten", "view_copy", "default")
)

var (
	muRegistry sync.RWMutex
	registry   = make(map[string]fx.Target)
)

func init() {
	Register(QuantizePerTensor, DequantizePerTensor, CallDelegate, fx.GetItem,
		Add, Sub, Mul, MatMul, AddMM, Linear, Relu, Convolution, ViewCopy)
}

// Register makes targets resolvable by Lookup, by their full name (Target.String).
// Registering the same target twice is a no-op.
func Register(targets ...fx.Target) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	for _, target := range targets {
		if target.IsZero() {
			exceptions.Panicf("ops.Register: empty target")
		}
		registry[target.String()] = target
	}
}

// Lookup returns the registered target with the given full name, e.g. "aten.add.Tensor".
func Lookup(name string) (fx.Target, bool) {
	muRegistry.RLock()
	defer muRegistry.RUnlock()
	target, found := registry[name]
	return target, found
}

// Registered returns all registered targets, sorted by name.
func Registered() []fx.Target {
	muRegistry.RLock()
	defer muRegistry.RUnlock()
	targets := make([]fx.Target, 0, len(registry))
	for _, target := range registry {
		targets = append(targets, target)
	}
	slices.SortFunc(targets, func(a, b fx.Target) int {
		switch as, bs := a.String(), b.String(); {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	})
	return targets
}

// IsCall returns whether node is a call_function node calling target.
func IsCall(node *fx.Node, target fx.Target) bool {
	return node != nil && node.Op() == fx.OpKindCallFunction && node.Target() == target
}

// IsQuantize returns whether node is a per-tensor quantize call.
func IsQuantize(node *fx.Node) bool { return IsCall(node, QuantizePerTensor) }

// IsDequantize returns whether node is a per-tensor dequantize call.
func IsDequantize(node *fx.Node) bool { return IsCall(node, DequantizePerTensor) }

// IsGetItem returns whether node unpacks an element of a tuple-valued node.
func IsGetItem(node *fx.Node) bool { return IsCall(node, fx.GetItem) }
