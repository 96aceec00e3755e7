// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fxjson reads and writes fx.Graph in a JSON interchange format, used to feed graphs
// exported by a front-end to the command-line tools.
//
// A graph is a list of nodes in execution order. Arguments reference earlier nodes by name:
//
//	{
//	  "name": "linear",
//	  "nodes": [
//	    {"name": "x", "op": "placeholder", "input_kind": "user"},
//	    {"name": "w", "op": "placeholder", "input_kind": "parameter"},
//	    {"name": "mm", "op": "call_function", "target": "aten.mm.default",
//	     "args": [{"node": "x"}, {"node": "w"}], "meta": {"debug_handle": 1}},
//	    {"name": "output", "op": "output", "args": [{"node": "mm"}]}
//	  ]
//	}
//
// Literal arguments are written as {"int": 1}, {"float": 0.5}, {"bool": true}, {"str": "s"},
// {"dtype": "Int8"}, {"list": [...]}, and None as {}.
//
// Graph attributes holding a *fx.Graph or a *fx.TensorMeta are saved in full. For any other value
// only its Go type is saved, and it is loaded back as an OpaqueAttr.
package fxjson

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// OpaqueAttr is loaded in place of graph attributes whose value could not be saved.
type OpaqueAttr struct {
	Type string
}

type graphJSON struct {
	Name  string              `json:"name,omitempty"`
	Nodes []nodeJSON          `json:"nodes"`
	Attrs map[string]attrJSON `json:"attrs,omitempty"`
}

type nodeJSON struct {
	Name      string      `json:"name"`
	Op        string      `json:"op"`
	Target    string      `json:"target,omitempty"`
	InputKind string      `json:"input_kind,omitempty"`
	Args      []argJSON   `json:"args,omitempty"`
	Kwargs    []kwargJSON `json:"kwargs,omitempty"`
	Meta      *metaJSON   `json:"meta,omitempty"`
}

type argJSON struct {
	Node  *string    `json:"node,omitempty"`
	Int   *int       `json:"int,omitempty"`
	Float *float64   `json:"float,omitempty"`
	Bool  *bool      `json:"bool,omitempty"`
	Str   *string    `json:"str,omitempty"`
	DType string     `json:"dtype,omitempty"`
	List  *[]argJSON `json:"list,omitempty"`
}

type kwargJSON struct {
	Name  string  `json:"name"`
	Value argJSON `json:"value"`
}

type metaJSON struct {
	DebugHandle   *int        `json:"debug_handle,omitempty"`
	DelegationTag string      `json:"delegation_tag,omitempty"`
	SourceHandles []int       `json:"source_handles,omitempty"`
	Val           *tensorJSON `json:"val,omitempty"`
}

type tensorJSON struct {
	DType string `json:"dtype"`
	Dims  []int  `json:"dims"`
}

type attrJSON struct {
	Tensor *tensorJSON `json:"tensor,omitempty"`
	Graph  *graphJSON  `json:"graph,omitempty"`
	Type   string      `json:"type,omitempty"`
}

// Marshal returns the indented JSON encoding of g.
func Marshal(g *fx.Graph) ([]byte, error) {
	data, err := json.MarshalIndent(fromGraph(g), "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode graph %q", g.Name())
	}
	return data, nil
}

// Unmarshal decodes a graph. The returned graph is validated with fx.Graph.Lint.
func Unmarshal(data []byte) (*fx.Graph, error) {
	var gj graphJSON
	if err := json.Unmarshal(data, &gj); err != nil {
		return nil, errors.Wrap(err, "failed to decode graph JSON")
	}
	return toGraph(&gj)
}

// Save writes the JSON encoding of g to w.
func Save(w io.Writer, g *fx.Graph) error {
	data, err := Marshal(g)
	if err != nil {
		return err
	}
	if _, err = w.Write(data); err != nil {
		return errors.Wrapf(err, "failed to write graph %q", g.Name())
	}
	return nil
}

// Load reads a graph from r. See Unmarshal.
func Load(r io.Reader) (*fx.Graph, error) {
	var gj graphJSON
	if err := json.NewDecoder(r).Decode(&gj); err != nil {
		return nil, errors.Wrap(err, "failed to decode graph JSON")
	}
	return toGraph(&gj)
}

// LoadFile reads a graph from the file at path.
func LoadFile(path string) (*fx.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open graph file")
	}
	defer func() { _ = f.Close() }()
	g, err := Load(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading %q", path)
	}
	return g, nil
}

func fromGraph(g *fx.Graph) *graphJSON {
	gj := &graphJSON{Name: g.Name()}
	nodeName := func(id fx.NodeId) string { return g.NodeById(id).Name() }
	for _, node := range g.Nodes() {
		nj := nodeJSON{
			Name: node.Name(),
			Op:   node.Op().String(),
		}
		switch node.Op() {
		case fx.OpKindPlaceholder:
			nj.InputKind = node.InputKind().String()
		case fx.OpKindGetAttr, fx.OpKindCallModule, fx.OpKindCallFunction:
			nj.Target = node.Target().String()
		}
		for _, a := range node.Args() {
			nj.Args = append(nj.Args, fromArg(a, nodeName))
		}
		for _, kw := range node.Kwargs() {
			nj.Kwargs = append(nj.Kwargs, kwargJSON{Name: kw.Name, Value: fromArg(kw.Value, nodeName)})
		}
		nj.Meta = fromMeta(&node.Meta)
		gj.Nodes = append(gj.Nodes, nj)
	}
	for _, name := range g.AttrNames() {
		value, _ := g.Attr(name)
		if gj.Attrs == nil {
			gj.Attrs = make(map[string]attrJSON)
		}
		switch v := value.(type) {
		case *fx.Graph:
			gj.Attrs[name] = attrJSON{Graph: fromGraph(v)}
		case *fx.TensorMeta:
			gj.Attrs[name] = attrJSON{Tensor: fromTensor(v)}
		case OpaqueAttr:
			gj.Attrs[name] = attrJSON{Type: v.Type}
		default:
			gj.Attrs[name] = attrJSON{Type: fmt.Sprintf("%T", value)}
		}
	}
	return gj
}

func fromArg(a fx.Arg, nodeName func(fx.NodeId) string) argJSON {
	var aj argJSON
	switch a.Kind() {
	case fx.ArgNode:
		id, _ := a.NodeId()
		name := nodeName(id)
		aj.Node = &name
	case fx.ArgInt:
		v, _ := a.Int()
		aj.Int = &v
	case fx.ArgFloat:
		v, _ := a.Float()
		aj.Float = &v
	case fx.ArgBool:
		v, _ := a.Bool()
		aj.Bool = &v
	case fx.ArgString:
		v, _ := a.Str()
		aj.Str = &v
	case fx.ArgDType:
		v, _ := a.DType()
		aj.DType = v.String()
	case fx.ArgList:
		elements, _ := a.List()
		list := make([]argJSON, len(elements))
		for ii, e := range elements {
			list[ii] = fromArg(e, nodeName)
		}
		aj.List = &list
	}
	return aj
}

func fromMeta(meta *fx.Meta) *metaJSON {
	mj := &metaJSON{
		DelegationTag: meta.DelegationTag,
		SourceHandles: meta.SourceHandles,
		Val:           fromTensor(meta.Val),
	}
	if h, ok := meta.DebugHandle.Value(); ok {
		mj.DebugHandle = &h
	}
	if mj.DebugHandle == nil && mj.DelegationTag == "" && len(mj.SourceHandles) == 0 && mj.Val == nil {
		return nil
	}
	return mj
}

func fromTensor(t *fx.TensorMeta) *tensorJSON {
	if t == nil {
		return nil
	}
	return &tensorJSON{DType: t.DType.String(), Dims: t.Dims}
}

// toGraph builds the graph, converting building panics into errors.
func toGraph(gj *graphJSON) (g *fx.Graph, err error) {
	err = exceptions.TryCatch[error](func() { g = buildGraph(gj) })
	if err != nil {
		return nil, err
	}
	if err = g.Lint(); err != nil {
		return nil, err
	}
	return g, nil
}

func buildGraph(gj *graphJSON) *fx.Graph {
	g := fx.NewGraph(gj.Name)
	byName := make(map[string]*fx.Node, len(gj.Nodes))
	for _, nj := range gj.Nodes {
		if _, found := byName[nj.Name]; found {
			exceptions.Panicf("graph %q: duplicate node name %q", gj.Name, nj.Name)
		}
		op, err := fx.OpKindString(nj.Op)
		if err != nil {
			panic(errors.Wrapf(err, "graph %q: node %q", gj.Name, nj.Name))
		}
		args := make([]fx.Arg, len(nj.Args))
		for ii, aj := range nj.Args {
			args[ii] = toArg(aj, byName, nj.Name)
		}
		kwargs := make([]fx.Kwarg, len(nj.Kwargs))
		for ii, kj := range nj.Kwargs {
			kwargs[ii] = fx.Kwarg{Name: kj.Name, Value: toArg(kj.Value, byName, nj.Name)}
		}

		var node *fx.Node
		switch op {
		case fx.OpKindPlaceholder:
			kind := fx.InputKindUser
			if nj.InputKind != "" {
				kind, err = fx.InputKindString(nj.InputKind)
				if err != nil {
					panic(errors.Wrapf(err, "graph %q: placeholder %q", gj.Name, nj.Name))
				}
			}
			node = g.Placeholder(nj.Name, kind)
		case fx.OpKindGetAttr:
			node = g.GetAttr(targetOrName(nj))
		case fx.OpKindCallModule:
			node = g.CallModule(targetOrName(nj), args, kwargs...)
		case fx.OpKindCallFunction:
			node = g.CallFunction(resolveTarget(nj.Target), args, kwargs...)
		case fx.OpKindOutput:
			node = g.Output(args...)
		default:
			exceptions.Panicf("graph %q: node %q has invalid op %q", gj.Name, nj.Name, nj.Op)
		}
		if op != fx.OpKindOutput {
			node.SetName(nj.Name)
		}
		if nj.Meta != nil {
			node.Meta = toMeta(nj.Meta)
		}
		byName[nj.Name] = node
	}
	for name, aj := range gj.Attrs {
		switch {
		case aj.Graph != nil:
			g.SetAttr(name, buildGraph(aj.Graph))
		case aj.Tensor != nil:
			g.SetAttr(name, toTensor(aj.Tensor))
		default:
			g.SetAttr(name, OpaqueAttr{Type: aj.Type})
		}
	}
	return g
}

func targetOrName(nj nodeJSON) string {
	if nj.Target != "" {
		return nj.Target
	}
	return nj.Name
}

// resolveTarget looks up the registered operator, or parses it if not registered.
func resolveTarget(name string) fx.Target {
	if target, found := ops.Lookup(name); found {
		return target
	}
	klog.V(1).Infof("fxjson: operator %q is not registered, parsing its name", name)
	return fx.ParseTarget(name)
}

func toArg(aj argJSON, byName map[string]*fx.Node, user string) fx.Arg {
	switch {
	case aj.Node != nil:
		node, found := byName[*aj.Node]
		if !found {
			exceptions.Panicf("node %q uses %q, which is not defined before it", user, *aj.Node)
		}
		return fx.Ref(node)
	case aj.Int != nil:
		return fx.Int(*aj.Int)
	case aj.Float != nil:
		return fx.Float(*aj.Float)
	case aj.Bool != nil:
		return fx.Bool(*aj.Bool)
	case aj.Str != nil:
		return fx.Str(*aj.Str)
	case aj.DType != "":
		return fx.DType(parseDType(aj.DType))
	case aj.List != nil:
		list := make([]fx.Arg, len(*aj.List))
		for ii, e := range *aj.List {
			list[ii] = toArg(e, byName, user)
		}
		return fx.List(list...)
	}
	return fx.None()
}

func toMeta(mj *metaJSON) fx.Meta {
	meta := fx.Meta{
		DelegationTag: mj.DelegationTag,
		SourceHandles: mj.SourceHandles,
		Val:           toTensor(mj.Val),
	}
	if mj.DebugHandle != nil {
		meta.DebugHandle = fx.Handle(*mj.DebugHandle)
	}
	return meta
}

func toTensor(tj *tensorJSON) *fx.TensorMeta {
	if tj == nil {
		return nil
	}
	return &fx.TensorMeta{DType: parseDType(tj.DType), Dims: tj.Dims}
}

func parseDType(name string) dtypes.DType {
	dtype, err := dtypes.DTypeString(name)
	if err != nil {
		panic(errors.Wrapf(err, "invalid dtype %q", name))
	}
	return dtype
}
