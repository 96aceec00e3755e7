// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fx

import (
	"fmt"
	"strings"
)

// Format renders the node in one line, e.g.:
//
//	%aten_add_tensor : [num_users=1] = call_function[target=aten.add.Tensor](args = (%x, %y), kwargs = {})
//
// The output node is rendered as "return [...]".
func (n *Node) Format() string {
	n.AssertValid()
	refName := func(id NodeId) string {
		if input := n.graph.nodes[id]; input != nil {
			return "%" + input.name
		}
		return fmt.Sprintf("%%<missing #%d>", id)
	}
	switch n.op {
	case OpKindOutput:
		bareName := func(id NodeId) string { return strings.TrimPrefix(refName(id), "%") }
		return "return " + Arg{kind: ArgList, list: n.args}.format(bareName)
	case OpKindPlaceholder, OpKindGetAttr:
		return fmt.Sprintf("%%%s : [num_users=%d] = %s[target=%s]", n.name, n.NumUsers(), n.op, n.target)
	}
	args := make([]string, len(n.args))
	for ii, a := range n.args {
		args[ii] = a.format(refName)
	}
	kwargs := make([]string, len(n.kwargs))
	for ii, kw := range n.kwargs {
		kwargs[ii] = fmt.Sprintf("%s: %s", kw.Name, kw.Value.format(refName))
	}
	return fmt.Sprintf("%%%s : [num_users=%d] = %s[target=%s](args = (%s), kwargs = {%s})",
		n.name, n.NumUsers(), n.op, n.target, strings.Join(args, ", "), strings.Join(kwargs, ", "))
}
