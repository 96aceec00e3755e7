// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

import (
	"sort"
	"strings"

	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// isConstantData returns whether node holds constant data: a parameter, buffer or lifted constant
// placeholder, or a get_attr node.
func isConstantData(node *fx.Node) bool {
	switch node.Op() {
	case fx.OpKindPlaceholder:
		return node.InputKind().IsConstantData()
	case fx.OpKindGetAttr:
		return true
	}
	return false
}

// TagConstantData assigns to each constant (see Partition) the delegation tag of its users, so the
// constant is owned by the same delegate as the computation using it.
//
// It should be called after the compute nodes were tagged. A constant used by nodes with different
// tags, or by a tagged and an untagged node, can't be owned by a single delegate: it returns an error
// wrapping ErrOwnershipConflict, and the constant should be duplicated so that each user has its own copy.
// Constants whose users are all untagged are left untouched.
//
// Running it more than once gives the same tags.
func TagConstantData(g *fx.Graph) error {
	var numTagged int
	for _, node := range g.Nodes() {
		if !isConstantData(node) {
			continue
		}
		tags := sets.Make[string]()
		for _, user := range node.Users() {
			tags.Insert(user.Meta.DelegationTag)
		}
		switch {
		case len(tags) > 1:
			return errors.Wrapf(ErrOwnershipConflict,
				"constant %q of graph %q is used by nodes with tags %s: consider duplicating it so each user owns its copy",
				node.Name(), g.Name(), formatTags(tags))
		case len(tags) == 1:
			for tag := range tags {
				if tag != "" && node.Meta.DelegationTag != tag {
					klog.V(2).Infof("TagConstantData: %q tagged %q", node.Name(), tag)
					node.Meta.DelegationTag = tag
					numTagged++
				}
			}
		}
	}
	klog.V(1).Infof("TagConstantData(%q): %d constants tagged", g.Name(), numTagged)
	return nil
}

// formatTags lists tags sorted, with the untagged state shown as "<none>".
func formatTags(tags sets.Set[string]) string {
	names := make([]string, 0, len(tags))
	for tag := range tags {
		if tag == "" {
			tag = "<none>"
		}
		names = append(names, tag)
	}
	sort.Strings(names)
	return "[" + strings.Join(names, ", ") + "]"
}
