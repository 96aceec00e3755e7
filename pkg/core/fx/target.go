// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fx

import (
	"strings"
	"unicode"
)

// Target identifies what a node operates on: the operator called by a call_function node, or
// the attribute/input name of get_attr, call_module and placeholder nodes.
//
// Targets are plain comparable values: two nodes call the same operator iff their targets are ==.
type Target struct {
	Namespace, Name, Overload string
}

// GetItem is the builtin operator that extracts one element of a tuple-valued node: args are
// the node and an integer index.
var GetItem = Target{Namespace: "operator", Name: "getitem"}

// Op returns the Target for an operator.
func Op(namespace, name, overload string) Target {
	return Target{Namespace: namespace, Name: name, Overload: overload}
}

// AttrTarget returns the Target of an attribute or input name.
func AttrTarget(name string) Target {
	return Target{Name: name}
}

// ParseTarget is the inverse of Target.String.
//
// The last two dot-separated parts are taken as name and overload when there are three or more parts.
// With two parts they are taken as namespace and name, and a single part is a bare name.
func ParseTarget(s string) Target {
	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		return Target{Name: parts[0]}
	case 2:
		return Target{Namespace: parts[0], Name: parts[1]}
	default:
		n := len(parts)
		return Target{
			Namespace: strings.Join(parts[:n-2], "."),
			Name:      parts[n-2],
			Overload:  parts[n-1],
		}
	}
}

// IsZero returns whether the target is empty.
func (t Target) IsZero() bool {
	return t == Target{}
}

// String implements fmt.Stringer, joining the non-empty parts with ".".
func (t Target) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Namespace, t.Name, t.Overload} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// nameHint returns the base name used for nodes created with this target, e.g. "aten_add_tensor".
func (t Target) nameHint() string {
	if t == GetItem {
		return "getitem"
	}
	return sanitizeName(strings.ReplaceAll(t.String(), ".", "_"))
}

// sanitizeName lower-cases name and replaces anything that is not a letter, digit or "_".
func sanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToLower(r))
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "node"
	}
	s := sb.String()
	if unicode.IsDigit(rune(s[0])) {
		s = "_" + s
	}
	return s
}
