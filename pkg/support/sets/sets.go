// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sets implement a set type as a `map[T]struct{}` but with better ergonomics, and
// an insertion-ordered variant for when iteration order must be deterministic.
package sets

// Set implements a Set for the key type T.
type Set[T comparable] map[T]struct{}

// Make returns an empty Set of the given type. Size is optional, and if given
// will reserve the expected size.
func Make[T comparable](size ...int) Set[T] {
	if len(size) == 0 {
		return make(Set[T])
	}
	return make(Set[T], size[0])
}

// MakeWith creates a Set[T] with the given elements inserted.
func MakeWith[T comparable](elements ...T) Set[T] {
	s := Make[T](len(elements))
	for _, element := range elements {
		s.Insert(element)
	}
	return s
}

// Has returns true if Set s has the given key.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Sub returns `s - s2`, that is, all elements in `s` that are not in `s2`.
func (s Set[T]) Sub(s2 Set[T]) Set[T] {
	sub := Make[T]()
	for k := range s {
		if !s2.Has(k) {
			sub.Insert(k)
		}
	}
	return sub
}

// Equal returns whether s and s2 have the exact same elements.
func (s Set[T]) Equal(s2 Set[T]) bool {
	if len(s) != len(s2) {
		return false
	}
	for k := range s {
		if !s2.Has(k) {
			return false
		}
	}
	return true
}

// Ordered is a set that remembers the order in which elements were first inserted.
//
// Removal keeps the relative order of the remaining elements. The zero value is not usable,
// create it with MakeOrdered.
type Ordered[T comparable] struct {
	index    map[T]int
	elements []T
}

// MakeOrdered creates an Ordered set with the given elements inserted, in order.
func MakeOrdered[T comparable](elements ...T) *Ordered[T] {
	s := &Ordered[T]{index: make(map[T]int, len(elements))}
	s.Insert(elements...)
	return s
}

// Len returns the number of elements in the set.
func (s *Ordered[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.elements)
}

// Has returns whether key is in the set.
func (s *Ordered[T]) Has(key T) bool {
	if s == nil {
		return false
	}
	_, found := s.index[key]
	return found
}

// Insert appends the keys not yet present in the set. Keys already present keep their position.
func (s *Ordered[T]) Insert(keys ...T) {
	for _, key := range keys {
		if _, found := s.index[key]; found {
			continue
		}
		s.index[key] = len(s.elements)
		s.elements = append(s.elements, key)
	}
}

// Remove deletes key from the set, if present. It is O(n) in the size of the set.
func (s *Ordered[T]) Remove(key T) {
	pos, found := s.index[key]
	if !found {
		return
	}
	delete(s.index, key)
	s.elements = append(s.elements[:pos], s.elements[pos+1:]...)
	for ii := pos; ii < len(s.elements); ii++ {
		s.index[s.elements[ii]] = ii
	}
}

// Elements returns a copy of the elements in insertion order.
func (s *Ordered[T]) Elements() []T {
	if s == nil {
		return nil
	}
	elements := make([]T, len(s.elements))
	copy(elements, s.elements)
	return elements
}

// All iterates over the elements in insertion order.
func (s *Ordered[T]) All(yield func(T) bool) {
	if s == nil {
		return
	}
	for _, e := range s.elements {
		if !yield(e) {
			return
		}
	}
}

// ToSet returns an unordered copy of the set.
func (s *Ordered[T]) ToSet() Set[T] {
	set := Make[T](s.Len())
	if s != nil {
		set.Insert(s.elements...)
	}
	return set
}
