package instance

import "slices"

// Set is an ordered collection of distinct instances, kept in insertion
// order unless sorted. The zero value is an empty set ready to use.
type Set struct {
	items []FactorInstance
	seen  map[FactorInstance]struct{}
}

// NewSet returns a set holding items, skipping duplicates.
func NewSet(items ...FactorInstance) *Set {
	s := &Set{}
	s.Add(items...)
	return s
}

// Add appends the instances not already present and returns how many were
// added.
func (s *Set) Add(items ...FactorInstance) int {
	if s.seen == nil {
		s.seen = make(map[FactorInstance]struct{}, len(items))
	}
	added := 0
	for _, fi := range items {
		if _, ok := s.seen[fi]; ok {
			continue
		}
		s.seen[fi] = struct{}{}
		s.items = append(s.items, fi)
		added++
	}
	return added
}

// Contains reports whether fi is in the set.
func (s *Set) Contains(fi FactorInstance) bool {
	_, ok := s.seen[fi]
	return ok
}

// Len returns the number of instances.
func (s *Set) Len() int {
	return len(s.items)
}

// All returns the instances in insertion order.
func (s *Set) All() []FactorInstance {
	out := make([]FactorInstance, len(s.items))
	copy(out, s.items)
	return out
}

// Take removes and returns up to n instances from the front of the set.
// A negative n takes everything.
func (s *Set) Take(n int) []FactorInstance {
	if n < 0 || n > len(s.items) {
		n = len(s.items)
	}
	out := make([]FactorInstance, n)
	copy(out, s.items[:n])
	for _, fi := range out {
		delete(s.seen, fi)
	}
	s.items = append(s.items[:0:0], s.items[n:]...)
	return out
}

// SortFunc reorders the set with cmp.
func (s *Set) SortFunc(cmp func(a, b FactorInstance) int) {
	slices.SortStableFunc(s.items, cmp)
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	return NewSet(s.items...)
}
