package matrix

import "github.com/bits-and-blooms/bitset"

// Set is a fixed-size bitset over record indices. Sets built by NewSet share
// storage when copied; use Clone for an independent copy.
type Set struct {
	bits *bitset.BitSet
	size int
}

func NewSet(size int) Set {
	return Set{bits: bitset.New(uint(size)), size: size}
}

// SetOf builds a set of the given size holding indices.
func SetOf(size int, indices ...int) Set {
	s := NewSet(size)
	for _, i := range indices {
		s.Add(i)
	}
	return s
}

func (s Set) bs() *bitset.BitSet {
	if s.bits == nil {
		return bitset.New(0)
	}
	return s.bits
}

func (s Set) Size() int {
	return s.size
}

func (s Set) Add(i int) {
	if i < 0 || i >= s.size {
		return
	}
	s.bits.Set(uint(i))
}

func (s Set) Contains(i int) bool {
	if i < 0 || i >= s.size {
		return false
	}
	return s.bits.Test(uint(i))
}

func (s Set) Count() int {
	return int(s.bs().Count())
}

func (s Set) Empty() bool {
	return s.bs().None()
}

func (s Set) IntersectCount(o Set) int {
	return int(s.bs().IntersectionCardinality(o.bs()))
}

func (s Set) UnionCount(o Set) int {
	return int(s.bs().UnionCardinality(o.bs()))
}

func (s Set) Intersect(o Set) Set {
	return Set{bits: s.bs().Intersection(o.bs()), size: s.size}
}

func (s Set) Union(o Set) Set {
	return Set{bits: s.bs().Union(o.bs()), size: s.size}
}

// UnionWith adds every member of o to s in place.
func (s Set) UnionWith(o Set) {
	if s.bits == nil {
		return
	}
	s.bits.InPlaceUnion(o.bs())
}

func (s Set) Clone() Set {
	return Set{bits: s.bs().Clone(), size: s.size}
}

// Equal compares size and members. Backing capacity is ignored.
func (s Set) Equal(o Set) bool {
	if s.size != o.size {
		return false
	}
	n := s.Count()
	return n == o.Count() && n == s.IntersectCount(o)
}

// Indices returns members in ascending order.
func (s Set) Indices() []int {
	b := s.bs()
	out := make([]int, 0, b.Count())
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}
