package dataflow

import (
	"fmt"
	"strings"

	"github.com/google/btree"
)

// btreeDegree is the fan-out of the ordered set backing a Relation.
const btreeDegree = 16

func lessTuples(a, b Tuple) bool {
	return CompareTuples(a, b) < 0
}

// Relation is an immutable, sorted, duplicate-free set of tuples of equal
// arity. Field names are carried for display only and take no part in
// evaluation or comparison.
//
// Relations are values: every operation that "changes" a relation returns a
// new one. The backing btree is shared copy-on-write between versions.
type Relation struct {
	fields []string
	arity  int // -1 until the first tuple fixes it
	tree   *btree.BTreeG[Tuple]
}

// NewRelation returns an empty relation with the given display fields.
func NewRelation(fields ...string) *Relation {
	return &Relation{
		fields: fields,
		arity:  -1,
		tree:   btree.NewG(btreeDegree, lessTuples),
	}
}

// RelationOf builds a relation from tuples. Duplicates collapse; tuples of
// differing arity are a shape error.
func RelationOf(fields []string, tuples ...Tuple) (*Relation, error) {
	b := NewBuilder(fields...)
	for _, t := range tuples {
		if _, err := b.Add(t); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// MustRelation builds a field-less relation and panics on shape errors.
// Intended for tests and literal data.
func MustRelation(tuples ...Tuple) *Relation {
	r, err := RelationOf(nil, tuples...)
	if err != nil {
		panic(err)
	}
	return r
}

// Fields returns the display names of the columns.
func (r *Relation) Fields() []string {
	if r == nil {
		return nil
	}
	return r.fields
}

// Arity returns the tuple width, or -1 if no tuple was ever added.
func (r *Relation) Arity() int {
	if r == nil {
		return -1
	}
	return r.arity
}

// Len returns the number of tuples.
func (r *Relation) Len() int {
	if r == nil || r.tree == nil {
		return 0
	}
	return r.tree.Len()
}

// IsEmpty returns true if the relation has no tuples.
func (r *Relation) IsEmpty() bool {
	return r.Len() == 0
}

// Contains reports whether t is a member of the relation.
func (r *Relation) Contains(t Tuple) bool {
	if r.Len() == 0 {
		return false
	}
	return r.tree.Has(t)
}

// Ascend calls fn for every tuple in sorted order until fn returns false.
// Callers must not modify the tuples they are handed.
func (r *Relation) Ascend(fn func(Tuple) bool) {
	if r.Len() == 0 {
		return
	}
	r.tree.Ascend(fn)
}

// Tuples returns the tuples in sorted order.
func (r *Relation) Tuples() []Tuple {
	out := make([]Tuple, 0, r.Len())
	r.Ascend(func(t Tuple) bool {
		out = append(out, t)
		return true
	})
	return out
}

// Equal reports whether two relations hold the same tuples.
func (r *Relation) Equal(other *Relation) bool {
	if r.Len() != other.Len() {
		return false
	}
	return compareRelations(r, other) == 0
}

// Diff returns the tuples of r missing from next (removed) and the tuples of
// next missing from r (added), both in sorted order. It is a single merge pass
// over the two sorted sets.
func (r *Relation) Diff(next *Relation) (removed, added []Tuple) {
	old, cur := r.Tuples(), next.Tuples()
	i, j := 0, 0
	for i < len(old) && j < len(cur) {
		switch c := CompareTuples(old[i], cur[j]); {
		case c < 0:
			removed = append(removed, old[i])
			i++
		case c > 0:
			added = append(added, cur[j])
			j++
		default:
			i++
			j++
		}
	}
	removed = append(removed, old[i:]...)
	added = append(added, cur[j:]...)
	return removed, added
}

// With returns a relation that also contains t. The boolean is false when t was
// already present, in which case r itself is returned.
func (r *Relation) With(t Tuple) (*Relation, bool, error) {
	if err := r.checkArity(t); err != nil {
		return nil, false, err
	}
	if r.Contains(t) {
		return r, false, nil
	}
	next := r.clone()
	next.tree.ReplaceOrInsert(t)
	if next.arity < 0 {
		next.arity = len(t)
	}
	return next, true, nil
}

// Without returns a relation that no longer contains t. The boolean is false
// when t was absent, in which case r itself is returned.
func (r *Relation) Without(t Tuple) (*Relation, bool) {
	if !r.Contains(t) {
		return r, false
	}
	next := r.clone()
	next.tree.Delete(t)
	return next, true
}

// Union returns the set union of r and other. The result keeps r's fields.
func (r *Relation) Union(other *Relation) (*Relation, error) {
	b := r.Extend()
	var err error
	other.Ascend(func(t Tuple) bool {
		_, err = b.Add(t)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// WithFields returns the same tuples under new display names.
func (r *Relation) WithFields(fields ...string) *Relation {
	next := r.clone()
	next.fields = fields
	return next
}

// Extend returns a builder seeded with the tuples of r.
func (r *Relation) Extend() *Builder {
	c := r.clone()
	return &Builder{rel: c}
}

func (r *Relation) clone() *Relation {
	if r == nil {
		return NewRelation()
	}
	return &Relation{
		fields: r.fields,
		arity:  r.arity,
		tree:   r.tree.Clone(),
	}
}

func (r *Relation) checkArity(t Tuple) error {
	if r.Arity() >= 0 && len(t) != r.Arity() {
		return shapeErrorf("tuple %s has arity %d, relation expects %d", t, len(t), r.Arity())
	}
	return nil
}

// String returns a compact representation for annotations and logging.
func (r *Relation) String() string {
	var sb strings.Builder
	sb.WriteString("#{")
	first := true
	r.Ascend(func(t Tuple) bool {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(t.String())
		return true
	})
	sb.WriteString("}")
	return sb.String()
}

// Summary describes the relation's shape without listing tuples.
func (r *Relation) Summary() string {
	return fmt.Sprintf("Relation([%s], %d Tuples)", strings.Join(r.Fields(), " "), r.Len())
}

// Builder accumulates tuples into a new Relation. A Builder has a single owner
// and must not be used after Build.
type Builder struct {
	rel *Relation
}

// NewBuilder returns a builder for a relation with the given display fields.
func NewBuilder(fields ...string) *Builder {
	return &Builder{rel: NewRelation(fields...)}
}

// Add inserts t, reporting whether it was new.
func (b *Builder) Add(t Tuple) (bool, error) {
	if err := b.rel.checkArity(t); err != nil {
		return false, err
	}
	_, replaced := b.rel.tree.ReplaceOrInsert(t)
	if b.rel.arity < 0 {
		b.rel.arity = len(t)
	}
	return !replaced, nil
}

// Len returns the number of distinct tuples added so far.
func (b *Builder) Len() int {
	return b.rel.Len()
}

// Build freezes the builder's contents into a Relation.
func (b *Builder) Build() *Relation {
	r := b.rel
	b.rel = nil
	return r
}
