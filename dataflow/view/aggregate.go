package view

import (
	"math"
	"sort"

	"github.com/wbrown/janus-flow/dataflow"
)

// Reducer reduces a group window to one value. Args index the scalar scope:
// the aggregate's constants followed by the outer tuple.
type Reducer struct {
	Primitive *Primitive
	Args      []ScalarRef
}

// Aggregate partitions the rows produced by Inner into groups keyed by the
// tuples produced by Outer: a group is the run of sorted inner rows whose
// leading columns equal an outer tuple. Each group is optionally narrowed to a
// window, reduced, and projected through Select.
//
// The state seen by Select is the outer tuple, then (if SelectsInner) the
// columns of one windowed inner row, then one value per reducer. With
// SelectsInner every row of the window yields its own output candidate.
type Aggregate struct {
	Constants []dataflow.Value
	Outer     RowSelector
	Inner     RowSelector
	// LimitFrom and LimitTo are offsets from the start of the group. Unset
	// bounds default to the full group.
	LimitFrom    *ScalarRef
	LimitTo      *ScalarRef
	Reducers     []Reducer
	SelectsInner bool
	Select       OutputSelector
}

// Kind implements View.
func (*Aggregate) Kind() Kind { return KindAggregate }

// Validate implements View.
func (a *Aggregate) Validate(inputs int) error {
	if a.Outer == nil || a.Inner == nil {
		return dataflow.ShapeErrorf("aggregate needs both outer and inner selectors")
	}
	for _, s := range []RowSelector{a.Outer, a.Inner} {
		if err := validateSelectorInputs(s, inputs); err != nil {
			return err
		}
	}
	for _, bound := range []*ScalarRef{a.LimitFrom, a.LimitTo} {
		if bound != nil && *bound < 0 {
			return dataflow.ShapeErrorf("aggregate window bound %d is negative", *bound)
		}
	}
	for _, r := range a.Reducers {
		if err := validateReducer(r.Primitive); err != nil {
			return err
		}
		for _, arg := range r.Args {
			if arg < 0 {
				return dataflow.ShapeErrorf("reducer %s argument %d is negative", r.Primitive, arg)
			}
		}
	}
	return a.Select.validate(a.Constants)
}

func (a *Aggregate) run(fields []string, inputs []*dataflow.Relation) (*dataflow.Relation, error) {
	if err := a.Validate(len(inputs)); err != nil {
		return nil, err
	}
	outer, err := a.Outer.Select(inputs)
	if err != nil {
		return nil, err
	}
	inner, err := a.Inner.Select(inputs)
	if err != nil {
		return nil, err
	}
	outer = sortTuples(outer, true)
	inner = sortTuples(inner, false)

	out := dataflow.NewBuilder(fields...)
	leaf := func(state []dataflow.Value) error {
		row, err := a.Select.Select(a.Constants, state)
		if err != nil {
			return err
		}
		_, err = out.Add(row)
		return err
	}

	cursor := 0
	for _, key := range outer {
		start, end, err := groupRun(inner, cursor, key)
		if err != nil {
			return nil, err
		}
		cursor = end

		from, to, err := a.window(start, end, key)
		if err != nil {
			return nil, err
		}
		group := inner[from:to]

		levels := make([]level, 0, len(a.Reducers)+1)
		if a.SelectsInner {
			levels = append(levels, level{candidates: fixed(group)})
		}
		for _, r := range a.Reducers {
			args, err := resolveScalars(r.Args, a.Constants, key)
			if err != nil {
				return nil, err
			}
			v, err := r.Primitive.reduce(args, group)
			if err != nil {
				return nil, err
			}
			levels = append(levels, level{candidates: fixed([]dataflow.Tuple{{v}})})
		}

		state := make([]dataflow.Value, len(key), len(key)+8)
		copy(state, key)
		if err := enumerate(levels, state, leaf); err != nil {
			return nil, err
		}
	}
	return out.Build(), nil
}

// groupRun locates the run of rows whose prefix equals key, starting the scan
// at cursor. Rows sorting before key belong to no group and are skipped.
func groupRun(rows []dataflow.Tuple, cursor int, key dataflow.Tuple) (start, end int, err error) {
	for cursor < len(rows) {
		c, err := dataflow.ComparePrefix(rows[cursor], key)
		if err != nil {
			return 0, 0, err
		}
		if c >= 0 {
			break
		}
		cursor++
	}
	start, end = cursor, cursor
	for end < len(rows) {
		c, err := dataflow.ComparePrefix(rows[end], key)
		if err != nil {
			return 0, 0, err
		}
		if c != 0 {
			break
		}
		end++
	}
	return start, end, nil
}

// window resolves the optional bounds into [from, to) with
// start <= from <= to <= end.
func (a *Aggregate) window(start, end int, key dataflow.Tuple) (from, to int, err error) {
	from, to = start, end
	if a.LimitFrom != nil {
		off, err := a.offset(*a.LimitFrom, key, end-start)
		if err != nil {
			return 0, 0, err
		}
		from = start + off
	}
	if a.LimitTo != nil {
		off, err := a.offset(*a.LimitTo, key, end-start)
		if err != nil {
			return 0, 0, err
		}
		to = start + off
	}
	from = clamp(from, start, end)
	to = clamp(to, from, end)
	return from, to, nil
}

// offset resolves a bound to an integer in [0, size]. Fractions truncate;
// negative values and NaN mean zero.
func (a *Aggregate) offset(ref ScalarRef, key dataflow.Tuple, size int) (int, error) {
	v, err := ref.Resolve(a.Constants, key)
	if err != nil {
		return 0, err
	}
	f, err := dataflow.AsFloat(v)
	if err != nil {
		return 0, err
	}
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0, nil
	case f >= float64(size):
		return size, nil
	}
	return int(f), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sortTuples sorts rows in place, optionally dropping duplicates.
func sortTuples(rows []dataflow.Tuple, dedup bool) []dataflow.Tuple {
	sort.SliceStable(rows, func(i, j int) bool {
		return dataflow.CompareTuples(rows[i], rows[j]) < 0
	})
	if !dedup || len(rows) < 2 {
		return rows
	}
	out := rows[:1]
	for _, r := range rows[1:] {
		if !r.Equal(out[len(out)-1]) {
			out = append(out, r)
		}
	}
	return out
}

func validateSelectorInputs(s RowSelector, inputs int) error {
	if is, ok := s.(IndexSelect); ok && (is.Input < 0 || is.Input >= inputs) {
		return dataflow.ShapeErrorf("selector reads input %d of %d", is.Input, inputs)
	}
	return nil
}
