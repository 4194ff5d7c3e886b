package primitive

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/wbrown/janus-flow/dataflow"
	"github.com/wbrown/janus-flow/dataflow/view"
)

// maxRangeRows bounds the output of the range generator.
const maxRangeRows = 1 << 20

func builtins() []*view.Primitive {
	return []*view.Primitive{
		{Name: "count", Reduce: count},
		{Name: "sum", Reduce: sum},
		{Name: "min", Reduce: extreme(-1)},
		{Name: "max", Reduce: extreme(1)},
		{Name: "first", Reduce: pick(false)},
		{Name: "last", Reduce: pick(true)},
		{Name: "collect", Reduce: collect},

		{Name: "add", Rows: arithmetic("add", func(a, b float64) float64 { return a + b })},
		{Name: "subtract", Rows: arithmetic("subtract", func(a, b float64) float64 { return a - b })},
		{Name: "multiply", Rows: arithmetic("multiply", func(a, b float64) float64 { return a * b })},
		{Name: "divide", Rows: divide},
		{Name: "concat", Rows: concat},
		{Name: "range", Rows: rangeRows},
		{Name: "const", Rows: constant},
	}
}

// Reducers take an optional column argument naming the column of each group
// row they read. Without one they read the last column.

func column(args []dataflow.Value) (int, error) {
	if len(args) == 0 {
		return -1, nil
	}
	f, err := dataflow.AsFloat(args[0])
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, dataflow.ShapeErrorf("column %v is not a valid index", f)
	}
	return int(f), nil
}

func cell(row dataflow.Tuple, col int) (dataflow.Value, error) {
	if col < 0 {
		col = len(row) - 1
	}
	return dataflow.Index(row, col)
}

func count(_ []dataflow.Value, group []dataflow.Tuple) (dataflow.Value, error) {
	return dataflow.Float(len(group)), nil
}

func sum(args []dataflow.Value, group []dataflow.Tuple) (dataflow.Value, error) {
	col, err := column(args)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, row := range group {
		v, err := cell(row, col)
		if err != nil {
			return nil, err
		}
		f, err := dataflow.AsFloat(v)
		if err != nil {
			return nil, err
		}
		total += f
	}
	return dataflow.Float(total), nil
}

// extreme returns the smallest (sign -1) or largest (sign 1) value of the
// column. An empty group reduces to the empty tuple.
func extreme(sign int) func([]dataflow.Value, []dataflow.Tuple) (dataflow.Value, error) {
	return func(args []dataflow.Value, group []dataflow.Tuple) (dataflow.Value, error) {
		col, err := column(args)
		if err != nil {
			return nil, err
		}
		var best dataflow.Value = dataflow.Tuple{}
		for i, row := range group {
			v, err := cell(row, col)
			if err != nil {
				return nil, err
			}
			if i == 0 || dataflow.Compare(v, best)*sign > 0 {
				best = v
			}
		}
		return best, nil
	}
}

// pick returns the column of the first or last row in group order.
func pick(last bool) func([]dataflow.Value, []dataflow.Tuple) (dataflow.Value, error) {
	return func(args []dataflow.Value, group []dataflow.Tuple) (dataflow.Value, error) {
		col, err := column(args)
		if err != nil {
			return nil, err
		}
		if len(group) == 0 {
			return dataflow.Tuple{}, nil
		}
		row := group[0]
		if last {
			row = group[len(group)-1]
		}
		return cell(row, col)
	}
}

// collect packs the whole group into a Relation value.
func collect(_ []dataflow.Value, group []dataflow.Tuple) (dataflow.Value, error) {
	b := dataflow.NewBuilder()
	for _, row := range group {
		if _, err := b.Add(row); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func floats(name string, args []dataflow.Value) ([]float64, error) {
	if len(args) == 0 {
		return nil, errors.Newf("%s requires at least one argument", name)
	}
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := dataflow.AsFloat(a)
		if err != nil {
			return nil, errors.Wrapf(err, "%s argument %d", name, i)
		}
		out[i] = f
	}
	return out, nil
}

// arithmetic folds its arguments left to right and yields one single-column row.
func arithmetic(name string, op func(a, b float64) float64) func([]dataflow.Value) ([]dataflow.Tuple, error) {
	return func(args []dataflow.Value) ([]dataflow.Tuple, error) {
		fs, err := floats(name, args)
		if err != nil {
			return nil, err
		}
		acc := fs[0]
		for _, f := range fs[1:] {
			acc = op(acc, f)
		}
		return []dataflow.Tuple{{dataflow.Float(acc)}}, nil
	}
}

func divide(args []dataflow.Value) ([]dataflow.Tuple, error) {
	if len(args) != 2 {
		return nil, errors.Newf("divide requires 2 arguments, got %d", len(args))
	}
	fs, err := floats("divide", args)
	if err != nil {
		return nil, err
	}
	if fs[1] == 0 {
		return nil, errors.New("division by zero")
	}
	return []dataflow.Tuple{{dataflow.Float(fs[0] / fs[1])}}, nil
}

// concat joins its arguments' text. Strings contribute their content, other
// values their printed form.
func concat(args []dataflow.Value) ([]dataflow.Tuple, error) {
	var sb strings.Builder
	for _, a := range args {
		if s, ok := a.(dataflow.String); ok {
			sb.WriteString(string(s))
			continue
		}
		sb.WriteString(a.String())
	}
	return []dataflow.Tuple{{dataflow.String(sb.String())}}, nil
}

// rangeRows yields one row per number in [from, to), stepping by the optional
// third argument (default 1).
func rangeRows(args []dataflow.Value) ([]dataflow.Tuple, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, errors.Newf("range requires 2 or 3 arguments, got %d", len(args))
	}
	fs, err := floats("range", args)
	if err != nil {
		return nil, err
	}
	from, to, step := fs[0], fs[1], 1.0
	if len(fs) == 3 {
		step = fs[2]
	}
	if !(step > 0) {
		return nil, errors.Newf("range step %v must be positive", step)
	}
	if to <= from {
		return nil, nil
	}
	if n := math.Ceil((to - from) / step); n > maxRangeRows {
		return nil, errors.Newf("range of %v rows exceeds the limit of %d", n, maxRangeRows)
	}
	var rows []dataflow.Tuple
	for i := 0; ; i++ {
		v := from + float64(i)*step
		if v >= to {
			break
		}
		rows = append(rows, dataflow.Tuple{dataflow.Float(v)})
	}
	return rows, nil
}

// constant yields its arguments as a single row.
func constant(args []dataflow.Value) ([]dataflow.Tuple, error) {
	row := make(dataflow.Tuple, len(args))
	copy(row, args)
	return []dataflow.Tuple{row}, nil
}
