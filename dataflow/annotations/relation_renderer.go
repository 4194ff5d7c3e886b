package annotations

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// RelationRenderer provides pretty-printing for relation summaries
type RelationRenderer struct {
	useColor bool
}

// NewRelationRenderer creates a new relation renderer
func NewRelationRenderer(useColor bool) *RelationRenderer {
	return &RelationRenderer{useColor: useColor}
}

// RenderRelation renders fields and tuple count as Relation([f g], N Tuples).
// A negative count omits the size.
func (r *RelationRenderer) RenderRelation(fields []string, tupleCount int) string {
	fieldList := strings.Join(fields, " ")

	if r.useColor {
		result := color.BlueString("Relation([") + color.CyanString(fieldList) + color.BlueString("]")
		if tupleCount >= 0 {
			result += color.BlueString(", ") + r.colorizeCount("Tuples", tupleCount)
		}
		return result + color.BlueString(")")
	}

	if tupleCount >= 0 {
		return fmt.Sprintf("Relation([%s], %s Tuples)", fieldList, humanize.Comma(int64(tupleCount)))
	}
	return fmt.Sprintf("Relation([%s])", fieldList)
}

// RenderDelta renders a change as +added/-removed.
func (r *RelationRenderer) RenderDelta(added, removed int) string {
	plus := "+" + humanize.Comma(int64(added))
	minus := "-" + humanize.Comma(int64(removed))
	if r.useColor {
		plus = color.GreenString(plus)
		minus = color.RedString(minus)
	}
	return plus + "/" + minus
}

// colorizeCount formats a count with color based on size
func (r *RelationRenderer) colorizeCount(label string, count int) string {
	countStr := humanize.Comma(int64(count))
	if !r.useColor {
		return fmt.Sprintf("%s %s", countStr, label)
	}

	switch {
	case count == 0:
		countStr = color.RedString(countStr)
	case count < 100:
		countStr = color.GreenString(countStr)
	case count < 10000:
		countStr = color.YellowString(countStr)
	default:
		countStr = color.RedString(countStr)
	}

	return fmt.Sprintf("%s %s", countStr, label)
}
