package dataflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// TableFormatter renders Relations as markdown tables.
type TableFormatter struct {
	// MaxWidth is the maximum width for a cell; longer cells are truncated
	MaxWidth int
	// TruncateString is the string to append when truncating
	TruncateString string
}

// NewTableFormatter creates a new table formatter with default settings
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		MaxWidth:       50,
		TruncateString: "...",
	}
}

// FormatRelation formats a Relation as a markdown table
func (tf *TableFormatter) FormatRelation(rel *Relation) string {
	if rel.IsEmpty() {
		return "_Empty relation_"
	}
	return tf.formatTable(tf.headers(rel), rel.Tuples())
}

// headers names the columns, falling back to positional names when the
// relation carries no usable field names.
func (tf *TableFormatter) headers(rel *Relation) []string {
	fields := rel.Fields()
	if len(fields) == rel.Arity() {
		return fields
	}
	headers := make([]string, rel.Arity())
	for i := range headers {
		if i < len(fields) {
			headers[i] = fields[i]
		} else {
			headers[i] = "$" + strconv.Itoa(i)
		}
	}
	return headers
}

func (tf *TableFormatter) formatTable(columns []string, tuples []Tuple) string {
	tableString := &strings.Builder{}

	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(columns)

	for _, tuple := range tuples {
		row := make([]string, len(tuple))
		for j, val := range tuple {
			row[j] = tf.formatValue(val)
		}
		table.Append(row)
	}
	table.Render()

	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(tuples)))
	return tableString.String()
}

// formatValue renders strings bare and everything else in its Value form.
func (tf *TableFormatter) formatValue(val Value) string {
	var s string
	switch v := val.(type) {
	case String:
		s = string(v)
	case *Relation:
		s = v.Summary()
	case nil:
		s = "nil"
	default:
		s = v.String()
	}
	if tf.MaxWidth > 0 && len(s) > tf.MaxWidth {
		cut := tf.MaxWidth - len(tf.TruncateString)
		if cut < 0 {
			cut = 0
		}
		s = s[:cut] + tf.TruncateString
	}
	return s
}

// RelationString returns a markdown table representation of a relation
func RelationString(rel *Relation) string {
	return NewTableFormatter().FormatRelation(rel)
}
