package dataflow

import (
	"strings"
	"testing"
)

func TestTableFormatter(t *testing.T) {
	formatter := NewTableFormatter()

	t.Run("FormatEmptyRelation", func(t *testing.T) {
		result := formatter.FormatRelation(NewRelation("a"))
		if result != "_Empty relation_" {
			t.Errorf("Expected '_Empty relation_', got %s", result)
		}
	})

	t.Run("FormatSimpleRelation", func(t *testing.T) {
		rel, err := RelationOf([]string{"name", "age", "active"},
			MustTuple("Alice", 30, true),
			MustTuple("Bob", 25, false),
			MustTuple("Charlie", 35, true),
		)
		if err != nil {
			t.Fatal(err)
		}

		result := formatter.FormatRelation(rel)
		for _, want := range []string{"name", "Alice", "30", "false", "3 rows"} {
			if !strings.Contains(result, want) {
				t.Errorf("Missing %q in:\n%s", want, result)
			}
		}
	})

	t.Run("PositionalHeaders", func(t *testing.T) {
		result := formatter.FormatRelation(MustRelation(MustTuple("x", "y")))
		if !strings.Contains(result, "$0") || !strings.Contains(result, "$1") {
			t.Errorf("Expected positional headers, got:\n%s", result)
		}
	})

	t.Run("TruncatesLongValues", func(t *testing.T) {
		f := &TableFormatter{MaxWidth: 8, TruncateString: "..."}
		result := f.FormatRelation(MustRelation(MustTuple(strings.Repeat("z", 40))))
		if !strings.Contains(result, "zzzzz...") {
			t.Errorf("Expected truncated cell, got:\n%s", result)
		}
		if strings.Contains(result, strings.Repeat("z", 9)) {
			t.Errorf("Cell was not truncated:\n%s", result)
		}
	})
}
