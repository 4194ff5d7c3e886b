package annotations

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	var seen []string
	c := NewCollector(func(e Event) { seen = append(seen, e.Name) })
	c.AddTiming(RunBegin, time.Now(), map[string]interface{}{"run": uint64(1)})
	c.Add(Event{Name: RunComplete})

	require.Len(t, c.Events(), 2)
	assert.Equal(t, []string{RunBegin, RunComplete}, seen)
	assert.True(t, c.Events()[0].Latency >= 0)

	c.Reset()
	assert.Empty(t, c.Events())
}

func TestDisabledCollector(t *testing.T) {
	c := NewCollector(nil)
	assert.False(t, c.Enabled())
	c.Add(Event{Name: RunBegin})
	assert.Empty(t, c.Events())

	var nilCollector *Collector
	assert.False(t, nilCollector.Enabled())
}

func TestOutputFormatter(t *testing.T) {
	// A bytes.Buffer is never a terminal, so output is uncolored.
	var buf bytes.Buffer
	f := NewOutputFormatter(&buf)

	tests := []struct {
		name  string
		event Event
		want  []string
	}{
		{
			name:  "run begin",
			event: Event{Name: RunBegin, Data: map[string]interface{}{"run": uint64(3), "dirty.count": 4}},
			want:  []string{"Run 3", "4 dirty nodes"},
		},
		{
			name:  "round",
			event: Event{Name: Round, Data: map[string]interface{}{"round": 2, "batch": []string{"path", "next"}, "dirty.count": 1}},
			want:  []string{"Round 2", "[path next]"},
		},
		{
			name: "evaluated",
			event: Event{Name: NodeEvaluated, Data: map[string]interface{}{
				"node": "path", "kind": "join", "fields": []string{"from", "to"}, "tuple.count": 1200,
			}},
			want: []string{"join(path)", "Relation([from to], 1,200 Tuples)"},
		},
		{
			name:  "changed",
			event: Event{Name: NodeChanged, Data: map[string]interface{}{"node": "path", "added": 3, "removed": 1}},
			want:  []string{"path +3/-1"},
		},
		{
			name:  "table write no-op",
			event: Event{Name: TableWrite, Data: map[string]interface{}{"node": "edge", "op": "insert", "tuple.count": 2}},
			want:  []string{"Table(edge) insert (no-op)"},
		},
		{
			name: "completed",
			event: Event{Name: RunComplete, Data: map[string]interface{}{
				"run": uint64(1), "success": true, "rounds": 1, "evaluations": 3, "changes": 2,
			}},
			want: []string{"1 round", "3 evaluations", "2 changes"},
		},
		{
			name:  "failed",
			event: Event{Name: RunComplete, Data: map[string]interface{}{"run": uint64(1), "success": false, "error": "boom"}},
			want:  []string{"failed: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.Format(tt.event)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}

	f.Handle(Event{Name: ErrorEvaluation, Data: map[string]interface{}{"node": "path", "error": "bad"}})
	assert.True(t, strings.HasSuffix(buf.String(), "path: bad\n"))
}

func TestFormatterOnPipeIsUncolored(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	f := NewOutputFormatter(w)
	assert.False(t, f.useColor, "a pipe is not a terminal")
	assert.False(t, isTerminal(w.Fd()))

	out := f.Format(Event{Name: RunComplete, Data: map[string]interface{}{
		"run": uint64(2), "success": true, "rounds": 2, "evaluations": 1, "changes": 0,
	}})
	assert.Contains(t, out, "2 rounds")
	assert.Contains(t, out, "1 evaluation ")
	assert.NotContains(t, out, "\x1b[")
}
