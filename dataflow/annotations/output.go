package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
	renderer *RelationRenderer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd()) && !color.NoColor
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
		renderer: NewRelationRenderer(useColor),
	}
}

// Handle prints events as they occur. It has the Handler signature.
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)
	d := event.Data

	switch event.Name {
	case RunBegin:
		return fmt.Sprintf("%s %s Run %d starting with %s",
			latency,
			f.colorize("===", color.FgYellow),
			intOf(d, "run"),
			f.colorizeCount("dirty nodes", intOf(d, "dirty.count")))

	case Round:
		return fmt.Sprintf("%s Round %d evaluating [%s], %s remain dirty",
			latency,
			intOf(d, "round"),
			f.colorize(strings.Join(stringsOf(d, "batch"), " "), color.FgCyan),
			humanize.Comma(int64(intOf(d, "dirty.count"))))

	case NodeEvaluated:
		node := f.colorize(stringOf(d, "node"), color.FgBlue)
		rel := f.renderer.RenderRelation(stringsOf(d, "fields"), intOf(d, "tuple.count"))
		return fmt.Sprintf("%s %s(%s) → %s", latency, stringOf(d, "kind"), node, rel)

	case NodeChanged:
		return fmt.Sprintf("%s   %s %s",
			latency,
			stringOf(d, "node"),
			f.renderer.RenderDelta(intOf(d, "added"), intOf(d, "removed")))

	case TableWrite:
		verb := stringOf(d, "op")
		if changed, _ := d["changed"].(bool); !changed {
			verb += " (no-op)"
		}
		return fmt.Sprintf("%s Table(%s) %s → %s",
			latency,
			f.colorize(stringOf(d, "node"), color.FgBlue),
			verb,
			f.colorizeCount("Tuples", intOf(d, "tuple.count")))

	case RunComplete:
		if success, _ := d["success"].(bool); !success {
			return fmt.Sprintf("%s %s Run %d failed: %v",
				latency,
				f.colorize("✗", color.FgRed),
				intOf(d, "run"),
				d["error"])
		}
		return fmt.Sprintf("%s %s Run %d reached fixpoint after %s with %s and %s.",
			latency,
			f.colorize("===", color.FgGreen),
			intOf(d, "run"),
			english.Plural(intOf(d, "rounds"), "round", "rounds"),
			english.Plural(intOf(d, "evaluations"), "evaluation", "evaluations"),
			f.colorizeCount("changes", intOf(d, "changes")))

	case ErrorEvaluation:
		return fmt.Sprintf("%s %s %s: %v",
			latency,
			f.colorize("✗", color.FgRed),
			stringOf(d, "node"),
			d["error"])

	default:
		return fmt.Sprintf("%s %s %v", latency, event.Name, d)
	}
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)
	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%s %s", humanize.Comma(int64(count)), label)
	if !f.useColor {
		return text
	}
	switch strings.ToLower(label) {
	case "tuples":
		return color.MagentaString(text)
	case "changes":
		return color.CyanString(text)
	default:
		return text
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

func intOf(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case uint64:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

func stringOf(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func stringsOf(data map[string]interface{}, key string) []string {
	s, _ := data[key].([]string)
	return s
}

// ConsoleHandler creates a handler that prints formatted events to w (stdout
// when nil).
func ConsoleHandler(w io.Writer) Handler {
	return NewOutputFormatter(w).Handle
}

// isTerminal reports whether fd is an interactive terminal.
func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
