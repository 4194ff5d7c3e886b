package main

import (
	_ "embed"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"
	"github.com/wbrown/janus-flow/dataflow"
	"github.com/wbrown/janus-flow/dataflow/annotations"
	"github.com/wbrown/janus-flow/dataflow/flow"
	"github.com/wbrown/janus-flow/dataflow/primitive"
	"github.com/wbrown/janus-flow/dataflow/storage"
	"github.com/wbrown/janus-flow/dataflow/topology"
)

//go:embed demo.edn
var demoTopology string

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "flow",
		Short:         "Run incremental relational dataflow topologies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.IntP("workers", "w", 1, "parallel node evaluations per round (0 = NumCPU)")
	pf.Int("max-rounds", 0, "abort a run after this many rounds (0 = unlimited)")
	pf.BoolP("verbose", "v", false, "print run annotations to stderr")
	pf.String("journal", "", "journal run changes to this badger directory")
	pf.StringSlice("show", nil, "nodes to print (default: all)")

	root.AddCommand(&cobra.Command{
		Use:   "run topology.edn",
		Short: "Load a topology file, run it to fixpoint and print its outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			top, err := topology.ParseFile(args[0], primitive.Builtins())
			if err != nil {
				return err
			}
			return execute(cmd, out, top)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Run the transitive-closure demo topology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			top, err := topology.Parse(demoTopology, primitive.Builtins())
			if err != nil {
				return errors.Wrap(err, "demo topology")
			}
			return execute(cmd, out, top)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "journal dir",
		Short: "Print the changes recorded in a journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJournal(out, args[0])
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "primitives",
		Short: "List the built-in primitives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range primitive.Builtins().Names() {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	})
	return root
}

func execute(cmd *cobra.Command, out io.Writer, top *topology.Topology) error {
	cfg, err := configFor(cmd)
	if err != nil {
		return err
	}

	opts := []flow.Option{flow.WithWorkers(cfg.Workers), flow.WithMaxRounds(cfg.MaxRounds)}
	if cfg.Verbose {
		opts = append(opts, flow.WithHandler(annotations.ConsoleHandler(os.Stderr)))
	}
	if cfg.Journal != "" {
		j, err := storage.OpenJournal(cfg.Journal)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, flow.WithSink(j))
	}

	f, err := top.Build(opts...)
	if err != nil {
		return err
	}
	start := time.Now()
	changes, err := f.RunContext(cmd.Context())
	if err != nil {
		return err
	}
	stats := f.Stats()

	show := cfg.Show
	if len(show) == 0 {
		for _, n := range f.Nodes() {
			show = append(show, n.ID)
		}
	}
	tf := dataflow.NewTableFormatter()
	for _, id := range show {
		rel, err := f.Output(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "### %s\n\n%s\n", id, tf.FormatRelation(rel))
	}
	fmt.Fprintf(out, "%s over %s, %s, %s in %v\n",
		english.Plural(stats.Rounds, "round", "rounds"),
		english.Plural(len(f.Nodes()), "node", "nodes"),
		english.Plural(stats.Evaluations, "evaluation", "evaluations"),
		english.Plural(len(changes), "change", "changes"),
		time.Since(start).Round(time.Microsecond))
	return nil
}

func printJournal(out io.Writer, dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return errors.Wrap(err, "journal")
	}
	j, err := storage.OpenJournal(dir)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Entries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "run %d #%d %s +%d/-%d\n", e.Run, e.Seq, e.Change.ID, len(e.Change.Added), len(e.Change.Removed))
		for _, t := range e.Change.Removed {
			fmt.Fprintf(out, "  - %s\n", t)
		}
		for _, t := range e.Change.Added {
			fmt.Fprintf(out, "  + %s\n", t)
		}
	}
	fmt.Fprintf(out, "%s\n", english.Plural(len(entries), "entry", "entries"))
	return nil
}
