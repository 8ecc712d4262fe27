package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dlcore/internal/eval"
	"dlcore/internal/ir"
	"dlcore/internal/pretty"
	"dlcore/internal/store"
	"dlcore/internal/store/sqlstore"
	"dlcore/internal/syntax"
)

var runCmd = &cobra.Command{
	Use:   "run <file...>",
	Short: "parse, compile, stratify, and execute one or more source files, printing the final store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// readUnits reads and parses every file concurrently (errgroup), matching
// the teacher's controlled-concurrency fan-out shape for independent,
// order-insensitive work. Units are returned in the same order as files,
// not completion order, so downstream rename/stratify output is
// reproducible across runs.
func readUnits(files []string) ([]*syntax.Unit, error) {
	units := make([]*syntax.Unit, len(files))
	g := new(errgroup.Group)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			data, err := os.ReadFile(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", f, err)
			}
			u, err := syntax.Parse(string(data))
			if err != nil {
				return fmt.Errorf("parse %s: %w", f, err)
			}
			units[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return units, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	units, err := readUnits(args)
	if err != nil {
		return err
	}

	c := ir.New()
	prog, strat, err := eval.Compile(c, units...)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	st, closeStore, err := newStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if _, err := eval.Execute(c, prog, strat, st, eval.Options{Logger: stdLogger(), ProgressInterval: progressInterval(), MaxIterations: cfg.Eval.MaxIterations}); err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	if limit := cfg.Eval.FactLimit; limit > 0 {
		facts := 0
		for pred := range prog.AllPredicates() {
			rows, err := st.Scan(c.NameString(pred))
			if err != nil {
				return fmt.Errorf("count facts: %w", err)
			}
			facts += len(rows)
		}
		if facts > limit {
			return fmt.Errorf("execute: store holds %d facts, over fact_limit %d", facts, limit)
		}
	}

	out, err := pretty.Store(prog, st)
	if err != nil {
		return fmt.Errorf("print store: %w", err)
	}
	fmt.Print(out)
	return nil
}

// newStore opens the Store backend cfg.Store.Backend names.
func newStore() (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case "sqlite":
		s, err := sqlstore.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, func() { s.Close() }, nil
	default:
		return store.NewMem(), func() {}, nil
	}
}
