package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"dlcore/internal/eval"
	"dlcore/internal/ir"
	"dlcore/internal/pretty"
	"dlcore/internal/store"
)

const watchDebounce = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "recompile and re-execute a source file on every write, printing a diff of the store between runs",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// recompute parses, compiles, and executes file from scratch against a
// fresh in-memory store (watch mode always uses Mem, regardless of
// cfg.Store.Backend, since a file-backed store would otherwise
// accumulate facts from prior reloads).
func recompute(file string) (string, error) {
	units, err := readUnits([]string{file})
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", file, err)
	}

	c := ir.New()
	prog, strat, err := eval.Compile(c, units...)
	if err != nil {
		return "", fmt.Errorf("compile: %w", err)
	}

	st := store.NewMem()
	if _, err := eval.Execute(c, prog, strat, st, eval.Options{}); err != nil {
		return "", fmt.Errorf("execute: %w", err)
	}

	return pretty.Store(prog, st)
}

func runWatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	dir := filepath.Dir(file)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	prev, err := recompute(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "initial run:", err)
	} else {
		fmt.Print(prev)
	}

	var debounceTimer *time.Timer
	recomputeAndDiff := func() {
		next, err := recompute(file)
		if err != nil {
			fmt.Fprintln(os.Stderr, "recompute:", err)
			return
		}
		if diff := cmp.Diff(prev, next); diff != "" {
			fmt.Println("--- store changed ---")
			fmt.Println(diff)
		}
		prev = next
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, recomputeAndDiff)

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch error:", werr)
		}
	}
}
