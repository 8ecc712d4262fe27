package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dlcore/internal/eval"
	"dlcore/internal/ir"
	"dlcore/internal/wasmgen"
)

var wasmCmd = &cobra.Command{
	Use:   "wasm <file>",
	Short: "compile a stratified program to WebAssembly (not implemented)",
	Args:  cobra.ExactArgs(1),
	RunE:  runWasm,
}

func init() {
	rootCmd.AddCommand(wasmCmd)
}

func runWasm(cmd *cobra.Command, args []string) error {
	units, err := readUnits(args)
	if err != nil {
		return err
	}

	c := ir.New()
	prog, strat, err := eval.Compile(c, units...)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	if _, err := wasmgen.Compile(prog, strat); err != nil {
		return err
	}
	return nil
}
