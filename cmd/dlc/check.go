package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dlcore/internal/eval"
	"dlcore/internal/ir"
)

var checkCmd = &cobra.Command{
	Use:   "check <file...>",
	Short: "compile and stratify without executing, reporting the phase and message of any compile error",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	units, err := readUnits(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse:", err)
		os.Exit(1)
	}

	c := ir.New()
	if _, _, err := eval.Compile(c, units...); err != nil {
		fmt.Fprintln(os.Stderr, "compile:", err)
		os.Exit(1)
	}

	fmt.Println("ok")
	return nil
}
