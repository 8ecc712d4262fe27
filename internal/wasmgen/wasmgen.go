// Package wasmgen is the compile_to_wasm stub spec.md §6.2 names and
// places out of scope: "the core must leave the IR in a form suitable
// for a back-end emitter, but its output is not part of this
// specification." The original's `mangle_codegen` crate (WasmImportsBackend
// over a stratified Program) is a legitimate external emitter this
// package intentionally does not reimplement.
package wasmgen

import (
	"errors"

	"dlcore/internal/program"
	"dlcore/internal/stratify"
)

// ErrNotImplemented is returned by Compile. The core's job ends at
// leaving a typed, stratified Program behind; turning that into a wasm
// module is an external emitter's job.
var ErrNotImplemented = errors.New("wasmgen: compile_to_wasm is not part of this module; " +
	"use an external emitter over the stratified program")

// Compile would lower prog/strat to a wasm module; it always fails.
func Compile(prog *program.Program, strat *stratify.Stratified) ([]byte, error) {
	return nil, ErrNotImplemented
}
