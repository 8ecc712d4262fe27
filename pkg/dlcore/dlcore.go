// Package dlcore is a public shim for the internal compiler pipeline,
// grounded on the teacher's pkg/mangle/mangle.go: a thin re-export layer
// so external tools can use the engine without reaching into `internal`
// packages. Per the teacher's own stated intent for that shim, this one
// stays minimal — it adds no logic beyond aliasing.
package dlcore

import (
	"dlcore/internal/config"
	"dlcore/internal/dllog"
	"dlcore/internal/eval"
	"dlcore/internal/ir"
	"dlcore/internal/pretty"
	"dlcore/internal/program"
	"dlcore/internal/store"
	"dlcore/internal/store/sqlstore"
	"dlcore/internal/stratify"
	"dlcore/internal/syntax"
	"dlcore/internal/wasmgen"
)

// Core IR and pipeline types.
type (
	Container  = ir.Container
	Value      = ir.Value
	NameId     = ir.NameId
	Unit       = syntax.Unit
	Program    = program.Program
	Stratified = stratify.Stratified
	EvalError  = eval.Error
	EvalOptions = eval.Options
)

// Store types.
type (
	Row         = store.Row
	Store       = store.Store
	Mem         = store.Mem
	Composite   = store.Composite
	SQLiteStore = sqlstore.Store
)

// Config/logging types.
type (
	Config        = config.Config
	LogCategory   = dllog.Category
	PrettyPrinter = pretty.Printer
)

// Pipeline entry points.
var (
	NewContainer = ir.New
	Parse        = syntax.Parse
	Compile      = eval.Compile
	Execute      = eval.Execute
)

// Store constructors.
var (
	NewMem       = store.NewMem
	NewComposite = store.NewComposite
	OpenSQLite   = sqlstore.Open
)

// Pretty printing.
var (
	NewPrinter   = pretty.New
	PrintProgram = pretty.Program
	PrintStore   = pretty.Store
)

// Config / logging.
var (
	DefaultConfig = config.DefaultConfig
	LoadConfig    = config.Load
	InitLogging   = dllog.Initialize
	GetLogger     = dllog.Get
)

// wasmgen: out-of-scope collaborator, re-exported so callers don't need
// to reach into internal/wasmgen directly to observe the stub error.
var (
	CompileToWasm      = wasmgen.Compile
	ErrWasmNotImplemented = wasmgen.ErrNotImplemented
)
