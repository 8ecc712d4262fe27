// Package plan implements spec.md §4.4: lowering a rule's logical premises
// and transforms into a physical operation tree (Iterate/Filter/Let/Insert/
// GroupBy/Seq/Nop) that the evaluator in internal/eval walks directly.
//
// Physical ops are a separate Go-struct tree rather than ir.Inst entries:
// the planner never needs index-addressed sharing or rename rewriting over
// this tree, only tree-shaped construction and a single downward walk, so
// the lighter representation avoids polluting the Container's instruction
// vector with nodes no other pass ever looks at.
package plan

import "dlcore/internal/ir"

// OpKind tags a physical operation node.
type OpKind uint8

const (
	OpIterate OpKind = iota
	OpFilter
	OpLet
	OpInsert
	OpGroupBy
	OpSeq
	OpNop
)

func (k OpKind) String() string {
	switch k {
	case OpIterate:
		return "Iterate"
	case OpFilter:
		return "Filter"
	case OpLet:
		return "Let"
	case OpInsert:
		return "Insert"
	case OpGroupBy:
		return "GroupBy"
	case OpSeq:
		return "Seq"
	case OpNop:
		return "Nop"
	default:
		return "Unknown"
	}
}

// SourceKind tags how an Iterate node obtains its rows.
type SourceKind uint8

const (
	SourceScan SourceKind = iota
	SourceScanDelta
	SourceIndexLookup
)

// Source names the relation (and access path) an Iterate node reads from.
type Source struct {
	Kind     SourceKind
	Relation ir.NameId
	ColIdx   int  // SourceIndexLookup only
	Key      Expr // SourceIndexLookup only: the bound value to look up
}

// ExprKind tags a runtime-evaluated expression.
type ExprKind uint8

const (
	EVar ExprKind = iota
	EConst
	ECall
)

// Expr is a physical-layer expression: a variable reference, a literal
// value, or a function call over nested Exprs (spec.md §4.6's operator
// interpreter evaluates these against a variable environment).
type Expr struct {
	Kind  ExprKind
	Var   ir.NameId
	Const ir.Value
	Fn    ir.NameId
	Args  []Expr
}

// CondKind tags a Filter's comparison.
type CondKind uint8

const (
	CondEq CondKind = iota
	CondIneq
)

// Cond is the predicate a Filter node tests before continuing into Body.
type Cond struct {
	Kind  CondKind
	Left  Expr
	Right Expr
}

// AggKind tags a GroupBy aggregate function.
type AggKind uint8

const (
	AggSum AggKind = iota
	AggCount
	AggMax
	AggMin
	AggCollect
)

// Aggregate is one `let v = fn:agg(Arg)` reduction computed per group.
type Aggregate struct {
	Kind      AggKind
	ResultVar ir.NameId
	Arg       Expr
}

// Op is one node of a rule's physical operation tree. Only the fields
// relevant to Kind are meaningful, mirroring the tagged-variant encoding
// internal/ir uses for the logical layer (spec.md's design notes endorse
// either representation for the physical layer too).
type Op struct {
	Kind OpKind

	// Iterate: read Source, bind one fresh variable per column in Vars
	// (column i's variable holds that row's i'th field), then run Body.
	Source Source
	Vars   []ir.NameId
	Body   *Op

	// Filter: check Cond, then (if it holds) run Body.
	Cond Cond

	// Let: bind LetVar to LetExpr's value, then run Body.
	LetVar  ir.NameId
	LetExpr Expr

	// Insert: append one tuple (Args, evaluated left to right) to Relation.
	Relation ir.NameId
	Args     []Expr

	// GroupBy: scan GroupSource (stable ∪ delta ∪ next-delta), binding each
	// row's columns to GroupVars (the full column schema of GroupSource, in
	// the order captured when it was written) and grouping rows by the
	// values of the GroupKeys variables.
	// For each distinct key tuple: rebind the GroupKeys variables, compute
	// every Aggregate over that group's rows, then run Body with only the
	// keys and aggregate results bound.
	GroupSource ir.NameId
	GroupVars   []ir.NameId
	GroupKeys   []ir.NameId
	Aggregates  []Aggregate

	// Seq: run every Children entry in order.
	Children []*Op
}

// RulePlan is the full physical plan for one rule: one Op per block, split
// at `do` aggregation boundaries (spec.md §4.4's block-splitting rule).
// Blocks communicate through the anonymous temporary relations listed in
// Temps, which the evaluator must create before running Blocks[0].
type RulePlan struct {
	Blocks []*Op
	Temps  []ir.NameId
}

// Error is a planner failure: one of spec.md §7's four named planner error
// kinds ("unsupported premise", "group-by keys must be variables",
// "complex expressions in aggregates not supported", and malformed-do).
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "plan: " + e.Msg }
