package eval

import "dlcore/internal/ir"

// scalarFn is a built-in function usable inside a `let` expression.
// Grounded on `rust/interpreter/src/lib.rs`'s eval_expr match, which
// recognizes exactly two: fn:plus and fn:minus.
type scalarFn func(args []ir.Value) (ir.Value, error)

var scalarFns = map[string]scalarFn{
	"fn:plus":  biArith("fn:plus", func(a, b int64) int64 { return a + b }),
	"fn:minus": biArith("fn:minus", func(a, b int64) int64 { return a - b }),
}

func biArith(name string, op func(a, b int64) int64) scalarFn {
	return func(args []ir.Value) (ir.Value, error) {
		if len(args) != 2 {
			return ir.Value{}, &Error{Msg: name + " requires 2 arguments"}
		}
		a, b := args[0], args[1]
		if a.Kind != ir.KindNumber || b.Kind != ir.KindNumber {
			return ir.Value{}, &Error{Msg: "type mismatch in built-in function " + name}
		}
		return ir.Number(op(a.Number, b.Number)), nil
	}
}
