package typecheck

import (
	"fmt"
	"sort"

	"dlcore/internal/ir"
	"dlcore/internal/program"
)

// Error is a type-checker failure: spec.md §7's "arity mismatch" or "type
// mismatch" kind, first-wins and fatal to the pipeline.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "typecheck: " + e.Msg }

// Check runs both passes of spec.md §4.5 over p: collect signatures from
// Decls, then check every rule's premises (left to right) and head. Rules
// are visited in a deterministic order (by head predicate text, then
// source order within that predicate) so that which error wins a tie
// between two independently-broken rules does not depend on Go's map
// iteration order.
func Check(p *program.Program) error {
	c := p.Container
	sigs := collectSignatures(c, p)

	for _, pred := range sortedPreds(c, p.RulesByHead) {
		for _, ruleId := range p.RulesByHead[pred] {
			if err := checkRule(c, sigs, ruleId); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectSignatures builds one argument-type signature per declared
// predicate from the first BoundDecl of each Decl (spec.md §4.5 pass 1).
// A Decl with no bounds, or a predicate with no Decl at all, is absent
// from the result; checkAtom treats an absent signature as "skip arity
// and type checks" (spec.md: "Undeclared predicates get an all-Any
// signature" — equivalent in effect, since an all-Any signature of the
// atom's own arity can never fail either check).
func collectSignatures(c *ir.Container, p *program.Program) map[ir.NameId][]Type {
	sigs := make(map[ir.NameId][]Type, len(p.Decls))
	for pred, declId := range p.Decls {
		d := c.Get(declId)
		if len(d.DeclBounds) == 0 {
			continue
		}
		first := c.Get(d.DeclBounds[0])
		sig := make([]Type, len(first.BoundTerms))
		for i, termId := range first.BoundTerms {
			sig[i] = resolveType(c, termId)
		}
		sigs[pred] = sig
	}
	return sigs
}

func checkRule(c *ir.Container, sigs map[ir.NameId][]Type, ruleId ir.InstId) error {
	rule := c.Get(ruleId)
	scope := map[ir.NameId]Type{}

	for _, premId := range rule.RulePremises {
		prem := c.Get(premId)
		var atomId ir.InstId
		switch prem.Kind {
		case ir.KAtom:
			atomId = premId
		case ir.KNegAtom:
			atomId = prem.AtomIdx
		default:
			// Eq/Ineq premises carry no predicate signature to check
			// against; their operands are still ordinary terms, but
			// spec.md §4.5 only names atom arity/type checking.
			continue
		}
		if err := checkAtom(c, sigs, scope, atomId); err != nil {
			return err
		}
	}
	return checkAtom(c, sigs, scope, rule.RuleHead)
}

// checkAtom checks one atom's arity and argument types against sigs,
// updating scope with each variable argument's resolved type as it goes
// (spec.md §4.5: "Variable types are stored in a scope and updated on
// each constraint").
func checkAtom(c *ir.Container, sigs map[ir.NameId][]Type, scope map[ir.NameId]Type, atomId ir.InstId) error {
	a := c.Get(atomId)
	sig, declared := sigs[a.NameH]
	if declared && len(sig) != len(a.Args) {
		return &Error{Msg: fmt.Sprintf("arity mismatch: %s declared with %d argument(s), used with %d",
			c.NameString(a.NameH), len(sig), len(a.Args))}
	}

	for i, argId := range a.Args {
		inferred := inferTerm(c, scope, argId)
		resolved := inferred
		if declared {
			unified, ok := unify(sig[i], inferred)
			if !ok {
				return &Error{Msg: fmt.Sprintf("type mismatch: %s argument %d declared %s, got %s",
					c.NameString(a.NameH), i, sig[i].String(), inferred.String())}
			}
			resolved = unified
		}
		if v := c.Get(argId); v.Kind == ir.KVar && v.NameH != ir.WildcardName {
			scope[v.NameH] = resolved
		}
	}
	return nil
}

// inferTerm computes an atom argument's type. A bound variable resolves
// to its current scope type (Any on first occurrence); a constant
// resolves structurally. ApplyFn terms (function calls used directly as
// an atom argument, as opposed to inside a `let`) infer as Any: the
// checker has no declared return-type vocabulary for functions, only for
// predicate arguments, so a call's result cannot be checked against
// anything more specific without inventing one.
func inferTerm(c *ir.Container, scope map[ir.NameId]Type, termId ir.InstId) Type {
	t := c.Get(termId)
	switch t.Kind {
	case ir.KVar:
		if t.NameH == ir.WildcardName {
			return Type{Kind: TAny}
		}
		if ty, ok := scope[t.NameH]; ok {
			return ty
		}
		return Type{Kind: TAny}
	case ir.KBool:
		return Type{Kind: TBool}
	case ir.KNumber:
		return Type{Kind: TNumber}
	case ir.KFloat:
		return Type{Kind: TFloat}
	case ir.KString:
		return Type{Kind: TString}
	case ir.KBytes:
		return Type{Kind: TBytes}
	case ir.KName:
		// A Name constant used as a data value, not a type bound — opaque.
		return Type{Kind: TAny}
	case ir.KList:
		elem := Type{Kind: TAny}
		for _, e := range t.Elems {
			if unified, ok := unify(elem, inferTerm(c, scope, e)); ok {
				elem = unified
			}
		}
		return Type{Kind: TList, Elem: &elem}
	case ir.KMap:
		key, val := Type{Kind: TAny}, Type{Kind: TAny}
		for i := range t.Keys {
			if unified, ok := unify(key, inferTerm(c, scope, t.Keys[i])); ok {
				key = unified
			}
			if unified, ok := unify(val, inferTerm(c, scope, t.Vals[i])); ok {
				val = unified
			}
		}
		return Type{Kind: TMap, Key: &key, Val: &val}
	case ir.KStructC:
		return Type{Kind: TStruct}
	default:
		return Type{Kind: TAny}
	}
}

func sortedPreds(c *ir.Container, m map[ir.NameId][]ir.InstId) []ir.NameId {
	out := make([]ir.NameId, 0, len(m))
	for pred := range m {
		out = append(out, pred)
	}
	sort.Slice(out, func(i, j int) bool { return c.NameString(out[i]) < c.NameString(out[j]) })
	return out
}
