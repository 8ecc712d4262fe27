// Package rename implements spec.md §4.2: rewriting predicate symbols
// according to a unit's package header so that modules can namespace
// their own predicates without colliding with imported or builtin ones.
package rename

import (
	"dlcore/internal/ir"
	"dlcore/internal/lower"
	"dlcore/internal/syntax"
)

// Unit rewrites every locally-defined predicate reference produced by
// lowering u into res to "<pkg>.<name>", leaving everything else
// untouched. Package and Use headers never become IR instructions in the
// first place (internal/lower only lowers Decls and Clauses), so
// "dropping" them from the output is automatic rather than an explicit
// step here.
//
// Re-running Unit on a unit with an empty package name is the identity,
// since rewritePred short-circuits whenever pkg == "".
func Unit(c *ir.Container, u *syntax.Unit, res lower.Result) {
	pkg := ""
	if u.Package != nil {
		pkg = u.Package.Name
	}

	local := localPredicates(c, res)
	memo := make(map[ir.NameId]ir.NameId)

	for _, declId := range res.Decls {
		d := c.Get(declId)
		renameAtom(c, local, memo, pkg, d.DeclAtom)
		for _, a := range d.DeclDescr {
			renameAtom(c, local, memo, pkg, a)
		}
		for _, b := range d.DeclBounds {
			bd := c.Get(b)
			for _, t := range bd.BoundTerms {
				renameNameConstsInTerm(c, local, memo, pkg, t)
			}
		}
		if d.HasConstraints {
			cons := c.Get(d.DeclConstraints)
			for _, a := range cons.ConstraintConseq {
				renameAtom(c, local, memo, pkg, a)
			}
			for _, alt := range cons.ConstraintAlts {
				for _, a := range alt {
					renameAtom(c, local, memo, pkg, a)
				}
			}
		}
	}

	for _, ruleId := range res.Rules {
		r := c.Get(ruleId)
		renameAtom(c, local, memo, pkg, r.RuleHead)
		for _, premId := range r.RulePremises {
			p := c.Get(premId)
			switch p.Kind {
			case ir.KAtom:
				renameAtom(c, local, memo, pkg, premId)
			case ir.KNegAtom:
				renameAtom(c, local, memo, pkg, p.AtomIdx)
			}
		}
	}
}

// localPredicates is the set of predicates defined by this unit: every
// Decl.atom and every rule head (spec.md §4.2).
func localPredicates(c *ir.Container, res lower.Result) map[ir.NameId]bool {
	local := make(map[ir.NameId]bool)
	for _, declId := range res.Decls {
		local[c.Get(c.Get(declId).DeclAtom).NameH] = true
	}
	for _, ruleId := range res.Rules {
		local[c.Get(c.Get(ruleId).RuleHead).NameH] = true
	}
	return local
}

func renameAtom(c *ir.Container, local map[ir.NameId]bool, memo map[ir.NameId]ir.NameId, pkg string, atomId ir.InstId) {
	if atomId == 0 {
		return
	}
	a := c.Get(atomId)
	if a.Kind != ir.KAtom {
		return
	}
	if local[a.NameH] {
		c.ReplaceAtomPred(atomId, rewritePred(c, memo, pkg, a.NameH))
	}
}

// rewritePred computes (and memoizes) the renamed handle for a predicate
// known to be locally defined. It returns pred unchanged when pkg == "";
// callers do not check pkg themselves, so every call site stays simple.
func rewritePred(c *ir.Container, memo map[ir.NameId]ir.NameId, pkg string, pred ir.NameId) ir.NameId {
	if pkg == "" {
		return pred
	}
	if renamed, ok := memo[pred]; ok {
		return renamed
	}
	renamed := c.InternName(pkg + "." + c.NameString(pred))
	memo[pred] = renamed
	return renamed
}

// renameNameConstsInTerm recurses through a bound-declaration term,
// rewriting any Name constant whose string equals a locally defined
// predicate name (spec.md §4.2's type-bound clause).
func renameNameConstsInTerm(c *ir.Container, local map[ir.NameId]bool, memo map[ir.NameId]ir.NameId, pkg string, termId ir.InstId) {
	if termId == 0 {
		return
	}
	t := c.Get(termId)
	switch t.Kind {
	case ir.KName:
		if local[t.NameH] {
			c.ReplaceNameConst(termId, rewritePred(c, memo, pkg, t.NameH))
		}
	case ir.KApplyFn:
		for _, a := range t.Args {
			renameNameConstsInTerm(c, local, memo, pkg, a)
		}
	case ir.KList:
		for _, e := range t.Elems {
			renameNameConstsInTerm(c, local, memo, pkg, e)
		}
	case ir.KMap:
		for i := range t.Keys {
			renameNameConstsInTerm(c, local, memo, pkg, t.Keys[i])
			renameNameConstsInTerm(c, local, memo, pkg, t.Vals[i])
		}
	case ir.KStructC:
		for _, v := range t.FieldVals {
			renameNameConstsInTerm(c, local, memo, pkg, v)
		}
	}
}
