// Package program assembles lowered units into the flat "program object"
// spec.md §4.3 and §6.2 describe: rules indexed by head predicate, plus
// the set of extensional predicates inferred from which predicates never
// appear as a rule head (spec.md §6.2's compile entry point: "program
// assembly (partitioning predicates into ext/int based on which appear as
// heads)").
package program

import (
	"dlcore/internal/ir"
	"dlcore/internal/lower"
)

// Program is the input to stratification, planning, and evaluation.
type Program struct {
	Container *ir.Container

	// RulesByHead indexes every rule instruction by its head predicate.
	// A predicate with at least one entry here is intensional.
	RulesByHead map[ir.NameId][]ir.InstId

	// Extensional holds every predicate referenced in a premise that is
	// not also a head of some rule (spec.md §3's partition invariant).
	Extensional map[ir.NameId]bool

	// Decls maps a predicate to its declaration instruction, when one was
	// given.
	Decls map[ir.NameId]ir.InstId
}

// Assemble folds one or more lower.Result (one per compiled unit) into a
// single Program. Units are folded before stratification so that a
// program spanning several files (e.g. a schema file plus rule files,
// per SPEC_FULL.md §C.4) is stratified as one whole.
func Assemble(c *ir.Container, results ...lower.Result) *Program {
	p := &Program{
		Container:   c,
		RulesByHead: make(map[ir.NameId][]ir.InstId),
		Extensional: make(map[ir.NameId]bool),
		Decls:       make(map[ir.NameId]ir.InstId),
	}

	var allRules []ir.InstId
	for _, r := range results {
		for _, d := range r.Decls {
			pred := c.Get(c.Get(d).DeclAtom).NameH
			p.Decls[pred] = d
		}
		allRules = append(allRules, r.Rules...)
	}

	for _, ruleId := range allRules {
		head := c.Get(c.Get(ruleId).RuleHead).NameH
		p.RulesByHead[head] = append(p.RulesByHead[head], ruleId)
	}

	for _, ruleId := range allRules {
		rule := c.Get(ruleId)
		for _, premId := range rule.RulePremises {
			prem := c.Get(premId)
			var atomId ir.InstId
			switch prem.Kind {
			case ir.KAtom:
				atomId = premId
			case ir.KNegAtom:
				atomId = prem.AtomIdx
			default:
				continue
			}
			pred := c.Get(atomId).NameH
			if _, intensional := p.RulesByHead[pred]; !intensional {
				p.Extensional[pred] = true
			}
		}
	}

	return p
}

// IsIntensional reports whether pred has at least one defining rule.
func (p *Program) IsIntensional(pred ir.NameId) bool {
	_, ok := p.RulesByHead[pred]
	return ok
}

// IsExtensional reports whether pred was only ever seen as a premise.
func (p *Program) IsExtensional(pred ir.NameId) bool {
	return p.Extensional[pred]
}

// AllPredicates returns the union of every intensional and extensional
// predicate in the program, for property tests like spec.md §8's
// "Partition" universal property.
func (p *Program) AllPredicates() map[ir.NameId]bool {
	all := make(map[ir.NameId]bool, len(p.RulesByHead)+len(p.Extensional))
	for pred := range p.RulesByHead {
		all[pred] = true
	}
	for pred := range p.Extensional {
		all[pred] = true
	}
	return all
}
