// Package pretty renders IR instructions back into the textual surface
// syntax, per spec.md §6.3 and SPEC_FULL.md §C.1: clauses as
// `head :- p1, p2, ... |> t1; t2.`, declarations as
// `atom [descr] bound b1 | b2 |> constraints.`. Used by `dlc run` and
// `dlc watch` (through Store) to print a store's contents.
package pretty

import (
	"strconv"
	"strings"

	"dlcore/internal/ir"
)

// Printer renders Inst trees rooted in a single Container. Unlike
// ir.Value.String(), which is self-contained, Inst nodes address
// constants and names through container-local handles, so every render
// call needs the owning Container to resolve them.
type Printer struct {
	c *ir.Container
}

// New returns a Printer bound to c.
func New(c *ir.Container) *Printer {
	return &Printer{c: c}
}

// Var renders a variable occurrence: its interned name, or "_" for the
// wildcard.
func (p *Printer) Var(name ir.NameId) string {
	if name == ir.WildcardName {
		return "_"
	}
	return p.c.NameString(name)
}

// Pred renders a predicate or function name.
func (p *Printer) Pred(name ir.NameId) string {
	return p.c.NameString(name)
}

// Const renders a constant instruction (Bool/Number/Float/String/Bytes/
// Name/List/Map/Struct) using the same quoting rules as ir.Value.String.
func (p *Printer) Const(id ir.InstId) string {
	in := p.c.Get(id)
	switch in.Kind {
	case ir.KBool:
		return strconv.FormatBool(in.Bool)
	case ir.KNumber:
		return strconv.FormatInt(in.Number, 10)
	case ir.KFloat:
		return strconv.FormatFloat(in.Float, 'g', -1, 64)
	case ir.KString:
		return ir.String(p.c.StringValue(in.Str)).String()
	case ir.KBytes:
		return ir.Bytes(in.Bytes).String()
	case ir.KName:
		return "/" + p.c.NameString(in.NameH)
	case ir.KList:
		parts := make([]string, len(in.Elems))
		for i, e := range in.Elems {
			parts[i] = p.Term(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ir.KMap:
		if len(in.Keys) == 0 {
			return "fn:map()"
		}
		parts := make([]string, len(in.Keys))
		for i := range in.Keys {
			parts[i] = p.Term(in.Keys[i]) + ": " + p.Term(in.Vals[i])
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ir.KStructC:
		parts := make([]string, len(in.FieldNames))
		for i, f := range in.FieldNames {
			parts[i] = p.c.NameString(f) + ": " + p.Term(in.FieldVals[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}

// Term renders any base term: a constant, a variable occurrence, or a
// function application.
func (p *Printer) Term(id ir.InstId) string {
	in := p.c.Get(id)
	switch in.Kind {
	case ir.KVar:
		return p.Var(in.NameH)
	case ir.KApplyFn:
		args := make([]string, len(in.Args))
		for i, a := range in.Args {
			args[i] = p.Term(a)
		}
		return p.Pred(in.NameH) + "(" + strings.Join(args, ", ") + ")"
	default:
		return p.Const(id)
	}
}

// Atom renders a predicate application: `pred(arg1, arg2)`.
func (p *Printer) Atom(id ir.InstId) string {
	in := p.c.Get(id)
	args := make([]string, len(in.Args))
	for i, a := range in.Args {
		args[i] = p.Term(a)
	}
	return p.Pred(in.NameH) + "(" + strings.Join(args, ", ") + ")"
}

// Premise renders one rule-body term: an atom, a negated atom, an
// equality, or an inequality.
func (p *Printer) Premise(id ir.InstId) string {
	in := p.c.Get(id)
	switch in.Kind {
	case ir.KAtom:
		return p.Atom(id)
	case ir.KNegAtom:
		return "!" + p.Atom(in.AtomIdx)
	case ir.KEq:
		return p.Term(in.Left) + " = " + p.Term(in.Right)
	case ir.KIneq:
		return p.Term(in.Left) + " != " + p.Term(in.Right)
	default:
		return "?"
	}
}

// Transform renders one `do app` or `let v = app` transform statement.
func (p *Printer) Transform(id ir.InstId) string {
	in := p.c.Get(id)
	if in.HasVar {
		return "let " + p.Var(in.TransformVar) + " = " + p.Term(in.TransformApp)
	}
	return "do " + p.Term(in.TransformApp)
}

// Rule renders a full clause: `head :- p1, p2, ... |> t1; t2.` A fact
// (no premises, no transforms) renders as just `head.`.
func (p *Printer) Rule(id ir.InstId) string {
	in := p.c.Get(id)
	var b strings.Builder
	b.WriteString(p.Atom(in.RuleHead))
	if len(in.RulePremises) > 0 {
		b.WriteString(" :- ")
		parts := make([]string, len(in.RulePremises))
		for i, prem := range in.RulePremises {
			parts[i] = p.Premise(prem)
		}
		b.WriteString(strings.Join(parts, ", "))
	}
	if len(in.RuleTransforms) > 0 {
		b.WriteString(" |> ")
		parts := make([]string, len(in.RuleTransforms))
		for i, t := range in.RuleTransforms {
			parts[i] = p.Transform(t)
		}
		b.WriteString(strings.Join(parts, "; "))
	}
	b.WriteByte('.')
	return b.String()
}

// BoundDecl renders one bound alternative: a comma-separated term list.
func (p *Printer) BoundDecl(id ir.InstId) string {
	in := p.c.Get(id)
	parts := make([]string, len(in.BoundTerms))
	for i, t := range in.BoundTerms {
		parts[i] = p.Term(t)
	}
	return strings.Join(parts, ", ")
}

// Constraints renders a declaration's `|> consequences | alt1 | alt2`
// suffix, or "" if the declaration carries none.
func (p *Printer) Constraints(id ir.InstId) string {
	in := p.c.Get(id)
	var b strings.Builder
	if len(in.ConstraintConseq) > 0 {
		parts := make([]string, len(in.ConstraintConseq))
		for i, c := range in.ConstraintConseq {
			parts[i] = p.Atom(c)
		}
		b.WriteString(" |> ")
		b.WriteString(strings.Join(parts, ", "))
	}
	for _, alt := range in.ConstraintAlts {
		parts := make([]string, len(alt))
		for i, c := range alt {
			parts[i] = p.Atom(c)
		}
		b.WriteString(" | ")
		b.WriteString(strings.Join(parts, ", "))
	}
	return b.String()
}

// Decl renders a full declaration: `atom [descr] bound b1 | b2 |> constraints.`
func (p *Printer) Decl(id ir.InstId) string {
	in := p.c.Get(id)
	var b strings.Builder
	b.WriteString(p.Atom(in.DeclAtom))
	if len(in.DeclDescr) > 0 {
		parts := make([]string, len(in.DeclDescr))
		for i, d := range in.DeclDescr {
			parts[i] = p.Term(d)
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteByte(']')
	}
	if len(in.DeclBounds) > 0 {
		parts := make([]string, len(in.DeclBounds))
		for i, bd := range in.DeclBounds {
			parts[i] = p.BoundDecl(bd)
		}
		b.WriteString(" bound ")
		b.WriteString(strings.Join(parts, " | "))
	}
	if in.HasConstraints {
		b.WriteString(p.Constraints(in.DeclConstraints))
	}
	b.WriteByte('.')
	return b.String()
}
