// Package lower translates a parsed syntax.Unit into IR instructions
// (spec.md §4.1): one ir.KDecl per declaration, one ir.KRule per clause.
package lower

import (
	"dlcore/internal/ir"
	"dlcore/internal/syntax"
)

// Result collects the instruction ids produced while lowering one Unit,
// in source order. internal/rename and the program-assembly step in
// internal/eval's Compile entry point both need this list rather than
// having to rediscover it by scanning the whole Container.
type Result struct {
	Decls []ir.InstId
	Rules []ir.InstId
}

// scope caches variable-name -> Var-instruction mappings within one
// clause or declaration, per spec.md §4.1: "the same variable name within
// a clause maps to the same instruction, except the wildcard `_`... which
// is never cached".
type scope map[string]ir.InstId

// Unit lowers every declaration and clause in u, appending instructions
// to c. Lowering is total over a well-formed syntax.Unit: our frontend
// hands lower concrete name strings rather than arena references into a
// separate symbol table, so the "unknown name falls back to a sentinel"
// behavior spec.md §4.1 describes for that arena-based design does not
// arise here — every name is interned on first use and therefore never
// "unknown".
func Unit(c *ir.Container, u *syntax.Unit) Result {
	var res Result
	for _, d := range u.Decls {
		res.Decls = append(res.Decls, Decl(c, d))
	}
	for _, cl := range u.Clauses {
		res.Rules = append(res.Rules, Clause(c, cl))
	}
	return res
}

// Decl lowers one declaration: atom, description atoms, bound-declaration
// alternatives, and an optional constraints block; the per-declaration
// variable scope is fresh and discarded on return.
func Decl(c *ir.Container, d syntax.Decl) ir.InstId {
	sc := scope{}
	atom := atomInst(c, sc, d.Atom)

	descr := make([]ir.InstId, len(d.Descr))
	for i, a := range d.Descr {
		descr[i] = atomInst(c, sc, a)
	}

	bounds := make([]ir.InstId, len(d.Bounds))
	for i, b := range d.Bounds {
		terms := make([]ir.InstId, len(b.Terms))
		for j, t := range b.Terms {
			terms[j] = term(c, sc, t)
		}
		bounds[i] = c.AddBoundDecl(terms)
	}

	var constraints ir.InstId
	if d.Constraints != nil {
		conseq := make([]ir.InstId, len(d.Constraints.Conseq))
		for i, a := range d.Constraints.Conseq {
			conseq[i] = atomInst(c, sc, a)
		}
		alts := make([][]ir.InstId, len(d.Constraints.Alts))
		for i, alt := range d.Constraints.Alts {
			row := make([]ir.InstId, len(alt))
			for j, a := range alt {
				row[j] = atomInst(c, sc, a)
			}
			alts[i] = row
		}
		constraints = c.AddConstraints(conseq, alts)
	}

	return c.AddDecl(atom, descr, bounds, constraints)
}

// Clause lowers one Horn rule (or fact, if Premises/Transforms are
// empty): head, premises, and transforms share one per-clause variable
// scope so repeated occurrences of a name resolve to the same Var
// instruction regardless of which part of the clause mentions it first.
func Clause(c *ir.Container, cl syntax.Clause) ir.InstId {
	sc := scope{}
	head := atomInst(c, sc, cl.Head)

	premises := make([]ir.InstId, len(cl.Premises))
	for i, p := range cl.Premises {
		premises[i] = premise(c, sc, p)
	}

	transforms := make([]ir.InstId, len(cl.Transforms))
	for i, t := range cl.Transforms {
		transforms[i] = transform(c, sc, t)
	}

	return c.AddRule(head, premises, transforms)
}

func premise(c *ir.Container, sc scope, p syntax.Premise) ir.InstId {
	switch p.Kind {
	case syntax.PAtom:
		return atomInst(c, sc, p.Atom)
	case syntax.PNegAtom:
		return c.AddNegAtom(atomInst(c, sc, p.Atom))
	case syntax.PEq:
		return c.AddEq(term(c, sc, p.Left), term(c, sc, p.Right))
	case syntax.PIneq:
		return c.AddIneq(term(c, sc, p.Left), term(c, sc, p.Right))
	default:
		panic("lower: unknown premise kind")
	}
}

func transform(c *ir.Container, sc scope, t syntax.Transform) ir.InstId {
	app := term(c, sc, t.App)
	if !t.HasVar {
		return c.AddDo(app)
	}
	return c.AddLet(c.InternName(t.Var), app)
}

func atomInst(c *ir.Container, sc scope, a syntax.Atom) ir.InstId {
	args := make([]ir.InstId, len(a.Args))
	for i, t := range a.Args {
		args[i] = term(c, sc, t)
	}
	return c.AddAtom(c.InternName(a.Pred), args)
}

// term lowers one term, recursing through nested function applications
// and composite constants element-wise (spec.md §4.1).
func term(c *ir.Container, sc scope, t syntax.Term) ir.InstId {
	switch t.Kind {
	case syntax.TVar:
		return variable(c, sc, t.VarName)
	case syntax.TConst:
		return constant(c, sc, t.Const)
	case syntax.TApply:
		args := make([]ir.InstId, len(t.Args))
		for i, a := range t.Args {
			args[i] = term(c, sc, a)
		}
		return c.AddApplyFn(c.InternName(t.Fn), args)
	default:
		panic("lower: unknown term kind")
	}
}

func variable(c *ir.Container, sc scope, name string) ir.InstId {
	if name == "_" {
		return c.AddVar(ir.WildcardName)
	}
	if id, ok := sc[name]; ok {
		return id
	}
	id := c.AddVar(c.InternName(name))
	sc[name] = id
	return id
}

// constant lowers a literal value, recursing element-wise through lists,
// maps, and structs per spec.md §4.1.
func constant(c *ir.Container, sc scope, v ir.Value) ir.InstId {
	switch v.Kind {
	case ir.KindBool:
		return c.AddBool(v.Bool)
	case ir.KindNumber:
		return c.AddNumber(v.Number)
	case ir.KindFloat:
		return c.AddFloat(v.Float)
	case ir.KindString:
		return c.AddString(v.Str)
	case ir.KindBytes:
		return c.AddBytes(v.Bytes)
	case ir.KindName:
		return c.AddName(v.Str)
	case ir.KindList:
		elems := make([]ir.InstId, len(v.List))
		for i, e := range v.List {
			elems[i] = constant(c, sc, e)
		}
		return c.AddList(elems)
	case ir.KindMap:
		keys := make([]ir.InstId, len(v.Keys))
		vals := make([]ir.InstId, len(v.Vals))
		for i := range v.Keys {
			keys[i] = constant(c, sc, v.Keys[i])
			vals[i] = constant(c, sc, v.Vals[i])
		}
		return c.AddMap(keys, vals)
	case ir.KindStruct:
		fields := make([]ir.NameId, len(v.Fields))
		vals := make([]ir.InstId, len(v.Vals))
		for i := range v.Fields {
			fields[i] = c.InternName(v.Fields[i])
			vals[i] = constant(c, sc, v.Vals[i])
		}
		return c.AddStruct(fields, vals)
	default:
		// KindNull has no corresponding IR constant kind (spec.md §3's
		// instruction table); Null only ever arises as a runtime value.
		// A well-formed syntax.Unit never constructs Const(ir.Null()).
		panic("lower: Null has no constant instruction form")
	}
}
