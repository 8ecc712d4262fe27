package syntax

import (
	"fmt"

	"dlcore/internal/ir"
)

// Parse reads one source unit. It implements exactly enough concrete
// syntax to exercise spec.md §8's scenarios and simple Decl bound
// declarations (`Decl pred(...) bound T1, T2 | T1b, T2b.`); description
// atoms and inclusion/exclusion constraints have no concrete syntax here
// but are fully representable in the syntax.Decl struct for callers that
// build a Unit programmatically (e.g. typecheck tests).
func Parse(src string) (*Unit, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseUnit()
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) atPunct(s string) bool   { return p.tok.kind == tPunct && p.tok.text == s }
func (p *parser) atKeyword(s string) bool { return p.tok.kind == tKeyword && p.tok.text == s }

func (p *parser) expectPunct(s string) error {
	if !p.atPunct(s) {
		return &lexError{pos: p.tok.pos, msg: fmt.Sprintf("expected %q, got %q", s, p.tok.text)}
	}
	return p.advance()
}

func (p *parser) parseUnit() (*Unit, error) {
	u := &Unit{}
	for p.tok.kind != tEOF {
		switch {
		case p.atKeyword("Package"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, err := p.expectIdentLike()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("!"); err != nil {
				return nil, err
			}
			u.Package = &Package{Name: name}
		case p.atKeyword("Use"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, err := p.expectIdentLike()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("!"); err != nil {
				return nil, err
			}
			u.Uses = append(u.Uses, Use{Name: name})
		case p.atKeyword("Decl"):
			d, err := p.parseDecl()
			if err != nil {
				return nil, err
			}
			u.Decls = append(u.Decls, *d)
		default:
			c, err := p.parseClause()
			if err != nil {
				return nil, err
			}
			u.Clauses = append(u.Clauses, *c)
		}
	}
	return u, nil
}

func (p *parser) expectIdentLike() (string, error) {
	if p.tok.kind != tIdent && p.tok.kind != tVar {
		return "", &lexError{pos: p.tok.pos, msg: fmt.Sprintf("expected identifier, got %q", p.tok.text)}
	}
	s := p.tok.text
	return s, p.advance()
}

func (p *parser) parseDecl() (*Decl, error) {
	if err := p.advance(); err != nil { // consume 'Decl'
		return nil, err
	}
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	d := &Decl{Atom: atom}
	if p.atKeyword("bound") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			terms, err := p.parseTermList()
			if err != nil {
				return nil, err
			}
			d.Bounds = append(d.Bounds, BoundDecl{Terms: terms})
			if p.atPunct("|") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if err := p.expectPunct("."); err != nil {
		return nil, err
	}
	return d, nil
}

// parseTermList parses a comma-separated list of terms not wrapped in
// parens (used for bound-decl alternatives).
func (p *parser) parseTermList() ([]Term, error) {
	var terms []Term
	for {
		t, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
		if p.atPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return terms, nil
}

func (p *parser) parseClause() (*Clause, error) {
	head, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	c := &Clause{Head: head}
	if p.atPunct(":-") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			prem, err := p.parsePremise()
			if err != nil {
				return nil, err
			}
			c.Premises = append(c.Premises, prem)
			if p.atPunct(",") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if p.atPunct("|>") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			tr, err := p.parseTransform()
			if err != nil {
				return nil, err
			}
			c.Transforms = append(c.Transforms, tr)
			if p.atPunct(";") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if err := p.expectPunct("."); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *parser) parsePremise() (Premise, error) {
	if p.atPunct("!") {
		if err := p.advance(); err != nil {
			return Premise{}, err
		}
		a, err := p.parseAtom()
		if err != nil {
			return Premise{}, err
		}
		return Premise{Kind: PNegAtom, Atom: a}, nil
	}
	left, err := p.parseTerm()
	if err != nil {
		return Premise{}, err
	}
	if p.atPunct("=") {
		if err := p.advance(); err != nil {
			return Premise{}, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return Premise{}, err
		}
		return Premise{Kind: PEq, Left: left, Right: right}, nil
	}
	if p.atPunct("!=") {
		if err := p.advance(); err != nil {
			return Premise{}, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return Premise{}, err
		}
		return Premise{Kind: PIneq, Left: left, Right: right}, nil
	}
	if left.Kind != TApply {
		return Premise{}, &lexError{pos: p.tok.pos, msg: "expected an atom, negation, or (in)equality premise"}
	}
	return Premise{Kind: PAtom, Atom: Atom{Pred: left.Fn, Args: left.Args}}, nil
}

func (p *parser) parseTransform() (Transform, error) {
	if p.atKeyword("do") {
		if err := p.advance(); err != nil {
			return Transform{}, err
		}
		app, err := p.parseTerm()
		if err != nil {
			return Transform{}, err
		}
		return Transform{HasVar: false, App: app}, nil
	}
	if err := p.expectKeyword("let"); err != nil {
		return Transform{}, err
	}
	varName, err := p.expectIdentLike()
	if err != nil {
		return Transform{}, err
	}
	if err := p.expectPunct("="); err != nil {
		return Transform{}, err
	}
	app, err := p.parseTerm()
	if err != nil {
		return Transform{}, err
	}
	return Transform{HasVar: true, Var: varName, App: app}, nil
}

func (p *parser) expectKeyword(s string) error {
	if !p.atKeyword(s) {
		return &lexError{pos: p.tok.pos, msg: fmt.Sprintf("expected keyword %q, got %q", s, p.tok.text)}
	}
	return p.advance()
}

func (p *parser) parseAtom() (Atom, error) {
	t, err := p.parseTerm()
	if err != nil {
		return Atom{}, err
	}
	if t.Kind != TApply {
		return Atom{}, &lexError{pos: p.tok.pos, msg: "expected a predicate application"}
	}
	return Atom{Pred: t.Fn, Args: t.Args}, nil
}

// parseTerm parses one term: variable, constant, list, or application
// (predicate or function — both look like `name(args...)`).
func (p *parser) parseTerm() (Term, error) {
	switch p.tok.kind {
	case tVar:
		name := p.tok.text
		if err := p.advance(); err != nil {
			return Term{}, err
		}
		return Var(name), nil
	case tNumber:
		var n int64
		fmt.Sscanf(p.tok.text, "%d", &n)
		if err := p.advance(); err != nil {
			return Term{}, err
		}
		return Const(ir.Number(n)), nil
	case tFloat:
		var f float64
		fmt.Sscanf(p.tok.text, "%g", &f)
		if err := p.advance(); err != nil {
			return Term{}, err
		}
		return Const(ir.Float(f)), nil
	case tString:
		s := p.tok.text
		if err := p.advance(); err != nil {
			return Term{}, err
		}
		return Const(ir.String(s)), nil
	case tName:
		s := p.tok.text
		if err := p.advance(); err != nil {
			return Term{}, err
		}
		return Const(ir.Name(s)), nil
	case tIdent:
		name := p.tok.text
		if err := p.advance(); err != nil {
			return Term{}, err
		}
		if name == "true" {
			return Const(ir.Bool(true)), nil
		}
		if name == "false" {
			return Const(ir.Bool(false)), nil
		}
		if !p.atPunct("(") {
			// A bare lower-case identifier with no args is a 0-ary atom.
			return Term{Kind: TApply, Fn: name}, nil
		}
		if err := p.advance(); err != nil { // consume '('
			return Term{}, err
		}
		var args []Term
		if !p.atPunct(")") {
			for {
				a, err := p.parseTerm()
				if err != nil {
					return Term{}, err
				}
				args = append(args, a)
				if p.atPunct(",") {
					if err := p.advance(); err != nil {
						return Term{}, err
					}
					continue
				}
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return Term{}, err
		}
		return Term{Kind: TApply, Fn: name, Args: args}, nil
	case tPunct:
		if p.tok.text == "[" {
			return p.parseList()
		}
	}
	return Term{}, &lexError{pos: p.tok.pos, msg: fmt.Sprintf("unexpected token %q", p.tok.text)}
}

func (p *parser) parseList() (Term, error) {
	if err := p.advance(); err != nil { // '['
		return Term{}, err
	}
	var elems []ir.Value
	if !p.atPunct("]") {
		for {
			t, err := p.parseTerm()
			if err != nil {
				return Term{}, err
			}
			if t.Kind != TConst {
				return Term{}, &lexError{pos: p.tok.pos, msg: "list literal elements must be constants"}
			}
			elems = append(elems, t.Const)
			if p.atPunct(",") {
				if err := p.advance(); err != nil {
					return Term{}, err
				}
				continue
			}
			break
		}
	}
	if err := p.expectPunct("]"); err != nil {
		return Term{}, err
	}
	return Const(ir.List(elems)), nil
}
