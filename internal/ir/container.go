package ir

import "fmt"

// Container is the flat, append-only instruction vector plus its two
// string interners (spec.md §3). It is the single data structure every
// later pipeline stage (lowering, rename, stratification, planning, type
// checking, evaluation) reads and writes; it is created empty, grown
// monotonically, and destroyed with the pipeline (spec.md "Lifecycle").
type Container struct {
	insts []Inst // insts[0] is unused; ids are 1-based

	names   *interner
	strings *interner

	arity map[NameId]int
}

// New returns an empty Container. Name handle 0 is pre-interned as the
// wildcard "_".
func New() *Container {
	return &Container{
		insts:   make([]Inst, 1), // index 0 reserved; InstId zero value means "absent"
		names:   newInterner("_"),
		strings: newInterner(""),
		arity:   make(map[NameId]int),
	}
}

// add appends an instruction and returns its 1-based id.
func (c *Container) add(in Inst) InstId {
	c.insts = append(c.insts, in)
	return InstId(len(c.insts) - 1)
}

// Get dereferences an instruction id. Panics on an out-of-range id, which
// indicates a bug in a pass that fabricated or corrupted a handle — ids
// are only ever produced by this Container.
func (c *Container) Get(id InstId) Inst {
	if id <= 0 || int(id) >= len(c.insts) {
		panic(fmt.Sprintf("ir: invalid instruction id %d", id))
	}
	return c.insts[id]
}

// Len reports how many instructions have been appended (excluding the
// reserved zero slot).
func (c *Container) Len() int { return len(c.insts) - 1 }

// InternName interns a name string (predicate, function, variable, or
// field name) and returns its stable handle.
func (c *Container) InternName(s string) NameId {
	if s == "_" {
		return WildcardName
	}
	return NameId(c.names.intern(s))
}

// LookupName returns the handle for a name if it has already been
// interned, without creating a new one.
func (c *Container) LookupName(s string) (NameId, bool) {
	if s == "_" {
		return WildcardName, true
	}
	id, ok := c.names.lookup(s)
	return NameId(id), ok
}

// NameString resolves a name handle back to its source text.
func (c *Container) NameString(id NameId) string { return c.names.get(int(id)) }

// InternString interns a string literal and returns its stable handle.
func (c *Container) InternString(s string) StringId {
	return StringId(c.strings.intern(s))
}

// StringValue resolves a string-literal handle back to its text.
func (c *Container) StringValue(id StringId) string { return c.strings.get(int(id)) }

// SetArity records (or confirms) the declared/observed arity of a
// predicate symbol. A predicate's arity is set once by whichever
// Atom/Decl instruction mentions it first; subsequent different arities
// are a type-checker concern (arity mismatch), not a Container concern.
func (c *Container) SetArity(pred NameId, arity int) {
	if _, ok := c.arity[pred]; !ok {
		c.arity[pred] = arity
	}
}

// Arity returns the recorded arity for a predicate, or false if none has
// been observed yet.
func (c *Container) Arity(pred NameId) (int, bool) {
	a, ok := c.arity[pred]
	return a, ok
}

// --- constructors, one per instruction kind ---

func (c *Container) AddBool(b bool) InstId   { return c.add(Inst{Kind: KBool, Bool: b}) }
func (c *Container) AddNumber(n int64) InstId { return c.add(Inst{Kind: KNumber, Number: n}) }
func (c *Container) AddFloat(f float64) InstId { return c.add(Inst{Kind: KFloat, Float: f}) }

func (c *Container) AddString(s string) InstId {
	return c.add(Inst{Kind: KString, Str: c.InternString(s)})
}

func (c *Container) AddBytes(b []byte) InstId {
	return c.add(Inst{Kind: KBytes, Bytes: append([]byte(nil), b...)})
}

func (c *Container) AddName(s string) InstId {
	return c.add(Inst{Kind: KName, NameH: c.InternName(s)})
}

func (c *Container) AddList(elems []InstId) InstId {
	return c.add(Inst{Kind: KList, Elems: append([]InstId(nil), elems...)})
}

func (c *Container) AddMap(keys, vals []InstId) InstId {
	return c.add(Inst{Kind: KMap, Keys: append([]InstId(nil), keys...), Vals: append([]InstId(nil), vals...)})
}

func (c *Container) AddStruct(fields []NameId, vals []InstId) InstId {
	return c.add(Inst{Kind: KStructC, FieldNames: append([]NameId(nil), fields...), FieldVals: append([]InstId(nil), vals...)})
}

// AddVar records a variable occurrence. Per spec.md §4.1, lowering is
// responsible for caching non-wildcard variables per clause/decl scope so
// that repeated occurrences of the same name share one instruction; the
// wildcard is never cached and always gets a fresh instruction, so this
// constructor intentionally does no caching itself.
func (c *Container) AddVar(name NameId) InstId {
	return c.add(Inst{Kind: KVar, NameH: name})
}

func (c *Container) AddApplyFn(fn NameId, args []InstId) InstId {
	return c.add(Inst{Kind: KApplyFn, NameH: fn, Args: append([]InstId(nil), args...)})
}

func (c *Container) AddAtom(pred NameId, args []InstId) InstId {
	c.SetArity(pred, len(args))
	return c.add(Inst{Kind: KAtom, NameH: pred, Args: append([]InstId(nil), args...)})
}

func (c *Container) AddNegAtom(atom InstId) InstId {
	return c.add(Inst{Kind: KNegAtom, AtomIdx: atom})
}

func (c *Container) AddEq(left, right InstId) InstId {
	return c.add(Inst{Kind: KEq, Left: left, Right: right})
}

func (c *Container) AddIneq(left, right InstId) InstId {
	return c.add(Inst{Kind: KIneq, Left: left, Right: right})
}

// AddLet adds a `let v = app` transform.
func (c *Container) AddLet(v NameId, app InstId) InstId {
	return c.add(Inst{Kind: KTransform, HasVar: true, TransformVar: v, TransformApp: app})
}

// AddDo adds a `do app` boundary transform.
func (c *Container) AddDo(app InstId) InstId {
	return c.add(Inst{Kind: KTransform, HasVar: false, TransformApp: app})
}

func (c *Container) AddRule(head InstId, premises, transforms []InstId) InstId {
	return c.add(Inst{
		Kind:           KRule,
		RuleHead:       head,
		RulePremises:   append([]InstId(nil), premises...),
		RuleTransforms: append([]InstId(nil), transforms...),
	})
}

func (c *Container) AddDecl(atom InstId, descr, bounds []InstId, constraints InstId) InstId {
	return c.add(Inst{
		Kind:            KDecl,
		DeclAtom:        atom,
		DeclDescr:       append([]InstId(nil), descr...),
		DeclBounds:      append([]InstId(nil), bounds...),
		HasConstraints:  constraints != 0,
		DeclConstraints: constraints,
	})
}

func (c *Container) AddBoundDecl(terms []InstId) InstId {
	return c.add(Inst{Kind: KBoundDecl, BoundTerms: append([]InstId(nil), terms...)})
}

func (c *Container) AddConstraints(conseq []InstId, alts [][]InstId) InstId {
	a := make([][]InstId, len(alts))
	for i, alt := range alts {
		a[i] = append([]InstId(nil), alt...)
	}
	return c.add(Inst{Kind: KConstraints, ConstraintConseq: append([]InstId(nil), conseq...), ConstraintAlts: a})
}

// ReplaceAtomPred overwrites an existing Atom instruction's predicate handle
// in place, preserving its id. Used by the rename pass (spec.md §4.2),
// which must retarget references while keeping every other instruction's
// indices stable.
func (c *Container) ReplaceAtomPred(id InstId, pred NameId) {
	in := c.Get(id)
	if in.Kind != KAtom {
		panic("ir: ReplaceAtomPred on non-Atom instruction")
	}
	in.NameH = pred
	c.insts[id] = in
	c.SetArity(pred, len(in.Args))
}

// ReplaceNameConst overwrites a Name constant's handle in place. Used by
// rename to rewrite type-bound references to renamed predicates.
func (c *Container) ReplaceNameConst(id InstId, name NameId) {
	in := c.Get(id)
	if in.Kind != KName {
		panic("ir: ReplaceNameConst on non-Name instruction")
	}
	in.NameH = name
	c.insts[id] = in
}
