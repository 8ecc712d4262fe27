package ir

// InstKind tags the variant of an IR instruction (spec.md §3).
type InstKind uint8

const (
	KBool InstKind = iota + 1
	KNumber
	KFloat
	KString
	KBytes
	KName
	KList
	KMap
	KStructC
	KVar
	KApplyFn
	KAtom
	KNegAtom
	KEq
	KIneq
	KTransform
	KRule
	KDecl
	KBoundDecl
	KConstraints
)

func (k InstKind) String() string {
	switch k {
	case KBool:
		return "Bool"
	case KNumber:
		return "Number"
	case KFloat:
		return "Float"
	case KString:
		return "String"
	case KBytes:
		return "Bytes"
	case KName:
		return "Name"
	case KList:
		return "List"
	case KMap:
		return "Map"
	case KStructC:
		return "Struct"
	case KVar:
		return "Var"
	case KApplyFn:
		return "ApplyFn"
	case KAtom:
		return "Atom"
	case KNegAtom:
		return "NegAtom"
	case KEq:
		return "Eq"
	case KIneq:
		return "Ineq"
	case KTransform:
		return "Transform"
	case KRule:
		return "Rule"
	case KDecl:
		return "Decl"
	case KBoundDecl:
		return "BoundDecl"
	case KConstraints:
		return "Constraints"
	default:
		return "Unknown"
	}
}

// InstId is a 1-based index into a Container's instruction vector. The
// zero value means "absent" wherever an optional reference is modeled.
type InstId int

// Inst is a single logical or physical IR node. Only the fields relevant
// to Kind are meaningful; this mirrors the tagged-variant-plus-fields
// encoding spec.md's design notes recommend over per-kind Go types, which
// would otherwise force an interface and per-kind boxing for a tree that
// is walked generically by lowering, planning, and evaluation alike.
type Inst struct {
	Kind InstKind

	// Scalar constant payloads (Bool/Number/Float/String/Bytes/Name).
	Bool   bool
	Number int64
	Float  float64
	Str    StringId
	Bytes  []byte
	NameH  NameId // Name constant, Var occurrence, ApplyFn function, Atom predicate

	// List.
	Elems []InstId

	// Map: parallel Keys/Vals.
	Keys []InstId
	Vals []InstId

	// Struct: parallel FieldNames/FieldVals.
	FieldNames []NameId
	FieldVals  []InstId

	// ApplyFn / Atom arguments.
	Args []InstId

	// NegAtom.
	AtomIdx InstId

	// Eq / Ineq.
	Left  InstId
	Right InstId

	// Transform: `let v = app` (HasVar true) or `do app` (HasVar false).
	HasVar       bool
	TransformVar NameId
	TransformApp InstId

	// Rule.
	RuleHead       InstId
	RulePremises   []InstId
	RuleTransforms []InstId

	// Decl.
	DeclAtom        InstId
	DeclDescr       []InstId
	DeclBounds      []InstId
	HasConstraints  bool
	DeclConstraints InstId

	// BoundDecl: one alternative term sequence.
	BoundTerms []InstId

	// Constraints: consequence atoms plus alternative disjunctions.
	ConstraintConseq []InstId
	ConstraintAlts   [][]InstId
}

// Arity returns the number of arguments of an Atom or ApplyFn instruction,
// or -1 for any other kind.
func (in Inst) Arity() int {
	switch in.Kind {
	case KAtom, KApplyFn:
		return len(in.Args)
	default:
		return -1
	}
}
