// Package typecheck implements spec.md §4.5: a two-pass type checker over
// a lowered program — first collecting per-predicate argument signatures
// from Decl bound declarations, then checking every rule's atoms against
// those signatures.
package typecheck

import "dlcore/internal/ir"

// Kind tags a resolved type (spec.md §4.5's recognized set: Any plus the
// five atomic bounds, List, Map, and Struct).
type Kind uint8

const (
	TAny Kind = iota
	TBool
	TNumber
	TFloat
	TString
	TBytes
	TList
	TMap
	TStruct
)

// Type is a declared or inferred argument type. Elem is set only for
// TList, Key/Val only for TMap; every other Kind is a leaf.
type Type struct {
	Kind Kind
	Elem *Type
	Key  *Type
	Val  *Type
}

func (t Type) String() string {
	switch t.Kind {
	case TAny:
		return "any"
	case TBool:
		return "bool"
	case TNumber:
		return "number"
	case TFloat:
		return "float"
	case TString:
		return "string"
	case TBytes:
		return "bytes"
	case TStruct:
		return "struct"
	case TList:
		return "fn:List(" + t.Elem.String() + ")"
	case TMap:
		return "fn:Map(" + t.Key.String() + ", " + t.Val.String() + ")"
	default:
		return "?"
	}
}

// resolveType resolves one bound-declaration term to a Type. Unrecognized
// forms (including any name other than the five atomic bounds) resolve to
// Any rather than erroring — spec.md §4.5 only names arity and argument
// unification as checked properties; an unrecognized bound is simply
// unconstraining.
func resolveType(c *ir.Container, termId ir.InstId) Type {
	t := c.Get(termId)
	switch t.Kind {
	case ir.KName:
		switch c.NameString(t.NameH) {
		case "string":
			return Type{Kind: TString}
		case "number":
			return Type{Kind: TNumber}
		case "float":
			return Type{Kind: TFloat}
		case "bool":
			return Type{Kind: TBool}
		case "bytes":
			return Type{Kind: TBytes}
		default:
			return Type{Kind: TAny}
		}
	case ir.KApplyFn:
		switch c.NameString(t.NameH) {
		case "fn:List", "fn:list":
			if len(t.Args) == 1 {
				elem := resolveType(c, t.Args[0])
				return Type{Kind: TList, Elem: &elem}
			}
		case "fn:Map", "fn:map":
			if len(t.Args) == 2 {
				k := resolveType(c, t.Args[0])
				v := resolveType(c, t.Args[1])
				return Type{Kind: TMap, Key: &k, Val: &v}
			}
		case "struct":
			return Type{Kind: TStruct}
		case "any":
			return Type{Kind: TAny}
		}
		return Type{Kind: TAny}
	default:
		return Type{Kind: TAny}
	}
}

// unify resolves a declared type against an inferred one per spec.md
// §4.5: "Any absorbs any type; otherwise concrete types must be
// syntactically equal." List/Map unify element-wise so that a declared
// fn:List(Any) accepts an inferred fn:List(number), etc.
func unify(declared, inferred Type) (Type, bool) {
	if declared.Kind == TAny {
		return inferred, true
	}
	if inferred.Kind == TAny {
		return declared, true
	}
	if declared.Kind != inferred.Kind {
		return Type{}, false
	}
	switch declared.Kind {
	case TList:
		elem, ok := unify(*declared.Elem, *inferred.Elem)
		if !ok {
			return Type{}, false
		}
		return Type{Kind: TList, Elem: &elem}, true
	case TMap:
		k, ok := unify(*declared.Key, *inferred.Key)
		if !ok {
			return Type{}, false
		}
		v, ok := unify(*declared.Val, *inferred.Val)
		if !ok {
			return Type{}, false
		}
		return Type{Kind: TMap, Key: &k, Val: &v}, true
	default:
		return declared, true
	}
}
