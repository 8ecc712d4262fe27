package ir

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind tags the dynamic shape of a Value. The term language is
// heterogeneous (numbers, strings, names, bytes, lists, maps, structs);
// rather than modeling each as a distinct Go type we use one tagged
// variant, per spec.md's design notes on dynamic value typing.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindFloat
	KindString
	KindBytes
	KindName
	KindList
	KindMap
	KindStruct
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindNumber:
		return "Number"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindName:
		return "Name"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindStruct:
		return "Struct"
	default:
		return "Unknown"
	}
}

// Value is a runtime term value: a fact-store cell, a bound variable's
// value, or the result of evaluating an expression. Unlike Inst, which
// addresses constants by container-local handles, Value is
// self-contained so that a Store can outlive any one IR container.
type Value struct {
	Kind ValueKind

	Bool   bool
	Number int64
	Float  float64
	Str    string // used for both KindString and KindName
	Bytes  []byte

	List   []Value
	Keys   []Value // KindMap, parallel with Vals
	Vals   []Value
	Fields []string // KindStruct, parallel with Vals
}

func Null() Value                 { return Value{Kind: KindNull} }
func Bool(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func Number(n int64) Value        { return Value{Kind: KindNumber, Number: n} }
func Float(f float64) Value       { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value       { return Value{Kind: KindString, Str: s} }
func Bytes(b []byte) Value        { return Value{Kind: KindBytes, Bytes: append([]byte(nil), b...)} }
func Name(s string) Value         { return Value{Kind: KindName, Str: s} }
func List(vs []Value) Value       { return Value{Kind: KindList, List: vs} }
func Struct(fields []string, vals []Value) Value {
	return Value{Kind: KindStruct, Fields: fields, Vals: vals}
}

// Map constructs a map value with keys sorted for deterministic equality
// and printing.
func Map(keys, vals []Value) Value {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return Less(keys[idx[a]], keys[idx[b]]) })
	sk := make([]Value, len(keys))
	sv := make([]Value, len(vals))
	for i, j := range idx {
		sk[i] = keys[j]
		sv[i] = vals[j]
	}
	return Value{Kind: KindMap, Keys: sk, Vals: sv}
}

// Equal reports whether two values are structurally identical. Used by
// Store implementations for deduplication across stable/delta/next-delta
// buckets.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Number == b.Number
	case KindFloat:
		return a.Float == b.Float
	case KindString, KindName:
		return a.Str == b.Str
	case KindBytes:
		return bytes.Equal(a.Bytes, b.Bytes)
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.Keys) != len(b.Keys) {
			return false
		}
		for i := range a.Keys {
			if !Equal(a.Keys[i], b.Keys[i]) || !Equal(a.Vals[i], b.Vals[i]) {
				return false
			}
		}
		return true
	case KindStruct:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i] != b.Fields[i] || !Equal(a.Vals[i], b.Vals[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Less provides a total order used for sorting map keys and for
// fn:min/fn:max. It rejects comparisons mixing Null with a non-Null kind
// by panicking with a recoverable marker — callers in internal/eval catch
// this and surface it as an aggregate error, per spec.md's open question
// on Null ordering.
func Less(a, b Value) bool {
	if a.Kind == KindNull || b.Kind == KindNull {
		if a.Kind == b.Kind {
			return false
		}
		panic(errIncomparableNull)
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	switch a.Kind {
	case KindBool:
		return !a.Bool && b.Bool
	case KindNumber:
		return a.Number < b.Number
	case KindFloat:
		return a.Float < b.Float
	case KindString, KindName:
		return a.Str < b.Str
	case KindBytes:
		return bytes.Compare(a.Bytes, b.Bytes) < 0
	default:
		return HashKey(a) < HashKey(b)
	}
}

type incomparableNullMarker struct{}

var errIncomparableNull = incomparableNullMarker{}

// IsIncomparableNull reports whether a recovered panic value came from
// Less comparing Null against a non-Null value.
func IsIncomparableNull(r any) bool {
	_, ok := r.(incomparableNullMarker)
	return ok
}

// HashKey renders a value into a string usable as a Go map key, for
// Store implementations that index tuples by column value.
func HashKey(v Value) string {
	var b strings.Builder
	writeHashKey(&b, v)
	return b.String()
}

func writeHashKey(b *strings.Builder, v Value) {
	switch v.Kind {
	case KindNull:
		b.WriteString("n:")
	case KindBool:
		b.WriteString("b:")
		b.WriteString(strconv.FormatBool(v.Bool))
	case KindNumber:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(v.Number, 10))
	case KindFloat:
		b.WriteString("f:")
		b.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
	case KindString:
		b.WriteString("s:")
		b.WriteString(v.Str)
	case KindName:
		b.WriteString("m:")
		b.WriteString(v.Str)
	case KindBytes:
		b.WriteString("x:")
		b.Write(v.Bytes)
	case KindList:
		b.WriteString("l(")
		for _, e := range v.List {
			writeHashKey(b, e)
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case KindMap:
		b.WriteString("M(")
		for i := range v.Keys {
			writeHashKey(b, v.Keys[i])
			b.WriteByte('=')
			writeHashKey(b, v.Vals[i])
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case KindStruct:
		b.WriteString("S(")
		for i, f := range v.Fields {
			b.WriteString(f)
			b.WriteByte('=')
			writeHashKey(b, v.Vals[i])
			b.WriteByte(',')
		}
		b.WriteByte(')')
	}
}

// String renders a value in the quoted surface syntax used by the
// pretty printer (spec.md §6.3).
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.FormatInt(v.Number, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return quote(v.Str)
	case KindName:
		return "/" + v.Str
	case KindBytes:
		return fmt.Sprintf("b%q", string(v.Bytes))
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, len(v.Keys))
		for i := range v.Keys {
			parts[i] = v.Keys[i].String() + ": " + v.Vals[i].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindStruct:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = f + ": " + v.Vals[i].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}

// quote escapes a string literal the way rust/parse/src/quote.rs does:
// backslash and double-quote are escaped, newline and tab use \n and \t,
// other control characters use \xNN, everything else passes through
// unchanged.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
