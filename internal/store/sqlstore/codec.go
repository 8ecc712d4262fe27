package sqlstore

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"dlcore/internal/ir"
	"dlcore/internal/store"
)

// encodeValue renders a scalar ir.Value as a tagged byte blob: one ASCII
// tag byte followed by the value's text or binary payload. Composite
// kinds (List/Map/Struct) have no flat-column representation and are
// rejected by Insert before reaching this function (DESIGN.md documents
// this gap against the in-memory default; the fixed per-relation arity
// that ensureTable enforces is another).
func encodeValue(v ir.Value) []byte {
	switch v.Kind {
	case ir.KindNull:
		return []byte{'n'}
	case ir.KindBool:
		if v.Bool {
			return []byte{'b', '1'}
		}
		return []byte{'b', '0'}
	case ir.KindNumber:
		return append([]byte{'i'}, []byte(strconv.FormatInt(v.Number, 10))...)
	case ir.KindFloat:
		return append([]byte{'f'}, []byte(strconv.FormatFloat(v.Float, 'g', -1, 64))...)
	case ir.KindString:
		return append([]byte{'s'}, []byte(v.Str)...)
	case ir.KindName:
		return append([]byte{'m'}, []byte(v.Str)...)
	case ir.KindBytes:
		return append([]byte{'x'}, v.Bytes...)
	default:
		return nil
	}
}

func decodeValue(b []byte) (ir.Value, error) {
	if len(b) == 0 {
		return ir.Null(), nil
	}
	tag, payload := b[0], b[1:]
	switch tag {
	case 'n':
		return ir.Null(), nil
	case 'b':
		return ir.Bool(len(payload) > 0 && payload[0] == '1'), nil
	case 'i':
		n, err := strconv.ParseInt(string(payload), 10, 64)
		if err != nil {
			return ir.Value{}, fmt.Errorf("sqlstore: decode number: %w", err)
		}
		return ir.Number(n), nil
	case 'f':
		f, err := strconv.ParseFloat(string(payload), 64)
		if err != nil {
			return ir.Value{}, fmt.Errorf("sqlstore: decode float: %w", err)
		}
		return ir.Float(f), nil
	case 's':
		return ir.String(string(payload)), nil
	case 'm':
		return ir.Name(string(payload)), nil
	case 'x':
		return ir.Bytes(payload), nil
	default:
		return ir.Value{}, fmt.Errorf("sqlstore: unknown column tag %q", tag)
	}
}

// isComposite reports whether v has no flat-column representation.
func isComposite(v ir.Value) bool {
	switch v.Kind {
	case ir.KindList, ir.KindMap, ir.KindStruct:
		return true
	default:
		return false
	}
}

// rowHash renders a tuple into a length-prefixed byte string suitable as
// a BLOB primary key: every column's encoded bytes are prefixed with
// their own length so that no value's content (including embedded NUL
// bytes in a Bytes column) can make two distinct tuples hash alike.
func rowHash(row store.Row) []byte {
	var buf []byte
	var lenBuf [4]byte
	for _, v := range row {
		enc := encodeValue(v)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(enc)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, enc...)
	}
	return buf
}
