// Package wire implements the value codec used by SQLite session
// extension changesets and patchsets: a single type-tag byte followed by
// a type-specific payload (see encoding/serial.rs in the reference
// implementation this package is ported from).
//
// This is deliberately NOT the same encoding as SQLite's on-disk record
// format, which the teacher package (jordanwade90/rawlite's record
// package) implements with its own, unrelated serial-type scheme. The
// two formats share no type codes and no framing.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/jordanwade90/sqlite-changeset/internal/varint"
)

// Kind identifies which of the six wire cases a Value holds.
type Kind uint8

const (
	// KindUndefined marks "no information for this slot"; distinct from Null.
	KindUndefined Kind = 0x00
	KindInteger   Kind = 0x01
	KindReal      Kind = 0x02
	KindText      Kind = 0x03
	KindBlob      Kind = 0x04
	KindNull      Kind = 0x05
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	case KindNull:
		return "null"
	default:
		return "invalid"
	}
}

// Value is a tagged union over the six wire cases: Undefined, Null,
// Integer, Real, Text, and Blob. The zero Value is Undefined.
//
// Value uses a single owned representation (Go string/[]byte) rather
// than a generic borrowed/owned split; per the source specification's
// design notes the zero-copy path is a performance affordance, not part
// of the contract.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// Undefined is the "no information" marker. It is not a concrete value.
var Undefined = Value{kind: KindUndefined}

// Null constructs the SQL NULL value.
func Null() Value { return Value{kind: KindNull} }

// Integer constructs a signed 64-bit integer value.
func Integer(i int64) Value { return Value{kind: KindInteger, i: i} }

// Real constructs an IEEE-754 binary64 value, normalizing NaN to Null and
// negative zero to positive zero as the decoder would.
func Real(f float64) Value {
	if math.IsNaN(f) {
		return Null()
	}
	if f == 0 {
		f = 0
	}
	return Value{kind: KindReal, f: f}
}

// Text constructs a text value. The encoder does not validate s as UTF-8.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Blob constructs a blob value.
func Blob(b []byte) Value { return Value{kind: KindBlob, b: b} }

// Kind reports which wire case v holds.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is the Undefined marker.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsNull reports whether v is SQL NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the integer payload of v; it is only meaningful when
// v.Kind() == KindInteger.
func (v Value) Int() int64 { return v.i }

// Float returns the real payload of v; it is only meaningful when
// v.Kind() == KindReal.
func (v Value) Float() float64 { return v.f }

// Str returns the text payload of v; it is only meaningful when
// v.Kind() == KindText.
func (v Value) Str() string { return v.s }

// Bytes returns the blob payload of v; it is only meaningful when
// v.Kind() == KindBlob.
func (v Value) Bytes() []byte { return v.b }

// Equal reports whether v and other compare equal under changeset
// consolidation rules: Real comparison is bitwise on the normalized
// form, and Null and Undefined are distinguished (they are not
// interchangeable for equality, and their distinct tag bytes also hash
// differently in DiffSet's row-order simulation).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == other.i
	case KindReal:
		return math.Float64bits(v.f) == math.Float64bits(other.f)
	case KindText:
		return v.s == other.s
	case KindBlob:
		return len(v.b) == len(other.b) && string(v.b) == string(other.b)
	default: // Null, Undefined
		return true
	}
}

// Encode appends the wire encoding of v to buf and returns the extended
// slice. Encode is total over all six Kind values.
func Encode(buf []byte, v Value) []byte {
	switch v.kind {
	case KindUndefined:
		return append(buf, byte(KindUndefined))
	case KindNull:
		return append(buf, byte(KindNull))
	case KindInteger:
		buf = append(buf, byte(KindInteger))
		return binary.BigEndian.AppendUint64(buf, uint64(v.i))
	case KindReal:
		buf = append(buf, byte(KindReal))
		f := v.f
		if f == 0 {
			f = 0 // normalize -0.0 on the way out too
		}
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(f))
	case KindText:
		buf = append(buf, byte(KindText))
		buf = varint.Append(buf, uint64(len(v.s)))
		return append(buf, v.s...)
	case KindBlob:
		buf = append(buf, byte(KindBlob))
		buf = varint.Append(buf, uint64(len(v.b)))
		return append(buf, v.b...)
	default:
		panic("wire: invalid Value kind")
	}
}

// EncodeLen returns the number of bytes Encode(nil, v) would produce.
func EncodeLen(v Value) int {
	switch v.kind {
	case KindUndefined, KindNull:
		return 1
	case KindInteger, KindReal:
		return 9
	case KindText:
		return 1 + varint.Len(uint64(len(v.s))) + len(v.s)
	case KindBlob:
		return 1 + varint.Len(uint64(len(v.b))) + len(v.b)
	default:
		panic("wire: invalid Value kind")
	}
}

// Decode reads one Value from the front of data, returning the decoded
// value and the number of bytes consumed.
//
// Decode applies the NaN-to-Null and negative-zero-to-positive-zero
// normalizations on Real values, and accepts any byte sequence as Text
// without validating UTF-8 (downstream consumers that render SQL are
// responsible for validity if they require it).
func Decode(data []byte) (Value, int, error) {
	if len(data) == 0 {
		return Value{}, 0, ErrTruncated
	}
	tag := Kind(data[0])
	rest := data[1:]

	switch tag {
	case KindUndefined:
		return Undefined, 1, nil
	case KindNull:
		return Null(), 1, nil
	case KindInteger:
		if len(rest) < 8 {
			return Value{}, 0, ErrTruncated
		}
		i := int64(binary.BigEndian.Uint64(rest[:8]))
		return Integer(i), 9, nil
	case KindReal:
		if len(rest) < 8 {
			return Value{}, 0, ErrTruncated
		}
		bits := binary.BigEndian.Uint64(rest[:8])
		f := math.Float64frombits(bits)
		return Real(f), 9, nil
	case KindText:
		n, nlen, err := varint.Decode(rest)
		if err != nil {
			return Value{}, 0, err
		}
		rest = rest[nlen:]
		if uint64(len(rest)) < n {
			return Value{}, 0, ErrTruncated
		}
		s := string(rest[:n])
		return Text(s), 1 + nlen + int(n), nil
	case KindBlob:
		n, nlen, err := varint.Decode(rest)
		if err != nil {
			return Value{}, 0, err
		}
		rest = rest[nlen:]
		if uint64(len(rest)) < n {
			return Value{}, 0, ErrTruncated
		}
		b := make([]byte, n)
		copy(b, rest[:n])
		return Blob(b), 1 + nlen + int(n), nil
	default:
		return Value{}, 0, ErrUnknownTag
	}
}
