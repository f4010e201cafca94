package values

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/big"

	"github.com/chainkit/statenode/common"
)

// Selector bytes for the StorageValue tagged union (spec §6). Boolean gets
// two selectors, one per literal, exactly as spec names them; every other
// variant gets the next free number in sequence.
const (
	selBooleanTrue  = 0
	selBooleanFalse = 1
	selByte         = 2
	selShort        = 3
	selInt          = 4
	selLong         = 5
	selChar         = 6
	selFloat        = 7
	selDouble       = 8
	selBigInteger   = 9
	selString       = 10
	selNull         = 11
	selEnum         = 12
	selStorageRef   = 13
)

// Value is the common interface of every StorageValue variant: a canonical
// selector-prefixed encoding and a total ordering, per spec §3.
type Value interface {
	Selector() byte
	Write(w io.Writer) error
	CompareTo(Value) int
	String() string
}

// WriteValue writes v's selector followed by its payload.
func WriteValue(w io.Writer, v Value) error {
	if err := common.WriteByte(w, v.Selector()); err != nil {
		return err
	}
	return v.Write(w)
}

// ReadValue decodes a Value previously written by WriteValue.
func ReadValue(r io.Reader) (Value, error) {
	sel, err := common.ReadByte(r)
	if err != nil {
		return nil, err
	}
	switch sel {
	case selBooleanTrue:
		return BooleanValue(true), nil
	case selBooleanFalse:
		return BooleanValue(false), nil
	case selByte:
		b, err := common.ReadByte(r)
		return ByteValue(b), err
	case selShort:
		var u uint16
		err := common.ReadUint16(r, &u)
		return ShortValue(int16(u)), err
	case selInt:
		var u uint32
		err := common.ReadUint32(r, &u)
		return IntValue(int32(u)), err
	case selLong:
		var u uint64
		err := common.ReadUint64(r, &u)
		return LongValue(int64(u)), err
	case selChar:
		var u uint16
		err := common.ReadUint16(r, &u)
		return CharValue(rune(u)), err
	case selFloat:
		var u uint32
		if err := common.ReadUint32(r, &u); err != nil {
			return nil, err
		}
		return FloatValue(math.Float32frombits(u)), nil
	case selDouble:
		var u uint64
		if err := common.ReadUint64(r, &u); err != nil {
			return nil, err
		}
		return DoubleValue(math.Float64frombits(u)), nil
	case selBigInteger:
		b, err := common.ReadCompactBytes(r)
		if err != nil {
			return nil, err
		}
		neg := len(b) > 0 && b[0]&0x80 != 0
		bi := new(big.Int).SetBytes(twosComplementAbs(b))
		if neg {
			bi.Neg(bi)
		}
		return BigIntegerValue{Int: bi}, nil
	case selString:
		s, err := common.ReadString(r)
		return StringValue(s), err
	case selNull:
		return NullValue{}, nil
	case selEnum:
		class, err := common.ReadString(r)
		if err != nil {
			return nil, err
		}
		elem, err := common.ReadString(r)
		return EnumValue{Class: class, Element: elem}, err
	case selStorageRef:
		var ref StorageReference
		err := ref.Read(r)
		return StorageReferenceValue{StorageReference: ref}, err
	default:
		return nil, fmt.Errorf("values: unknown StorageValue selector %d", sel)
	}
}

// --- primitive variants ----------------------------------------------------

type BooleanValue bool

func (v BooleanValue) Selector() byte {
	if v {
		return selBooleanTrue
	}
	return selBooleanFalse
}
func (v BooleanValue) Write(io.Writer) error { return nil }
func (v BooleanValue) String() string {
	if v {
		return "true"
	}
	return "false"
}
// CompareTo can't route through compareSelectorThen's selector-equality
// check like the other variants: true and false deliberately carry
// different selectors (spec §6), so a raw selector comparison would put
// every false value ahead of every true one instead of comparing the
// booleans themselves.
func (v BooleanValue) CompareTo(o Value) int {
	if ob, ok := o.(BooleanValue); ok {
		return boolCompare(bool(v), bool(ob))
	}
	return compareSelectorThen(v, o, func(Value) int { return 0 })
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

type ByteValue byte

func (v ByteValue) Selector() byte          { return selByte }
func (v ByteValue) Write(w io.Writer) error { return common.WriteByte(w, byte(v)) }
func (v ByteValue) String() string          { return fmt.Sprintf("%d", byte(v)) }
func (v ByteValue) CompareTo(o Value) int {
	return compareSelectorThen(v, o, func(ov Value) int { return intCompare(int64(v), int64(ov.(ByteValue))) })
}

type ShortValue int16

func (v ShortValue) Selector() byte          { return selShort }
func (v ShortValue) Write(w io.Writer) error { return common.WriteUint16(w, uint16(v)) }
func (v ShortValue) String() string          { return fmt.Sprintf("%d", int16(v)) }
func (v ShortValue) CompareTo(o Value) int {
	return compareSelectorThen(v, o, func(ov Value) int { return intCompare(int64(v), int64(ov.(ShortValue))) })
}

type IntValue int32

func (v IntValue) Selector() byte          { return selInt }
func (v IntValue) Write(w io.Writer) error { return common.WriteUint32(w, uint32(v)) }
func (v IntValue) String() string          { return fmt.Sprintf("%d", int32(v)) }
func (v IntValue) CompareTo(o Value) int {
	return compareSelectorThen(v, o, func(ov Value) int { return intCompare(int64(v), int64(ov.(IntValue))) })
}

type LongValue int64

func (v LongValue) Selector() byte          { return selLong }
func (v LongValue) Write(w io.Writer) error { return common.WriteUint64(w, uint64(v)) }
func (v LongValue) String() string          { return fmt.Sprintf("%d", int64(v)) }
func (v LongValue) CompareTo(o Value) int {
	return compareSelectorThen(v, o, func(ov Value) int { return intCompare(int64(v), int64(ov.(LongValue))) })
}

type CharValue rune

func (v CharValue) Selector() byte          { return selChar }
func (v CharValue) Write(w io.Writer) error { return common.WriteUint16(w, uint16(v)) }
func (v CharValue) String() string          { return string(rune(v)) }
func (v CharValue) CompareTo(o Value) int {
	return compareSelectorThen(v, o, func(ov Value) int { return intCompare(int64(v), int64(ov.(CharValue))) })
}

type FloatValue float32

func (v FloatValue) Selector() byte          { return selFloat }
func (v FloatValue) Write(w io.Writer) error { return common.WriteUint32(w, math.Float32bits(float32(v))) }
func (v FloatValue) String() string          { return fmt.Sprintf("%g", float32(v)) }
func (v FloatValue) CompareTo(o Value) int {
	return compareSelectorThen(v, o, func(ov Value) int { return floatCompare(float64(v), float64(ov.(FloatValue))) })
}

type DoubleValue float64

func (v DoubleValue) Selector() byte          { return selDouble }
func (v DoubleValue) Write(w io.Writer) error { return common.WriteUint64(w, math.Float64bits(float64(v))) }
func (v DoubleValue) String() string          { return fmt.Sprintf("%g", float64(v)) }
func (v DoubleValue) CompareTo(o Value) int {
	return compareSelectorThen(v, o, func(ov Value) int { return floatCompare(float64(v), float64(ov.(DoubleValue))) })
}

func intCompare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func floatCompare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// BigIntegerValue wraps an arbitrary-precision integer, encoded as a
// length-prefixed two's-complement big-endian byte string (spec §6).
type BigIntegerValue struct{ Int *big.Int }

func (v BigIntegerValue) Selector() byte { return selBigInteger }
func (v BigIntegerValue) Write(w io.Writer) error {
	return common.WriteCompactBytes(w, twosComplementBytes(v.Int))
}
func (v BigIntegerValue) String() string { return v.Int.String() }
func (v BigIntegerValue) CompareTo(o Value) int {
	return compareSelectorThen(v, o, func(ov Value) int { return v.Int.Cmp(ov.(BigIntegerValue).Int) })
}

func twosComplementBytes(v *big.Int) []byte {
	if v.Sign() >= 0 {
		b := v.Bytes()
		if len(b) == 0 || b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}
	// two's complement of a negative value: invert the magnitude bytes of
	// (|v|-1) padded to the magnitude's own width, sign-extended.
	mag := new(big.Int).Add(v, big.NewInt(1))
	mag.Neg(mag)
	b := mag.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	if b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	for i := range b {
		b[i] = ^b[i]
	}
	return b
}

func twosComplementAbs(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	if b[0]&0x80 == 0 {
		return b
	}
	inv := make([]byte, len(b))
	for i := range b {
		inv[i] = ^b[i]
	}
	mag := new(big.Int).SetBytes(inv)
	mag.Add(mag, big.NewInt(1))
	return mag.Bytes()
}

// StringValue is a length-prefixed UTF-8 string.
type StringValue string

func (v StringValue) Selector() byte          { return selString }
func (v StringValue) Write(w io.Writer) error { return common.WriteString(w, string(v)) }
func (v StringValue) String() string          { return string(v) }
func (v StringValue) CompareTo(o Value) int {
	return compareSelectorThen(v, o, func(ov Value) int { return compareStrings(string(v), string(ov.(StringValue))) })
}

// NullValue is the absence of a reference.
type NullValue struct{}

func (NullValue) Selector() byte          { return selNull }
func (NullValue) Write(io.Writer) error    { return nil }
func (NullValue) String() string          { return "null" }
func (NullValue) CompareTo(o Value) int    { return compareSelectorThen(NullValue{}, o, func(Value) int { return 0 }) }

// EnumValue names a class and one of its elements.
type EnumValue struct {
	Class   string
	Element string
}

func (v EnumValue) Selector() byte { return selEnum }
func (v EnumValue) Write(w io.Writer) error {
	if err := common.WriteString(w, v.Class); err != nil {
		return err
	}
	return common.WriteString(w, v.Element)
}
func (v EnumValue) String() string { return v.Class + "." + v.Element }
func (v EnumValue) CompareTo(o Value) int {
	return compareSelectorThen(v, o, func(ov Value) int {
		oe := ov.(EnumValue)
		if c := compareStrings(v.Class, oe.Class); c != 0 {
			return c
		}
		return compareStrings(v.Element, oe.Element)
	})
}

// StorageReferenceValue wraps a reference to another storage object.
type StorageReferenceValue struct{ StorageReference }

func (v StorageReferenceValue) Selector() byte          { return selStorageRef }
func (v StorageReferenceValue) Write(w io.Writer) error { return v.StorageReference.Write(w) }
func (v StorageReferenceValue) String() string          { return v.StorageReference.String() }
func (v StorageReferenceValue) CompareTo(o Value) int {
	return compareSelectorThen(v, o, func(ov Value) int {
		return v.StorageReference.Compare(ov.(StorageReferenceValue).StorageReference)
	})
}

// compareSelectorThen orders two values first by selector (so the total
// order is well-defined across variants), falling back to sameKind for two
// values of the same variant. NullValue is ordered ahead of every other
// variant regardless of its own selector byte, which only exists to give
// null a canonical wire encoding, not a place in the ordering.
func compareSelectorThen(v Value, o Value, sameKind func(Value) int) int {
	_, vNull := v.(NullValue)
	_, oNull := o.(NullValue)
	if vNull || oNull {
		switch {
		case vNull && oNull:
			return 0
		case vNull:
			return -1
		default:
			return 1
		}
	}
	if v.Selector() != o.Selector() {
		if v.Selector() < o.Selector() {
			return -1
		}
		return 1
	}
	return sameKind(o)
}

// Bytes returns the canonical encoding of v.
func Bytes(v Value) []byte {
	var buf bytes.Buffer
	if err := WriteValue(&buf, v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
