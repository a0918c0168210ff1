package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind is the declared type of a table column and of the values stored in it.
type Kind uint8

// Supported kinds. KindInvalid is the kind of the zero Value.
const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindDouble
	KindBool
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindString:  "string",
	KindInt:     "int",
	KindDouble:  "double",
	KindBool:    "bool",
}

// String returns the kind name used in schemas and config files.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the supported cell kinds.
func (k Kind) Valid() bool {
	return k > KindInvalid && int(k) < len(kindNames)
}

// ParseKind maps a kind name back to its Kind.
// Returns ErrInvalidKind for unknown names.
func ParseKind(name string) (Kind, error) {
	for k := KindString; int(k) < len(kindNames); k++ {
		if kindNames[k] == name {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("%w: %q", ErrInvalidKind, name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Cell is the set of Go types a Value can carry.
type Cell interface {
	string | int64 | float64 | bool
}

// Value is a tagged union over the supported cell kinds. Accessors check the
// tag and never reinterpret a payload of one kind as another.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	flag bool
}

// StringValue returns a string-kind Value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue returns an int-kind Value.
func IntValue(n int64) Value { return Value{kind: KindInt, num: n} }

// DoubleValue returns a double-kind Value.
func DoubleValue(f float64) Value { return Value{kind: KindDouble, flt: f} }

// BoolValue returns a bool-kind Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, flag: b} }

// Zero returns the zero value of kind k, used to fill new rows.
func Zero(k Kind) Value {
	if !k.Valid() {
		return Value{}
	}
	return Value{kind: k}
}

// ValueOf wraps x in a Value of the matching kind.
func ValueOf[T Cell](x T) Value {
	switch v := any(x).(type) {
	case string:
		return StringValue(v)
	case int64:
		return IntValue(v)
	case float64:
		return DoubleValue(v)
	case bool:
		return BoolValue(v)
	}
	return Value{}
}

// KindOf returns the Kind that carries T.
func KindOf[T Cell]() Kind {
	var zero T
	return ValueOf(zero).kind
}

// As extracts the payload of v as T.
// Returns ErrTypeMismatch when v does not carry T.
func As[T Cell](v Value) (T, error) {
	var out T
	if want := KindOf[T](); v.kind != want {
		return out, Mismatch(want, v.kind)
	}
	switch p := any(&out).(type) {
	case *string:
		*p = v.str
	case *int64:
		*p = v.num
	case *float64:
		*p = v.flt
	case *bool:
		*p = v.flag
	}
	return out, nil
}

// Kind returns the tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v carries a supported kind.
func (v Value) IsValid() bool { return v.kind.Valid() }

// Equal reports whether v and o have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindInt:
		return v.num == o.num
	case KindDouble:
		return v.flt == o.flt
	case KindBool:
		return v.flag == o.flag
	}
	return true
}

// Interface returns the payload as a plain Go value, or nil for the zero Value.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindDouble:
		return v.flt
	case KindBool:
		return v.flag
	}
	return nil
}

// String formats the payload the way ParseValue reads it back.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindDouble:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	}
	return "<invalid>"
}

// MarshalJSON writes v as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("marshal value: %w", ErrInvalidKind)
	}
	return json.Marshal(v.Interface())
}

// DecodeValue reads a JSON scalar as a Value of kind k.
func DecodeValue(k Kind, raw []byte) (Value, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Value{}, fmt.Errorf("%w: null is not a %s", ErrTypeMismatch, k)
	}
	switch k {
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("%w: decoding %s: %v", ErrTypeMismatch, k, err)
		}
		return StringValue(s), nil
	case KindInt:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, fmt.Errorf("%w: decoding %s: %v", ErrTypeMismatch, k, err)
		}
		return IntValue(n), nil
	case KindDouble:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, fmt.Errorf("%w: decoding %s: %v", ErrTypeMismatch, k, err)
		}
		return DoubleValue(f), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, fmt.Errorf("%w: decoding %s: %v", ErrTypeMismatch, k, err)
		}
		return BoolValue(b), nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrInvalidKind, k)
}

// ParseValue parses text typed on a command line as a Value of kind k.
func ParseValue(k Kind, text string) (Value, error) {
	switch k {
	case KindString:
		return StringValue(text), nil
	case KindInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not an int", ErrTypeMismatch, text)
		}
		return IntValue(n), nil
	case KindDouble:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || !Finite(f) {
			return Value{}, fmt.Errorf("%w: %q is not a finite double", ErrTypeMismatch, text)
		}
		return DoubleValue(f), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a bool", ErrTypeMismatch, text)
		}
		return BoolValue(b), nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrInvalidKind, k)
}

// Finite reports whether f is neither NaN nor an infinity.
func Finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Mismatch returns an ErrTypeMismatch naming the expected and actual kinds.
func Mismatch(want, got Kind) error {
	return fmt.Errorf("%w: want %s, got %s", ErrTypeMismatch, want, got)
}
