package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

type idKind uint8

const (
	idAbsent idKind = iota
	idNull
	idNumber
	idString
)

// maxExactFloat is the largest integer a float64 holds without rounding.
const maxExactFloat = 1 << 53

// ID identifies a request. The zero value is an absent id, which marks a
// notification. IDs are comparable and usable as map keys: numbers are kept in
// canonical form so 1 and 1.0 are the same id, while the number 1 and the
// string "1" are different ids.
type ID struct {
	kind  idKind
	value string
}

func NumberID(n int64) ID {
	return ID{kind: idNumber, value: strconv.FormatInt(n, 10)}
}

func StringID(s string) ID {
	return ID{kind: idString, value: s}
}

func NullID() ID {
	return ID{kind: idNull}
}

// NormalizeID converts an arbitrary value into an ID. nil becomes null,
// numbers stay numbers and every other value is stringified.
func NormalizeID(v any) ID {
	switch id := v.(type) {
	case nil:
		return NullID()
	case ID:
		if id.IsZero() {
			return NullID()
		}
		return id
	case string:
		return StringID(id)
	case json.Number:
		return numberID(id.String())
	case float32:
		return numberID(strconv.FormatFloat(float64(id), 'g', -1, 32))
	case float64:
		return numberID(strconv.FormatFloat(id, 'g', -1, 64))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NumberID(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return ID{kind: idNumber, value: strconv.FormatUint(rv.Uint(), 10)}
	case reflect.Pointer:
		if rv.IsNil() {
			return NullID()
		}
		return NormalizeID(rv.Elem().Interface())
	default:
		return StringID(fmt.Sprint(v))
	}
}

func numberID(text string) ID {
	return ID{kind: idNumber, value: canonicalNumber(text)}
}

func canonicalNumber(text string) string {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return text
	}
	if f == math.Trunc(f) && math.Abs(f) <= maxExactFloat {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// IsZero reports whether the id is absent.
func (id ID) IsZero() bool {
	return id.kind == idAbsent
}

func (id ID) IsNull() bool {
	return id.kind == idNull
}

// IsDefined reports whether the id is neither absent nor null, that is whether
// a successful request carrying it expects a response.
func (id ID) IsDefined() bool {
	return id.kind == idNumber || id.kind == idString
}

func (id ID) IsNumber() bool {
	return id.kind == idNumber
}

// Int64 returns the numeric value of an integral number id.
func (id ID) Int64() (int64, bool) {
	if id.kind != idNumber {
		return 0, false
	}
	n, err := strconv.ParseInt(id.value, 10, 64)
	return n, err == nil
}

func (id ID) String() string {
	switch id.kind {
	case idAbsent:
		return "<absent>"
	case idNull:
		return "null"
	case idString:
		return strconv.Quote(id.value)
	default:
		return id.value
	}
}

// MarshalJSON encodes absent and null ids as null.
func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idNumber:
		return []byte(id.value), nil
	case idString:
		return json.Marshal(id.value)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts any JSON value. Values that are neither numbers,
// strings nor null are kept as their compact JSON text in a string id.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty id")
	}

	switch c := data[0]; {
	case c == 'n' && bytes.Equal(data, []byte("null")):
		*id = NullID()
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
	case c == '-' || (c >= '0' && c <= '9'):
		*id = numberID(string(data))
	default:
		var compact bytes.Buffer
		if err := json.Compact(&compact, data); err != nil {
			return err
		}
		*id = StringID(compact.String())
	}
	return nil
}
