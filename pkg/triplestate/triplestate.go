// Package triplestate normalizes the three incompatible Yes/No encodings
// observed across inspection tables (integer 0/1, "Yes"/"No", and the
// lowercase "yes"/"no" used by one sub-group of fields) into a single
// in-memory literal form. Conversion happens at exactly two boundaries:
// local-store read/write and remote-sync read/write. Everything above those
// boundaries only ever sees Yes, No, or Unset.
package triplestate

import (
	"fmt"
	"strings"
)

// Value is the canonical in-memory representation of a Yes/No answer.
type Value string

const (
	Unset Value = ""
	Yes   Value = "Yes"
	No    Value = "No"
)

// Encoding names the on-disk/on-the-wire representation declared per field.
type Encoding string

const (
	// EncodingIntZeroOne stores No as 0 and Yes as 1.
	EncodingIntZeroOne Encoding = "intZeroOne"
	// EncodingYesNoString stores the literals "Yes" and "No".
	EncodingYesNoString Encoding = "yesNoString"
	// EncodingLowerYesNo stores the literals "yes" and "no".
	EncodingLowerYesNo Encoding = "lowerYesNoString"
)

// Valid reports whether v is one of the three canonical values.
func (v Value) Valid() bool {
	return v == Unset || v == Yes || v == No
}

// Answered reports whether v carries an actual answer.
func (v Value) Answered() bool {
	return v == Yes || v == No
}

// Parse coerces a loosely-typed in-memory value (string, Value, nil) into a
// canonical Value. It is forgiving about case but not about vocabulary:
// anything outside yes/no/empty is an error.
func Parse(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Unset, nil
	case Value:
		if !t.Valid() {
			return Unset, fmt.Errorf("triplestate: invalid value %q", string(t))
		}
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "":
			return Unset, nil
		case "yes":
			return Yes, nil
		case "no":
			return No, nil
		}
		return Unset, fmt.Errorf("triplestate: unrecognized value %q", t)
	default:
		return Unset, fmt.Errorf("triplestate: unsupported type %T", raw)
	}
}

// Encode converts a canonical Value into the representation named by enc.
// Unset encodes to nil so that unanswered fields stay NULL in storage and
// absent on the wire.
func Encode(v Value, enc Encoding) (any, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("triplestate: cannot encode invalid value %q", string(v))
	}
	if v == Unset {
		return nil, nil
	}
	switch enc {
	case EncodingIntZeroOne:
		if v == Yes {
			return 1, nil
		}
		return 0, nil
	case EncodingYesNoString:
		return string(v), nil
	case EncodingLowerYesNo:
		return strings.ToLower(string(v)), nil
	default:
		return nil, fmt.Errorf("triplestate: unknown encoding %q", string(enc))
	}
}

// Decode converts a raw stored/wire value back into the canonical Value.
// It tolerates the numeric widenings that JSON decoding and database drivers
// introduce (float64, int64, strings holding digits) so that a record written
// by one layer survives a round trip through another.
func Decode(raw any, enc Encoding) (Value, error) {
	if raw == nil {
		return Unset, nil
	}
	switch t := raw.(type) {
	case Value:
		return Parse(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return Unset, nil
		}
		if enc == EncodingIntZeroOne {
			switch s {
			case "0":
				return No, nil
			case "1":
				return Yes, nil
			}
		}
		return Parse(s)
	case bool:
		if t {
			return Yes, nil
		}
		return No, nil
	case int:
		return decodeInt(int64(t))
	case int64:
		return decodeInt(t)
	case float64:
		return decodeInt(int64(t))
	default:
		return Unset, fmt.Errorf("triplestate: cannot decode %T", raw)
	}
}

func decodeInt(n int64) (Value, error) {
	switch n {
	case 0:
		return No, nil
	case 1:
		return Yes, nil
	}
	return Unset, fmt.Errorf("triplestate: integer %d is not a Yes/No encoding", n)
}
