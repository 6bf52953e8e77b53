package schema

import "github.com/harvestry/go-inspectform/pkg/triplestate"

// ValueType is the tagged variant describing how a field's raw input is
// formatted, validated, and persisted.
type ValueType string

const (
	TypeShortText      ValueType = "shortText"
	TypeFreeText       ValueType = "freeText"
	TypeNumericInteger ValueType = "numericInteger"
	TypeNumericDecimal ValueType = "numericDecimal"
	TypeTripleState    ValueType = "tripleState"
	TypeMultiSelect    ValueType = "multiSelect"
	TypeEmail          ValueType = "email"
	TypeGeoPoint       ValueType = "geoPoint"
	TypeImageList      ValueType = "imageList"
)

// Alphabet restricts the characters a text field accepts during formatting.
type Alphabet string

const (
	// AlphabetLetters keeps letters and spaces, the rule for person and
	// place names.
	AlphabetLetters Alphabet = "letters"
	// AlphabetAlphanumeric keeps letters, digits, and spaces, the rule for
	// house and plot numbers.
	AlphabetAlphanumeric Alphabet = "alphanumeric"
)

// FieldDefinition declares one input of a stage: its value type, when it is
// required, how it is formatted, and how its Yes/No answers are encoded at
// the persistence boundaries.
type FieldDefinition struct {
	Key   string    `yaml:"key"`
	Type  ValueType `yaml:"type"`
	Label string    `yaml:"label,omitempty"`

	// Required marks the field unconditionally required. RequiredRule, when
	// set, takes precedence and is evaluated against the stage's current
	// sibling values (see pkg/predicate).
	Required     bool   `yaml:"required,omitempty"`
	RequiredRule string `yaml:"requiredRule,omitempty"`

	// Alphabet applies to shortText/freeText formatting.
	Alphabet Alphabet `yaml:"alphabet,omitempty"`

	// MaxDigits caps numericInteger length after normalization; zero means
	// the default of nine digits. LeadingDigit, when non-empty, is the digit
	// the normalized value must start with.
	MaxDigits    int    `yaml:"maxDigits,omitempty"`
	LeadingDigit string `yaml:"leadingDigit,omitempty"`

	// ForbidZero rejects a numericDecimal value that normalizes to exactly "0".
	ForbidZero bool `yaml:"forbidZero,omitempty"`

	// Options enumerates the selectable values of a multiSelect field.
	// OtherOption names the sentinel choice (typically "Other") whose
	// selection makes the companion field named by OtherKey required.
	Options     []string `yaml:"options,omitempty"`
	OtherOption string   `yaml:"otherOption,omitempty"`
	OtherKey    string   `yaml:"otherKey,omitempty"`

	// UniquenessGroup lists sibling keys whose normalized values must be
	// pairwise distinct. Listing is symmetric: each member declares the full
	// group including itself.
	UniquenessGroup []string `yaml:"uniquenessGroup,omitempty"`

	// ClearsOnNo applies to tripleState fields: when the answer flips to No,
	// the listed sibling fields have their values and errors cleared in the
	// same update.
	ClearsOnNo []string `yaml:"clearsOnNo,omitempty"`

	// BoolEncoding declares the storage/wire representation of a tripleState
	// field. Ignored for other types.
	BoolEncoding triplestate.Encoding `yaml:"boolEncoding,omitempty"`

	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// DisplayLabel returns the label to use in user-facing messages, falling
// back to the key when no label was declared.
func (f FieldDefinition) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Key
}

// IsCollection reports whether the field's value is array- or object-shaped
// and therefore needs the reversible string encoding at rest.
func (f FieldDefinition) IsCollection() bool {
	switch f.Type {
	case TypeMultiSelect, TypeGeoPoint, TypeImageList:
		return true
	}
	return false
}

// StageDefinition declares one topic-scoped page of the wizard: its stable
// identifier (doubling as the remote table name), position, field list, and
// the optional predicate controlling whether the stage is shown at all.
type StageDefinition struct {
	ID          string            `yaml:"id"`
	Order       int               `yaml:"order"`
	Title       string            `yaml:"title,omitempty"`
	VisibleRule string            `yaml:"visibleRule,omitempty"`
	Fields      []FieldDefinition `yaml:"fields"`
}

// Field looks up a field definition by key.
func (s StageDefinition) Field(key string) (FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// FieldKeys returns the declared field keys in definition order.
func (s StageDefinition) FieldKeys() []string {
	keys := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

// HasAttachments reports whether the stage carries imageList fields, which
// switches the remote save to a multipart body.
func (s StageDefinition) HasAttachments() bool {
	for _, f := range s.Fields {
		if f.Type == TypeImageList {
			return true
		}
	}
	return false
}
