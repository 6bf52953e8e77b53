package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"github.com/harvestry/go-inspectform/pkg/draft"
	"github.com/harvestry/go-inspectform/pkg/predicate"
	"github.com/harvestry/go-inspectform/pkg/schema"
	"github.com/harvestry/go-inspectform/pkg/triplestate"
)

const defaultMaxDigits = 9

// strictHTML strips every tag and attribute from pasted free text before
// the alphabet filter runs.
var strictHTML = bluemonday.StrictPolicy()

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	// strictLocal is the character rule the major free-mail providers
	// enforce on the local part: alphanumeric runs separated by single dots.
	strictLocal = regexp.MustCompile(`^[A-Za-z0-9]+(\.[A-Za-z0-9]+)*$`)
)

// strictProviders lists the free-mail domains that get the tighter
// local-part rule.
var strictProviders = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
}

// FieldError is a field-level validation failure. It blocks forward
// navigation and never reaches the network layer.
type FieldError struct {
	Key     string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

func requiredError(field schema.FieldDefinition) *FieldError {
	return &FieldError{Key: field.Key, Message: fmt.Sprintf("%s is required", field.DisplayLabel())}
}

// Required reports whether field is currently required given its stage's
// sibling values. Three sources decide it: the static Required flag, the
// RequiredRule predicate (which takes precedence when set), and any
// multi-select sibling whose "Other" sentinel is selected and names this
// field as its companion.
func Required(stage schema.StageDefinition, field schema.FieldDefinition, siblings map[string]any, eval predicate.Evaluator) (bool, error) {
	if field.RequiredRule != "" {
		ok, err := eval.Eval(field.RequiredRule, siblings)
		if err != nil {
			return false, fmt.Errorf("validation: field %q required rule: %w", field.Key, err)
		}
		if ok {
			return true, nil
		}
	} else if field.Required {
		return true, nil
	}

	for _, sibling := range stage.Fields {
		if sibling.Type != schema.TypeMultiSelect || sibling.OtherKey != field.Key || sibling.OtherOption == "" {
			continue
		}
		if selected, _ := siblings[sibling.Key].([]string); contains(selected, sibling.OtherOption) {
			return true, nil
		}
	}
	return false, nil
}

// Validate formats raw input according to the field's rules and reports the
// first violation. It is pure: identical (raw, field, siblings, required)
// inputs always yield identical results, and it performs no I/O.
func Validate(raw any, field schema.FieldDefinition, siblings map[string]any, required bool) (any, *FieldError) {
	switch field.Type {
	case schema.TypeShortText, schema.TypeFreeText:
		return validateText(raw, field, required)
	case schema.TypeNumericInteger:
		return validateInteger(raw, field, siblings, required)
	case schema.TypeNumericDecimal:
		return validateDecimal(raw, field, required)
	case schema.TypeTripleState:
		return validateTripleState(raw, field, required)
	case schema.TypeMultiSelect:
		return validateMultiSelect(raw, field, required)
	case schema.TypeEmail:
		return validateEmail(raw, field, siblings, required)
	case schema.TypeGeoPoint:
		return validateGeoPoint(raw, field, required)
	case schema.TypeImageList:
		return validateImageList(raw, field, required)
	default:
		return raw, &FieldError{Key: field.Key, Message: fmt.Sprintf("unknown field type %q", field.Type)}
	}
}

func validateText(raw any, field schema.FieldDefinition, required bool) (any, *FieldError) {
	s := stringValue(raw)
	if field.Type == schema.TypeFreeText {
		s = strictHTML.Sanitize(s)
	}
	s = strings.TrimLeft(s, " \t\n\r")
	s = filterAlphabet(s, field.Alphabet)
	s = capitalizeFirst(s)

	if required && strings.TrimSpace(s) == "" {
		return s, requiredError(field)
	}
	return s, nil
}

func filterAlphabet(s string, alphabet schema.Alphabet) string {
	if alphabet == "" {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch alphabet {
		case schema.AlphabetLetters:
			if unicode.IsLetter(r) || r == ' ' {
				b.WriteRune(r)
			}
		case schema.AlphabetAlphanumeric:
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
				b.WriteRune(r)
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func capitalizeFirst(s string) string {
	for i, r := range s {
		return s[:i] + string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}

func validateInteger(raw any, field schema.FieldDefinition, siblings map[string]any, required bool) (any, *FieldError) {
	maxDigits := field.MaxDigits
	if maxDigits == 0 {
		maxDigits = defaultMaxDigits
	}

	s := normalizeDigits(stringValue(raw), maxDigits)
	if s == "" {
		if required {
			return s, requiredError(field)
		}
		return s, nil
	}
	if field.LeadingDigit != "" && !strings.HasPrefix(s, field.LeadingDigit) {
		return s, &FieldError{Key: field.Key, Message: fmt.Sprintf("%s must start with %s", field.DisplayLabel(), field.LeadingDigit)}
	}
	if len(s) < maxDigits {
		return s, &FieldError{Key: field.Key, Message: fmt.Sprintf("%s must be %d digits", field.DisplayLabel(), maxDigits)}
	}
	if err := checkUniqueness(s, field, siblings, maxDigits); err != nil {
		return s, err
	}
	return s, nil
}

func normalizeDigits(s string, maxDigits int) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), "0")
	if len(out) > maxDigits {
		out = out[:maxDigits]
	}
	return out
}

func checkUniqueness(normalized string, field schema.FieldDefinition, siblings map[string]any, maxDigits int) *FieldError {
	for _, member := range field.UniquenessGroup {
		if member == field.Key {
			continue
		}
		other := siblings[member]
		var otherNorm string
		if field.Type == schema.TypeEmail {
			otherNorm = normalizeEmail(stringValue(other))
		} else {
			otherNorm = normalizeDigits(stringValue(other), maxDigits)
		}
		if otherNorm != "" && otherNorm == normalized {
			return &FieldError{Key: field.Key, Message: "values cannot be the same"}
		}
	}
	return nil
}

func validateDecimal(raw any, field schema.FieldDefinition, required bool) (any, *FieldError) {
	s := normalizeDecimal(stringValue(raw))
	if s == "" {
		if required {
			return s, requiredError(field)
		}
		return s, nil
	}
	if field.ForbidZero && s == "0" {
		return s, &FieldError{Key: field.Key, Message: fmt.Sprintf("%s cannot be zero", field.DisplayLabel())}
	}
	return s, nil
}

// normalizeDecimal strips everything but digits and dots, drops a leading
// dot, and collapses repeated dots into the first occurrence only, so
// "12..5.6" becomes "12.56".
func normalizeDecimal(s string) string {
	var b strings.Builder
	seenDot := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.':
			if b.Len() == 0 || seenDot {
				continue
			}
			b.WriteRune(r)
			seenDot = true
		}
	}
	return b.String()
}

func validateTripleState(raw any, field schema.FieldDefinition, required bool) (any, *FieldError) {
	v, err := triplestate.Parse(raw)
	if err != nil {
		return nil, &FieldError{Key: field.Key, Message: fmt.Sprintf("%s must be Yes or No", field.DisplayLabel())}
	}
	if required && !v.Answered() {
		return nil, requiredError(field)
	}
	if v == triplestate.Unset {
		return nil, nil
	}
	return string(v), nil
}

func validateMultiSelect(raw any, field schema.FieldDefinition, required bool) (any, *FieldError) {
	selected := stringList(raw)
	if required && len(selected) == 0 {
		return selected, requiredError(field)
	}
	return selected, nil
}

func validateEmail(raw any, field schema.FieldDefinition, siblings map[string]any, required bool) (any, *FieldError) {
	s := normalizeEmail(stringValue(raw))
	if s == "" {
		if required {
			return s, requiredError(field)
		}
		return s, nil
	}
	if !emailPattern.MatchString(s) {
		return s, &FieldError{Key: field.Key, Message: fmt.Sprintf("%s is not a valid email address", field.DisplayLabel())}
	}
	at := strings.LastIndex(s, "@")
	local, domain := s[:at], s[at+1:]
	if strictProviders[domain] && !strictLocal.MatchString(local) {
		return s, &FieldError{Key: field.Key, Message: fmt.Sprintf("%s is not a valid %s address", field.DisplayLabel(), domain)}
	}
	if err := checkUniqueness(s, field, siblings, defaultMaxDigits); err != nil {
		return s, err
	}
	return s, nil
}

// normalizeEmail strips all whitespace and lowercases the address for
// comparison and storage.
func normalizeEmail(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func validateGeoPoint(raw any, field schema.FieldDefinition, required bool) (any, *FieldError) {
	var point draft.GeoPoint
	switch t := raw.(type) {
	case nil:
	case draft.GeoPoint:
		point = t
	case string:
		point = draft.DecodeGeoPoint(t)
	default:
		return nil, &FieldError{Key: field.Key, Message: fmt.Sprintf("%s is not a coordinate pair", field.DisplayLabel())}
	}
	if required && point.Zero() {
		return point, requiredError(field)
	}
	return point, nil
}

func validateImageList(raw any, field schema.FieldDefinition, required bool) (any, *FieldError) {
	refs := stringList(raw)
	if required && len(refs) == 0 {
		return refs, requiredError(field)
	}
	return refs, nil
}

func stringValue(raw any) string {
	switch t := raw.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(raw)
	}
}

func stringList(raw any) []string {
	switch t := raw.(type) {
	case nil:
		return []string{}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return draft.DecodeStringList(t)
	default:
		return []string{}
	}
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
