package validation

import (
	"github.com/harvestry/go-inspectform/pkg/predicate"
	"github.com/harvestry/go-inspectform/pkg/schema"
)

// ValidateStage runs every field of the stage through Validate against the
// current values, evaluating each field's requiredness with eval. It
// returns the formatted values for every key present in the input plus the
// aggregated error list in field-definition order. A non-nil error means a
// rule string itself is malformed, which is a schema defect rather than a
// user-input problem.
func ValidateStage(stage schema.StageDefinition, values map[string]any, eval predicate.Evaluator) (map[string]any, []FieldError, error) {
	normalized := make(map[string]any, len(values))
	var errs []FieldError

	for _, field := range stage.Fields {
		raw, present := values[field.Key]

		required, err := Required(stage, field, values, eval)
		if err != nil {
			return nil, nil, err
		}

		value, ferr := Validate(raw, field, values, required)
		if present || ferr != nil {
			normalized[field.Key] = value
		}
		if ferr != nil {
			errs = append(errs, *ferr)
		}
	}

	return normalized, errs, nil
}
