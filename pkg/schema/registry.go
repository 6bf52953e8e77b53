package schema

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/harvestry/go-inspectform/pkg/triplestate"
)

// identPattern constrains stage and field keys to identifier-safe names,
// since stage IDs become table names and field keys become column names.
var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Registry holds the ordered stage definitions for one wizard and answers
// lookups by stage ID. It is immutable after construction; build a new
// Registry to change the schema.
type Registry struct {
	stages []StageDefinition
	byID   map[string]int
}

// NewRegistry validates and indexes the supplied stage definitions. Stages
// are sorted by Order. Construction fails on structural defects: duplicate
// stage IDs or orders, duplicate field keys, identifier-unsafe names,
// uniqueness groups or clear lists referencing unknown siblings, multiSelect
// sentinels without a companion field, or tripleState fields missing a
// boolean encoding.
func NewRegistry(stages ...StageDefinition) (*Registry, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("schema: registry requires at least one stage")
	}

	sorted := make([]StageDefinition, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	byID := make(map[string]int, len(sorted))
	orders := make(map[int]string, len(sorted))
	for i, stage := range sorted {
		if err := validateStage(stage); err != nil {
			return nil, err
		}
		if _, dup := byID[stage.ID]; dup {
			return nil, fmt.Errorf("schema: duplicate stage id %q", stage.ID)
		}
		if other, dup := orders[stage.Order]; dup {
			return nil, fmt.Errorf("schema: stages %q and %q share order %d", other, stage.ID, stage.Order)
		}
		byID[stage.ID] = i
		orders[stage.Order] = stage.ID
	}

	return &Registry{stages: sorted, byID: byID}, nil
}

// MustRegistry is NewRegistry that panics on error, for package-level
// declarations of static schemas.
func MustRegistry(stages ...StageDefinition) *Registry {
	reg, err := NewRegistry(stages...)
	if err != nil {
		panic(err)
	}
	return reg
}

func validateStage(stage StageDefinition) error {
	if !identPattern.MatchString(stage.ID) {
		return fmt.Errorf("schema: stage id %q is not identifier-safe", stage.ID)
	}
	if len(stage.Fields) == 0 {
		return fmt.Errorf("schema: stage %q has no fields", stage.ID)
	}

	keys := make(map[string]FieldDefinition, len(stage.Fields))
	for _, f := range stage.Fields {
		if !identPattern.MatchString(f.Key) {
			return fmt.Errorf("schema: stage %q field key %q is not identifier-safe", stage.ID, f.Key)
		}
		if _, dup := keys[f.Key]; dup {
			return fmt.Errorf("schema: stage %q declares field %q twice", stage.ID, f.Key)
		}
		keys[f.Key] = f
	}

	for _, f := range stage.Fields {
		switch f.Type {
		case TypeShortText, TypeFreeText, TypeNumericInteger, TypeNumericDecimal,
			TypeTripleState, TypeMultiSelect, TypeEmail, TypeGeoPoint, TypeImageList:
		default:
			return fmt.Errorf("schema: stage %q field %q has unknown type %q", stage.ID, f.Key, f.Type)
		}

		if f.Type == TypeTripleState {
			switch f.BoolEncoding {
			case triplestate.EncodingIntZeroOne, triplestate.EncodingYesNoString, triplestate.EncodingLowerYesNo:
			default:
				return fmt.Errorf("schema: stage %q tripleState field %q missing boolEncoding", stage.ID, f.Key)
			}
		}

		for _, member := range f.UniquenessGroup {
			if _, ok := keys[member]; !ok {
				return fmt.Errorf("schema: stage %q field %q uniqueness group references unknown field %q", stage.ID, f.Key, member)
			}
		}

		if len(f.ClearsOnNo) > 0 && f.Type != TypeTripleState {
			return fmt.Errorf("schema: stage %q field %q declares clearsOnNo but is not tripleState", stage.ID, f.Key)
		}
		for _, dep := range f.ClearsOnNo {
			if dep == f.Key {
				return fmt.Errorf("schema: stage %q field %q clears itself", stage.ID, f.Key)
			}
			if _, ok := keys[dep]; !ok {
				return fmt.Errorf("schema: stage %q field %q clears unknown field %q", stage.ID, f.Key, dep)
			}
		}

		if f.OtherOption != "" {
			if f.Type != TypeMultiSelect {
				return fmt.Errorf("schema: stage %q field %q declares otherOption but is not multiSelect", stage.ID, f.Key)
			}
			if f.OtherKey == "" {
				return fmt.Errorf("schema: stage %q field %q declares otherOption without otherKey", stage.ID, f.Key)
			}
			if _, ok := keys[f.OtherKey]; !ok {
				return fmt.Errorf("schema: stage %q field %q otherKey references unknown field %q", stage.ID, f.Key, f.OtherKey)
			}
		}
	}

	return nil
}

// Stages returns the stage definitions in wizard order.
func (r *Registry) Stages() []StageDefinition {
	out := make([]StageDefinition, len(r.stages))
	copy(out, r.stages)
	return out
}

// Stage looks up a stage definition by ID.
func (r *Registry) Stage(id string) (StageDefinition, bool) {
	i, ok := r.byID[id]
	if !ok {
		return StageDefinition{}, false
	}
	return r.stages[i], true
}

// Len returns the number of registered stages.
func (r *Registry) Len() int {
	return len(r.stages)
}
