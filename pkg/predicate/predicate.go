// Package predicate defines the contract for evaluating the rule strings
// that drive conditional requiredness and stage visibility. Rules are
// evaluated against the sibling values of the stage being edited (or, for
// stage visibility, the merged answers of prior stages).
package predicate

// Evaluator decides whether a rule holds for the supplied values.
type Evaluator interface {
	Eval(rule string, values map[string]any) (bool, error)
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(rule string, values map[string]any) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(rule string, values map[string]any) (bool, error) {
	return fn(rule, values)
}
