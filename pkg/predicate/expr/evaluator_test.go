package expr

import "testing"

func TestEvalComparison(t *testing.T) {
	t.Parallel()

	eval := New()

	ok, err := eval.Eval(`riskPresent == "Yes"`, map[string]any{"riskPresent": "Yes"})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected true")
	}

	ok, err = eval.Eval(`riskPresent != "Yes"`, map[string]any{"riskPresent": "No"})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected true for != on No")
	}
}

func TestEvalMissingAnswer(t *testing.T) {
	t.Parallel()

	eval := New()

	ok, err := eval.Eval(`riskPresent == "Yes"`, map[string]any{})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if ok {
		t.Fatal("unanswered field must not equal Yes")
	}
}

func TestEvalTruthiness(t *testing.T) {
	t.Parallel()

	eval := New()

	cases := []struct {
		rule   string
		values map[string]any
		want   bool
	}{
		{"ownsLand", map[string]any{"ownsLand": "Yes"}, true},
		{"ownsLand", map[string]any{"ownsLand": "No"}, false},
		{"ownsLand", map[string]any{}, false},
		{"!ownsLand", map[string]any{"ownsLand": "No"}, true},
		{"cropSystems", map[string]any{"cropSystems": []string{"Mixed"}}, true},
		{"cropSystems", map[string]any{"cropSystems": []string{}}, false},
	}
	for _, tc := range cases {
		got, err := eval.Eval(tc.rule, tc.values)
		if err != nil {
			t.Fatalf("Eval(%q) returned error: %v", tc.rule, err)
		}
		if got != tc.want {
			t.Fatalf("Eval(%q, %v) = %v, want %v", tc.rule, tc.values, got, tc.want)
		}
	}
}

func TestEvalComposition(t *testing.T) {
	t.Parallel()

	eval := New()

	values := map[string]any{"riskPresent": "Yes", "ownsLand": "No"}
	ok, err := eval.Eval(`riskPresent == "Yes" && !ownsLand`, values)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected composed rule to hold")
	}

	ok, err = eval.Eval(`(ownsLand || riskPresent) && riskPresent != "No"`, values)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected grouped rule to hold")
	}
}

func TestEvalEmptyRuleIsTrue(t *testing.T) {
	t.Parallel()

	ok, err := New().Eval("  ", nil)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatal("empty rule must be vacuously true")
	}
}

func TestEvalSyntaxErrors(t *testing.T) {
	t.Parallel()

	eval := New()
	for _, rule := range []string{
		`riskPresent = "Yes"`,
		`riskPresent == `,
		`(riskPresent`,
		`riskPresent == "unterminated`,
	} {
		if _, err := eval.Eval(rule, nil); err == nil {
			t.Fatalf("expected syntax error for %q", rule)
		}
	}
}
