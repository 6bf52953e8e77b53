package stages_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/harvestry/go-inspectform/pkg/schema"
	"github.com/harvestry/go-inspectform/pkg/stages"
)

func TestRegistryIsValid(t *testing.T) {
	t.Parallel()

	reg, err := stages.Registry()
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}

	got := make([]string, 0, reg.Len())
	for _, st := range reg.Stages() {
		got = append(got, st.ID)
	}
	want := []string{
		"personalInfo", "identityProof", "financeInfo", "landInfo",
		"investmentInfo", "cultivationInfo", "croppingSystem", "profitRisk",
		"economicsInfo", "labourInfo", "harvestStorage",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stage order mismatch (-want +got):\n%s", diff)
	}
}

func TestConditionalBlocksDeclareRules(t *testing.T) {
	t.Parallel()

	reg := stages.MustRegistry()
	for _, st := range reg.Stages() {
		for _, f := range st.Fields {
			if f.Type != schema.TypeTripleState {
				continue
			}
			for _, dep := range f.ClearsOnNo {
				target, ok := st.Field(dep)
				if !ok {
					t.Fatalf("%s.%s clears unknown field %q", st.ID, f.Key, dep)
				}
				if target.RequiredRule == "" {
					t.Errorf("%s.%s is cleared by %s but has no required rule", st.ID, dep, f.Key)
				}
			}
		}
	}
}

func TestCroppingSystemOtherCompanion(t *testing.T) {
	t.Parallel()

	reg := stages.MustRegistry()
	st, ok := reg.Stage("croppingSystem")
	if !ok {
		t.Fatal("croppingSystem stage missing")
	}
	f, ok := st.Field("cropSystems")
	if !ok {
		t.Fatal("cropSystems field missing")
	}
	if f.OtherOption != "Other" || f.OtherKey != "cropSystemOther" {
		t.Fatalf("cropSystems other wiring = (%q, %q)", f.OtherOption, f.OtherKey)
	}
	if _, ok := st.Field(f.OtherKey); !ok {
		t.Fatalf("companion field %q missing", f.OtherKey)
	}
}
