package inspectform_test

import (
	"context"
	"path/filepath"
	"testing"

	inspectform "github.com/harvestry/go-inspectform"
	"github.com/harvestry/go-inspectform/pkg/controller"
)

func newTestEngine(t *testing.T) *inspectform.Engine {
	t.Helper()
	eng, err := inspectform.New(
		inspectform.WithStorePath(filepath.Join(t.TempDir(), "drafts.db")),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestEngineOfflineDraftLifecycle(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	reqID := inspectform.NewRequestID()

	ctrl, err := eng.Stage(reqID, "personalInfo")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	defer ctrl.Close()

	ctx := context.Background()
	if err := ctrl.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctrl.Edit("firstName", "amina")
	ctrl.Edit("lastName", "odhiambo")
	ctrl.Edit("phone1", "0712345678")
	ctrl.Flush(ctx)

	// A second controller over the same store sees the persisted draft.
	again, err := eng.Stage(reqID, "personalInfo")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	defer again.Close()
	if err := again.Load(ctx); err != nil {
		t.Fatalf("reload Load() error = %v", err)
	}
	if got := again.Draft().Values["firstName"]; got != "Amina" {
		t.Fatalf("firstName = %v, want formatted Amina", got)
	}
}

func TestEngineOfflineSubmitAdvancesLocalOnly(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	reqID := inspectform.NewRequestID()

	ctrl, err := eng.Stage(reqID, "croppingSystem")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	defer ctrl.Close()

	ctx := context.Background()
	if err := ctrl.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	ctrl.Edit("cropSystems", []string{"Intercropping"})
	ctrl.Edit("seasonsPerYear", "2")

	res, err := ctrl.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("Submit() errors = %v, want none", res.Errors)
	}
	if !res.Advance || !res.LocalOnly {
		t.Fatalf("Submit() = %+v, want local-only advance without a remote service", res)
	}
	if ctrl.State() != controller.StateSaveFailed {
		t.Fatalf("state = %v, want %v", ctrl.State(), controller.StateSaveFailed)
	}
}

func TestEngineUnknownStage(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	if _, err := eng.Stage(inspectform.NewRequestID(), "nope"); err == nil {
		t.Fatal("Stage() should reject an unknown stage id")
	}
}

func TestEngineNavigatorVisibility(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	nav, err := eng.Navigator(inspectform.NewRequestID())
	if err != nil {
		t.Fatalf("Navigator() error = %v", err)
	}
	visible, err := nav.VisibleStages(context.Background())
	if err != nil {
		t.Fatalf("VisibleStages() error = %v", err)
	}
	if len(visible) != eng.Registry().Len() {
		t.Fatalf("visible stages = %d, want all %d (built-ins declare no visibility rules)",
			len(visible), eng.Registry().Len())
	}
}
