package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harvestry/go-inspectform/pkg/draft"
	"github.com/harvestry/go-inspectform/pkg/schema"
	"github.com/harvestry/go-inspectform/pkg/triplestate"
)

type memStore struct {
	mu      sync.Mutex
	rows    map[string]map[string]any
	upserts int
	failing bool
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]map[string]any)}
}

func (s *memStore) key(stageID, requestID string) string { return stageID + "/" + requestID }

func (s *memStore) Get(_ context.Context, stageID, requestID string) (*draft.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[s.key(stageID, requestID)]
	if !ok {
		return nil, nil
	}
	d := draft.New(requestID, stageID)
	for k, v := range row {
		if v != nil {
			d.Values[k] = v
		}
	}
	d.LoadedFrom = draft.SourceLocal
	return d, nil
}

func (s *memStore) Upsert(_ context.Context, stageID, requestID string, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("disk full")
	}
	s.upserts++
	key := s.key(stageID, requestID)
	row, ok := s.rows[key]
	if !ok {
		row = make(map[string]any)
		s.rows[key] = row
	}
	for k, v := range values {
		row[k] = v
	}
	return nil
}

func (s *memStore) Delete(_ context.Context, stageID, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, s.key(stageID, requestID))
	return nil
}

type fakeRemote struct {
	mu         sync.Mutex
	records    map[string]map[string]any
	fetches    int
	saves      int
	fetchErr   error
	saveErr    error
	fetchDelay time.Duration

	// saveEntered/saveGate let a test hold a save in flight.
	saveEntered chan struct{}
	saveGate    chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]map[string]any)}
}

func (r *fakeRemote) key(requestID, stageID string) string { return stageID + "/" + requestID }

func (r *fakeRemote) FetchOne(_ context.Context, requestID, stageID string) (draft.RemoteFetch, error) {
	if r.fetchDelay > 0 {
		time.Sleep(r.fetchDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	if r.fetchErr != nil {
		return draft.RemoteFetch{}, r.fetchErr
	}
	record, ok := r.records[r.key(requestID, stageID)]
	if !ok {
		return draft.RemoteFetch{Found: false}, nil
	}
	return draft.RemoteFetch{Found: true, Values: record}, nil
}

func (r *fakeRemote) SaveOne(_ context.Context, requestID, stageID string, values map[string]any) (draft.RemoteSave, error) {
	if r.saveEntered != nil {
		r.saveEntered <- struct{}{}
	}
	if r.saveGate != nil {
		<-r.saveGate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return draft.RemoteSave{}, r.saveErr
	}
	key := r.key(requestID, stageID)
	op := draft.OperationInsert
	if _, exists := r.records[key]; exists {
		op = draft.OperationUpdate
	}
	stored := make(map[string]any, len(values))
	for k, v := range values {
		stored[k] = v
	}
	r.records[key] = stored
	return draft.RemoteSave{Operation: op}, nil
}

func contactStage() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "personalInfo",
		Order: 1,
		Fields: []schema.FieldDefinition{
			{Key: "firstName", Label: "First name", Type: schema.TypeShortText, Alphabet: schema.AlphabetLetters, Required: true},
			{Key: "phone1", Label: "Phone", Type: schema.TypeNumericInteger, Required: true, UniquenessGroup: []string{"phone1", "familyPhone"}},
			{Key: "familyPhone", Label: "Family phone", Type: schema.TypeNumericInteger, UniquenessGroup: []string{"phone1", "familyPhone"}},
		},
	}
}

func riskStage() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "profitRisk",
		Order: 8,
		Fields: []schema.FieldDefinition{
			{
				Key: "riskPresent", Label: "Risks present", Type: schema.TypeTripleState,
				BoolEncoding: triplestate.EncodingYesNoString, Required: true,
				ClearsOnNo: []string{"riskDescription", "riskSolution", "riskManageable", "riskWorthIt"},
			},
			{Key: "riskDescription", Label: "Risk description", Type: schema.TypeFreeText, RequiredRule: `riskPresent == "Yes"`},
			{Key: "riskSolution", Label: "Proposed solution", Type: schema.TypeFreeText, RequiredRule: `riskPresent == "Yes"`},
			{Key: "riskManageable", Label: "Risk manageable", Type: schema.TypeTripleState, BoolEncoding: triplestate.EncodingYesNoString, RequiredRule: `riskPresent == "Yes"`},
			{Key: "riskWorthIt", Label: "Worth the risk", Type: schema.TypeTripleState, BoolEncoding: triplestate.EncodingYesNoString, RequiredRule: `riskPresent == "Yes"`},
		},
	}
}

func newTestController(t *testing.T, stage schema.StageDefinition, store *memStore, remote *fakeRemote) *Controller {
	t.Helper()
	c, err := New(stage, "req-1", store, remote, WithDebounce(5*time.Millisecond))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestLoadEmptyEverywhere(t *testing.T) {
	t.Parallel()

	c := newTestController(t, contactStage(), newMemStore(), newFakeRemote())
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	d := c.Draft()
	if d.ExistsRemotely {
		t.Fatal("empty draft must not claim remote existence")
	}
	if len(d.Values) != 0 {
		t.Fatalf("expected empty values, got %v", d.Values)
	}
	if c.State() != StateClean {
		t.Fatalf("expected clean state, got %q", c.State())
	}
}

func TestLoadPrefersRemote(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.rows["personalInfo/req-1"] = map[string]any{"firstName": "Stale"}
	remote := newFakeRemote()
	remote.records["personalInfo/req-1"] = map[string]any{"firstName": "Asha"}

	c := newTestController(t, contactStage(), store, remote)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	d := c.Draft()
	if d.Values["firstName"] != "Asha" {
		t.Fatalf("remote must win on successful fetch, got %v", d.Values["firstName"])
	}
	if !d.ExistsRemotely || d.LoadedFrom != draft.SourceRemote {
		t.Fatalf("unexpected provenance: %+v", d)
	}
	// The fetched record overwrites the local row.
	if store.rows["personalInfo/req-1"]["firstName"] != "Asha" {
		t.Fatalf("local store not reconciled: %v", store.rows)
	}
}

func TestLoadFallsBackToLocalOnTransportFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.rows["personalInfo/req-1"] = map[string]any{"firstName": "Asha"}
	remote := newFakeRemote()
	remote.fetchErr = errors.New("connection refused")

	c := newTestController(t, contactStage(), store, remote)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	d := c.Draft()
	if d.Values["firstName"] != "Asha" {
		t.Fatalf("expected local fallback, got %v", d.Values)
	}
	if d.ExistsRemotely {
		t.Fatal("transport failure must not set ExistsRemotely")
	}
	if d.LoadedFrom != draft.SourceLocal {
		t.Fatalf("expected local provenance, got %q", d.LoadedFrom)
	}
}

func TestLoadSingleFlight(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.fetchDelay = 20 * time.Millisecond
	c := newTestController(t, contactStage(), newMemStore(), remote)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Load(context.Background())
		}()
	}
	wg.Wait()

	if remote.fetches != 1 {
		t.Fatalf("expected a single fetch, got %d", remote.fetches)
	}

	// Loaded guard holds until an explicit reload.
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if remote.fetches != 1 {
		t.Fatalf("re-entry must not refetch, got %d", remote.fetches)
	}
	if err := c.Reload("req-2"); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if remote.fetches != 2 {
		t.Fatalf("reload must allow a fresh fetch, got %d", remote.fetches)
	}
}

func TestEditDebouncesPersist(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	c := newTestController(t, contactStage(), store, newFakeRemote())
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	for _, keystroke := range []string{"A", "As", "Ash", "Asha"} {
		if err := c.Edit("firstName", keystroke); err != nil {
			t.Fatalf("Edit returned error: %v", err)
		}
	}
	if c.State() != StateDirty {
		t.Fatalf("expected dirty state, got %q", c.State())
	}

	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	upserts := store.upserts
	value := store.rows["personalInfo/req-1"]["firstName"]
	store.mu.Unlock()
	if upserts != 1 {
		t.Fatalf("rapid edits must coalesce into one persisted write, got %d", upserts)
	}
	if value != "Asha" {
		t.Fatalf("persisted value %v, want %q", value, "Asha")
	}
}

func TestEditUniquenessBothSides(t *testing.T) {
	t.Parallel()

	c := newTestController(t, contactStage(), newMemStore(), newFakeRemote())
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if err := c.Edit("phone1", "712345678"); err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	if err := c.Edit("familyPhone", "712345678"); err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}

	errs := c.Errors()
	if errs["phone1"] != "values cannot be the same" || errs["familyPhone"] != "values cannot be the same" {
		t.Fatalf("both group members must report the collision, got %v", errs)
	}

	if err := c.Edit("familyPhone", "719876543"); err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	errs = c.Errors()
	if _, bad := errs["phone1"]; bad {
		t.Fatalf("resolving from one side must clear the peer's error, got %v", errs)
	}
	if _, bad := errs["familyPhone"]; bad {
		t.Fatalf("edited field error must clear, got %v", errs)
	}
}

func TestTripleStateFlipClearsDependentsAtomically(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	c := newTestController(t, riskStage(), store, newFakeRemote())
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if err := c.Edit("riskPresent", "Yes"); err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	if err := c.Edit("riskDescription", "hail damage"); err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	result, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected errors for unfilled dependents")
	}

	if err := c.Edit("riskPresent", "No"); err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	d := c.Draft()
	for _, dep := range []string{"riskDescription", "riskSolution", "riskManageable", "riskWorthIt"} {
		if _, present := d.Values[dep]; present {
			t.Fatalf("dependent %q value survived the flip", dep)
		}
	}
	for key := range c.Errors() {
		if key != "riskPresent" {
			t.Fatalf("dependent error %q survived the flip", key)
		}
	}

	// Flipping back must not resurrect cleared values.
	if err := c.Edit("riskPresent", "Yes"); err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	d = c.Draft()
	if _, present := d.Values["riskDescription"]; present {
		t.Fatal("cleared value resurrected on flip back to Yes")
	}

	// The persisted row clears too.
	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	stored := store.rows["profitRisk/req-1"]["riskDescription"]
	store.mu.Unlock()
	if stored != nil {
		t.Fatalf("stored dependent not cleared: %v", stored)
	}
}

func TestSubmitBlocksOnValidationWithoutNetworkCall(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	c := newTestController(t, contactStage(), newMemStore(), remote)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	result, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if len(result.Errors) == 0 || result.Advance {
		t.Fatalf("expected blocked submit, got %+v", result)
	}
	if remote.saves != 0 {
		t.Fatalf("validation failure must never reach the network, saves=%d", remote.saves)
	}
	if c.State() != StateDirty {
		t.Fatalf("expected dirty state, got %q", c.State())
	}
}

func TestSubmitInsertThenUpdate(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	advanced := 0
	c, err := New(contactStage(), "req-1", newMemStore(), remote,
		WithDebounce(5*time.Millisecond), WithAdvance(func() { advanced++ }))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(c.Close)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	c.Edit("firstName", "Asha")
	c.Edit("phone1", "712345678")

	result, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !result.Saved || result.Operation != draft.OperationInsert {
		t.Fatalf("expected insert, got %+v", result)
	}
	if !c.Draft().ExistsRemotely {
		t.Fatal("successful save must set ExistsRemotely")
	}
	if c.State() != StateSaved {
		t.Fatalf("expected saved state, got %q", c.State())
	}

	result, err = c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.Operation != draft.OperationUpdate {
		t.Fatalf("second save must be an update, got %+v", result)
	}
	if advanced != 2 {
		t.Fatalf("expected 2 advances, got %d", advanced)
	}
}

func TestSubmitRemoteFailureStillAdvances(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.saveErr = errors.New("gateway timeout")
	store := newMemStore()
	c := newTestController(t, contactStage(), store, remote)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	c.Edit("firstName", "Asha")
	c.Edit("phone1", "712345678")

	result, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !result.Advance || !result.LocalOnly || result.Saved {
		t.Fatalf("expected local-only advance, got %+v", result)
	}
	if c.State() != StateSaveFailed {
		t.Fatalf("expected saveFailed state, got %q", c.State())
	}
	d := c.Draft()
	if d.ExistsRemotely {
		t.Fatal("failed save must leave ExistsRemotely=false so the next save inserts")
	}
	if store.rows["personalInfo/req-1"]["firstName"] != "Asha" {
		t.Fatal("stage must persist locally despite remote failure")
	}
}

func TestSubmitResultDiscardedAfterReload(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	c := newTestController(t, contactStage(), newMemStore(), remote)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	c.Edit("firstName", "Asha")
	c.Edit("phone1", "712345678")

	remote.saveEntered = make(chan struct{})
	remote.saveGate = make(chan struct{})

	done := make(chan SubmitResult, 1)
	go func() {
		result, _ := c.Submit(context.Background())
		done <- result
	}()

	// Rebind the controller while the save is in flight, then let the
	// save complete.
	<-remote.saveEntered
	if err := c.Reload("req-9"); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	close(remote.saveGate)

	result := <-done
	if !result.Stale {
		t.Fatalf("late result must be discarded, got %+v", result)
	}
	if c.Draft().ExistsRemotely {
		t.Fatal("stale save result must not mark the rebound draft as remote")
	}
}
