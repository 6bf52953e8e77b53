// Package controller orchestrates the lifecycle of one stage instance:
// remote-first load with local fallback, live edits with debounced local
// persistence, aggregate validation, and submit with forward progress that
// transient backend unavailability cannot block. The lifecycle is an
// explicit state machine rather than ad hoc guard flags:
//
//	Loading -> Clean | Dirty -> Validating -> Saving -> Saved | SaveFailed
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harvestry/go-inspectform/pkg/draft"
	"github.com/harvestry/go-inspectform/pkg/predicate"
	"github.com/harvestry/go-inspectform/pkg/predicate/expr"
	"github.com/harvestry/go-inspectform/pkg/schema"
	"github.com/harvestry/go-inspectform/pkg/triplestate"
	"github.com/harvestry/go-inspectform/pkg/validation"
)

// State names one node of the stage lifecycle.
type State string

const (
	StateLoading    State = "loading"
	StateClean      State = "clean"
	StateDirty      State = "dirty"
	StateValidating State = "validating"
	StateSaving     State = "saving"
	StateSaved      State = "saved"
	StateSaveFailed State = "saveFailed"
)

const defaultDebounce = 500 * time.Millisecond

// Option configures a controller.
type Option func(*Controller)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebounce overrides the local-persist debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithEvaluator overrides the predicate evaluator.
func WithEvaluator(eval predicate.Evaluator) Option {
	return func(c *Controller) {
		if eval != nil {
			c.eval = eval
		}
	}
}

// WithAdvance registers the hook invoked when a submit clears validation,
// typically the wizard navigator's Advance.
func WithAdvance(fn func()) Option {
	return func(c *Controller) {
		c.onAdvance = fn
	}
}

// Controller owns the draft for one (stageID, requestID) pair. It is the
// single writer for that pair's local store row.
type Controller struct {
	stage  schema.StageDefinition
	store  draft.Store
	remote draft.SyncClient
	eval   predicate.Evaluator
	logger *slog.Logger

	debounce  time.Duration
	onAdvance func()

	mu        sync.Mutex
	requestID string
	state     State
	d         *draft.Draft
	fieldErrs map[string]string

	// load guard: loading suppresses duplicate fetch/hydrate cycles while
	// one is in flight, loaded keeps it suppressed until Reload or
	// teardown. gen invalidates in-flight results after a Reload.
	loading bool
	loaded  bool
	gen     int

	timer   *time.Timer
	pending map[string]any
}

// New builds a controller for one stage instance.
func New(stage schema.StageDefinition, requestID string, store draft.Store, remote draft.SyncClient, opts ...Option) (*Controller, error) {
	if requestID == "" {
		return nil, fmt.Errorf("controller: request id is required")
	}
	if store == nil || remote == nil {
		return nil, fmt.Errorf("controller: store and sync client are required")
	}
	c := &Controller{
		stage:     stage,
		store:     store,
		remote:    remote,
		eval:      expr.New(),
		logger:    slog.Default(),
		debounce:  defaultDebounce,
		requestID: requestID,
		state:     StateLoading,
		d:         draft.New(requestID, stage.ID),
		fieldErrs: make(map[string]string),
		pending:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Load hydrates the draft, remote-first with local fallback. Re-entering
// while a load is in flight, or after one completed, is a no-op; the guard
// resets only via Reload.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.loading || c.loaded {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	c.state = StateLoading
	gen := c.gen
	requestID := c.requestID
	c.mu.Unlock()

	fetch, fetchErr := c.remote.FetchOne(ctx, requestID, c.stage.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// Reload happened while the fetch was in flight; this result no
		// longer targets the active (stageID, requestID).
		return nil
	}
	c.loading = false
	c.loaded = true

	switch {
	case fetchErr == nil && fetch.Found:
		d := draft.New(requestID, c.stage.ID)
		d.Values = fetch.Values
		d.ExistsRemotely = true
		d.LoadedFrom = draft.SourceRemote
		c.d = d
		if err := c.store.Upsert(ctx, c.stage.ID, requestID, fetch.Values); err != nil {
			c.logger.Warn("persist of fetched draft failed", "stage", c.stage.ID, "request", requestID, "error", err)
		}
	default:
		if fetchErr != nil {
			c.logger.Warn("remote fetch failed, falling back to local draft", "stage", c.stage.ID, "request", requestID, "error", fetchErr)
		}
		local, err := c.store.Get(ctx, c.stage.ID, requestID)
		if err != nil {
			c.logger.Warn("local draft read failed", "stage", c.stage.ID, "request", requestID, "error", err)
		}
		if local != nil {
			c.d = local
		} else {
			c.d = draft.New(requestID, c.stage.ID)
		}
	}

	c.state = StateClean
	return nil
}

// Reload rebinds the controller to a request, resetting the load guard and
// invalidating any in-flight load or save results.
func (c *Controller) Reload(requestID string) error {
	if requestID == "" {
		return fmt.Errorf("controller: request id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.requestID = requestID
	c.loading = false
	c.loaded = false
	c.state = StateLoading
	c.d = draft.New(requestID, c.stage.ID)
	c.fieldErrs = make(map[string]string)
	c.pending = make(map[string]any)
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return nil
}

// Edit applies one field change: format and validate the edited field,
// re-validate every member of its uniqueness group, atomically clear
// dependents when a controlling Yes/No flips to No, and schedule a
// debounced local persist. Editing never blocks on persistence.
func (c *Controller) Edit(key string, raw any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	field, ok := c.stage.Field(key)
	if !ok {
		return fmt.Errorf("controller: stage %q has no field %q", c.stage.ID, key)
	}

	required, err := validation.Required(c.stage, field, c.d.Values, c.eval)
	if err != nil {
		return err
	}
	value, ferr := validation.Validate(raw, field, c.d.Values, required)
	c.d.Values[key] = value
	c.pending[key] = value
	c.setFieldError(key, ferr)

	c.revalidateGroupPeers(field)

	if field.Type == schema.TypeTripleState {
		if v, _ := triplestate.Parse(value); v == triplestate.No {
			c.clearDependents(field.ClearsOnNo)
		}
	}
	if field.Type == schema.TypeMultiSelect && field.OtherOption != "" && field.OtherKey != "" {
		if selected, _ := value.([]string); !containsString(selected, field.OtherOption) {
			c.clearDependents([]string{field.OtherKey})
		}
	}

	c.state = StateDirty
	c.scheduleFlushLocked()
	return nil
}

// revalidateGroupPeers re-runs validation for every field that shares a
// uniqueness group with the edited field, because a collision can be
// introduced or resolved from either side.
func (c *Controller) revalidateGroupPeers(edited schema.FieldDefinition) {
	for _, peer := range c.stage.Fields {
		if peer.Key == edited.Key || !sharesGroup(peer, edited) {
			continue
		}
		current, present := c.d.Values[peer.Key]
		if !present {
			continue
		}
		required, err := validation.Required(c.stage, peer, c.d.Values, c.eval)
		if err != nil {
			c.logger.Warn("required rule failed during group revalidation", "field", peer.Key, "error", err)
			continue
		}
		_, ferr := validation.Validate(current, peer, c.d.Values, required)
		c.setFieldError(peer.Key, ferr)
	}
}

// clearDependents removes values and errors for the listed keys in the same
// update, and queues NULLs so the debounced persist clears the stored
// columns too. A partial clear (values without errors, or vice versa) is
// an invariant violation.
func (c *Controller) clearDependents(keys []string) {
	for _, dep := range keys {
		delete(c.d.Values, dep)
		delete(c.fieldErrs, dep)
		c.pending[dep] = nil
	}
}

func (c *Controller) setFieldError(key string, ferr *validation.FieldError) {
	if ferr == nil {
		delete(c.fieldErrs, key)
		return
	}
	c.fieldErrs[ferr.Key] = ferr.Message
}

func sharesGroup(a, b schema.FieldDefinition) bool {
	for _, member := range a.UniquenessGroup {
		if member == b.Key {
			return true
		}
	}
	for _, member := range b.UniquenessGroup {
		if member == a.Key {
			return true
		}
	}
	return false
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func (c *Controller) scheduleFlushLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() { c.Flush(context.Background()) })
}

// Flush persists the pending edits immediately. The debounce timer calls it;
// tests and teardown paths may call it directly. Persistence failures are
// logged, never fatal: the next edit retries naturally.
func (c *Controller) Flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.pending
	c.pending = make(map[string]any)
	requestID := c.requestID
	c.mu.Unlock()

	if err := c.store.Upsert(ctx, c.stage.ID, requestID, batch); err != nil {
		c.logger.Warn("local draft persist failed", "stage", c.stage.ID, "request", requestID, "error", err)
	}
}

// SubmitResult reports the outcome of a forward-navigation attempt.
type SubmitResult struct {
	// Errors is non-empty when validation blocked the submit.
	Errors []validation.FieldError
	// Advance is true when the wizard may move forward.
	Advance bool
	// Saved is true when the backend accepted the record.
	Saved bool
	// LocalOnly warns that the stage persisted locally but not remotely.
	LocalOnly bool
	// Operation is the backend's insert/update report when Saved.
	Operation draft.SaveOperation
	// Stale marks a result discarded because the controller was rebound
	// while the save was in flight.
	Stale bool
}

// Submit validates every field against current values and, when clean,
// saves the stage remotely. Validation failure keeps the stage Dirty and
// never reaches the network. A remote failure still advances: forward
// progress must not be blocked by transient backend unavailability, and
// the draft stays ExistsRemotely=false so the next save retries as an
// insert.
func (c *Controller) Submit(ctx context.Context) (SubmitResult, error) {
	c.mu.Lock()
	c.state = StateValidating
	gen := c.gen
	requestID := c.requestID
	values := c.d.Clone().Values
	c.mu.Unlock()

	normalized, errs, err := validation.ValidateStage(c.stage, values, c.eval)
	if err != nil {
		return SubmitResult{}, err
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return SubmitResult{Stale: true}, nil
	}
	if len(errs) > 0 {
		c.state = StateDirty
		c.fieldErrs = make(map[string]string, len(errs))
		for _, ferr := range errs {
			c.fieldErrs[ferr.Key] = ferr.Message
		}
		c.mu.Unlock()
		return SubmitResult{Errors: errs}, nil
	}
	c.state = StateSaving
	for k, v := range normalized {
		c.d.Values[k] = v
		c.pending[k] = v
	}
	c.fieldErrs = make(map[string]string)
	c.mu.Unlock()

	c.Flush(ctx)

	save, saveErr := c.remote.SaveOne(ctx, requestID, c.stage.ID, normalized)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || requestID != c.requestID {
		// Navigating away does not cancel the call; the late result no
		// longer targets the active pair and is discarded.
		return SubmitResult{Stale: true}, nil
	}

	if saveErr != nil {
		c.state = StateSaveFailed
		c.logger.Warn("remote save failed, stage saved locally only", "stage", c.stage.ID, "request", requestID, "error", saveErr)
		if c.onAdvance != nil {
			c.onAdvance()
		}
		return SubmitResult{Advance: true, LocalOnly: true}, nil
	}

	c.state = StateSaved
	c.d.ExistsRemotely = true
	if c.onAdvance != nil {
		c.onAdvance()
	}
	return SubmitResult{Advance: true, Saved: true, Operation: save.Operation}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draft returns a copy of the current draft.
func (c *Controller) Draft() *draft.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.d.Clone()
}

// Errors returns a copy of the current field-error map.
func (c *Controller) Errors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.fieldErrs))
	for k, v := range c.fieldErrs {
		out[k] = v
	}
	return out
}

// Close stops the debounce timer and flushes any pending edits.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.Flush(context.Background())
}
