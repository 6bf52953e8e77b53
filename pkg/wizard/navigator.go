// Package wizard holds the ordered stage sequence for one inspection
// request, computes which stages are visible given prior answers, and
// exposes the active-stage indicator. Drafts are looked up fresh by each
// stage through the shared store rather than threaded hand-to-hand through
// navigation.
package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/harvestry/go-inspectform/pkg/draft"
	"github.com/harvestry/go-inspectform/pkg/predicate"
	"github.com/harvestry/go-inspectform/pkg/predicate/expr"
	"github.com/harvestry/go-inspectform/pkg/schema"
)

// NewRequestID mints the stable correlation key shared by all stage drafts
// of one inspection.
func NewRequestID() string {
	return uuid.NewString()
}

// Option configures a navigator.
type Option func(*Navigator)

// WithEvaluator overrides the predicate evaluator.
func WithEvaluator(eval predicate.Evaluator) Option {
	return func(n *Navigator) {
		if eval != nil {
			n.eval = eval
		}
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// Indicator is the 1-based active-stage position over the visible total.
type Indicator struct {
	Position int
	Total    int
}

// Navigator tracks wizard progress for one request.
type Navigator struct {
	reg    *schema.Registry
	store  draft.Store
	eval   predicate.Evaluator
	logger *slog.Logger

	mu        sync.Mutex
	requestID string
	pos       int
}

// New builds a navigator bound to one requestID.
func New(reg *schema.Registry, store draft.Store, requestID string, opts ...Option) (*Navigator, error) {
	if reg == nil || store == nil {
		return nil, fmt.Errorf("wizard: registry and store are required")
	}
	if requestID == "" {
		return nil, fmt.Errorf("wizard: request id is required")
	}
	n := &Navigator{
		reg:       reg,
		store:     store,
		eval:      expr.New(),
		logger:    slog.Default(),
		requestID: requestID,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// RequestID returns the bound correlation key.
func (n *Navigator) RequestID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requestID
}

// priorAnswers merges the stored values of every stage draft, earlier
// stages first so later duplicates win. Store read failures degrade to a
// partial answer set rather than failing navigation.
func (n *Navigator) priorAnswers(ctx context.Context, requestID string) map[string]any {
	answers := make(map[string]any)
	for _, stage := range n.reg.Stages() {
		d, err := n.store.Get(ctx, stage.ID, requestID)
		if err != nil {
			n.logger.Warn("reading stage draft for visibility failed", "stage", stage.ID, "request", requestID, "error", err)
			continue
		}
		if d == nil {
			continue
		}
		for k, v := range d.Values {
			answers[k] = v
		}
	}
	return answers
}

// VisibleStages evaluates each stage's visibility rule against the merged
// prior answers and returns the surviving sequence in wizard order.
func (n *Navigator) VisibleStages(ctx context.Context) ([]schema.StageDefinition, error) {
	n.mu.Lock()
	requestID := n.requestID
	n.mu.Unlock()

	answers := n.priorAnswers(ctx, requestID)
	var visible []schema.StageDefinition
	for _, stage := range n.reg.Stages() {
		if stage.VisibleRule != "" {
			ok, err := n.eval.Eval(stage.VisibleRule, answers)
			if err != nil {
				return nil, fmt.Errorf("wizard: stage %q visibility rule: %w", stage.ID, err)
			}
			if !ok {
				continue
			}
		}
		visible = append(visible, stage)
	}
	return visible, nil
}

// Active returns the current stage.
func (n *Navigator) Active(ctx context.Context) (schema.StageDefinition, error) {
	visible, err := n.VisibleStages(ctx)
	if err != nil {
		return schema.StageDefinition{}, err
	}
	if len(visible) == 0 {
		return schema.StageDefinition{}, fmt.Errorf("wizard: no visible stages")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pos >= len(visible) {
		n.pos = len(visible) - 1
	}
	return visible[n.pos], nil
}

// Indicator reports the active position over the visible total, 1-based.
func (n *Navigator) Indicator(ctx context.Context) (Indicator, error) {
	visible, err := n.VisibleStages(ctx)
	if err != nil {
		return Indicator{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	pos := n.pos
	if pos >= len(visible) {
		pos = len(visible) - 1
	}
	return Indicator{Position: pos + 1, Total: len(visible)}, nil
}

// Advance moves to the next visible stage. The second return is false when
// the active stage was already the last one.
func (n *Navigator) Advance(ctx context.Context) (schema.StageDefinition, bool, error) {
	visible, err := n.VisibleStages(ctx)
	if err != nil {
		return schema.StageDefinition{}, false, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pos+1 >= len(visible) {
		return schema.StageDefinition{}, false, nil
	}
	n.pos++
	return visible[n.pos], true, nil
}

// Back moves to the previous visible stage when one exists.
func (n *Navigator) Back(ctx context.Context) (schema.StageDefinition, bool, error) {
	visible, err := n.VisibleStages(ctx)
	if err != nil {
		return schema.StageDefinition{}, false, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pos == 0 || len(visible) == 0 {
		return schema.StageDefinition{}, false, nil
	}
	n.pos--
	if n.pos >= len(visible) {
		n.pos = len(visible) - 1
	}
	return visible[n.pos], true, nil
}

// Complete deletes every stage draft of the request on terminal
// confirmation of the overall inspection. Drafts are never deleted
// implicitly mid-wizard.
func (n *Navigator) Complete(ctx context.Context) error {
	n.mu.Lock()
	requestID := n.requestID
	n.mu.Unlock()
	return n.deleteAll(ctx, requestID)
}

// Reset deletes every stage draft and rewinds to the first stage.
func (n *Navigator) Reset(ctx context.Context) error {
	n.mu.Lock()
	requestID := n.requestID
	n.pos = 0
	n.mu.Unlock()
	return n.deleteAll(ctx, requestID)
}

func (n *Navigator) deleteAll(ctx context.Context, requestID string) error {
	for _, stage := range n.reg.Stages() {
		if err := n.store.Delete(ctx, stage.ID, requestID); err != nil {
			return fmt.Errorf("wizard: delete draft %s/%s: %w", stage.ID, requestID, err)
		}
	}
	return nil
}
