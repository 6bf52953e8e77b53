// Package inspectform wires the inspection wizard together: stage schema,
// local SQLite draft store, remote sync client, per-stage controllers, and
// the navigator. Library users who need finer control can assemble the
// subpackages directly; this package is the batteries-included entry point.
package inspectform

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/harvestry/go-inspectform/internal/store/sqlite"
	"github.com/harvestry/go-inspectform/internal/syncclient"
	"github.com/harvestry/go-inspectform/pkg/controller"
	"github.com/harvestry/go-inspectform/pkg/draft"
	"github.com/harvestry/go-inspectform/pkg/schema"
	"github.com/harvestry/go-inspectform/pkg/stages"
	"github.com/harvestry/go-inspectform/pkg/wizard"
)

// NewRequestID mints an identifier for a fresh inspection request.
func NewRequestID() string { return wizard.NewRequestID() }

// Option configures an Engine.
type Option func(*settings)

type settings struct {
	registry   *schema.Registry
	storePath  string
	store      draft.Store
	syncURL    string
	remote     draft.SyncClient
	httpClient *http.Client
	logger     *slog.Logger
	debounce   time.Duration
}

// WithRegistry replaces the built-in eleven-stage schema.
func WithRegistry(reg *schema.Registry) Option {
	return func(s *settings) { s.registry = reg }
}

// WithStorePath opens (or creates) the SQLite draft database at path.
func WithStorePath(path string) Option {
	return func(s *settings) { s.storePath = path }
}

// WithStore injects a prebuilt draft store, bypassing SQLite entirely.
func WithStore(store draft.Store) Option {
	return func(s *settings) { s.store = store }
}

// WithSyncBaseURL points the engine at the remote inspection service. When
// neither this nor WithSyncClient is set the engine runs offline: drafts are
// kept locally and submits advance with a local-only warning.
func WithSyncBaseURL(baseURL string) Option {
	return func(s *settings) { s.syncURL = baseURL }
}

// WithSyncClient injects a prebuilt remote client.
func WithSyncClient(remote draft.SyncClient) Option {
	return func(s *settings) { s.remote = remote }
}

// WithHTTPClient sets the HTTP client used by the default sync client,
// typically to bound request timeouts.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *settings) { s.httpClient = httpClient }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithDebounce overrides the quiet period before edits are flushed to the
// local store.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) { s.debounce = d }
}

// Engine owns the shared plumbing behind stage controllers and navigators.
type Engine struct {
	registry *schema.Registry
	store    draft.Store
	remote   draft.SyncClient
	logger   *slog.Logger
	debounce time.Duration

	ownedStore *sqlite.Store
}

// New builds an Engine. Without options it uses the built-in stage schema,
// an on-disk store at "inspectform.db", and no remote service.
func New(opts ...Option) (*Engine, error) {
	s := settings{
		storePath: "inspectform.db",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	reg := s.registry
	if reg == nil {
		var err error
		reg, err = stages.Registry()
		if err != nil {
			return nil, fmt.Errorf("inspectform: built-in schema: %w", err)
		}
	}

	e := &Engine{
		registry: reg,
		store:    s.store,
		remote:   s.remote,
		logger:   s.logger,
		debounce: s.debounce,
	}

	if e.store == nil {
		st, err := sqlite.New(s.storePath, reg, sqlite.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		e.store = st
		e.ownedStore = st
	}

	if e.remote == nil {
		if s.syncURL != "" {
			clientOpts := []syncclient.Option{syncclient.WithLogger(s.logger)}
			if s.httpClient != nil {
				clientOpts = append(clientOpts, syncclient.WithHTTPClient(s.httpClient))
			}
			e.remote = syncclient.New(s.syncURL, reg, clientOpts...)
		} else {
			e.remote = offlineClient{}
		}
	}

	return e, nil
}

// Registry returns the stage schema the engine was built with.
func (e *Engine) Registry() *schema.Registry { return e.registry }

// Stage builds a controller bound to one stage of one inspection request.
// Each controller owns its own debounce timer and load guard; callers
// typically keep one per visible screen.
func (e *Engine) Stage(requestID, stageID string, opts ...controller.Option) (*controller.Controller, error) {
	stage, ok := e.registry.Stage(stageID)
	if !ok {
		return nil, fmt.Errorf("inspectform: unknown stage %q", stageID)
	}
	base := []controller.Option{controller.WithLogger(e.logger)}
	if e.debounce > 0 {
		base = append(base, controller.WithDebounce(e.debounce))
	}
	return controller.New(stage, requestID, e.store, e.remote, append(base, opts...)...)
}

// Navigator builds a wizard navigator bound to one inspection request.
func (e *Engine) Navigator(requestID string) (*wizard.Navigator, error) {
	return wizard.New(e.registry, e.store, requestID, wizard.WithLogger(e.logger))
}

// Close releases the engine's own resources. Stores and clients injected by
// the caller are left open.
func (e *Engine) Close() error {
	if e.ownedStore != nil {
		return e.ownedStore.Close()
	}
	return nil
}

// offlineClient stands in when no remote service is configured. Fetches and
// saves report the service unavailable, which the controller degrades to
// local-only drafts.
type offlineClient struct{}

func (offlineClient) FetchOne(context.Context, string, string) (draft.RemoteFetch, error) {
	return draft.RemoteFetch{}, fmt.Errorf("inspectform: no remote service configured: %w", syncclient.ErrUnavailable)
}

func (offlineClient) SaveOne(context.Context, string, string, map[string]any) (draft.RemoteSave, error) {
	return draft.RemoteSave{}, fmt.Errorf("inspectform: no remote service configured: %w", syncclient.ErrUnavailable)
}
