package draft

import (
	"context"
)

// Source records where a draft's values were hydrated from on the most
// recent load.
type Source string

const (
	SourceNone   Source = "none"
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Draft is the current, possibly-unsaved value set for one stage of one
// inspection request. Exactly one draft exists per (StageID, RequestID)
// pair. Values hold the canonical in-memory forms: strings for text and
// numeric fields, triplestate literals for Yes/No fields, []string for
// multi-select and image lists, and GeoPoint for coordinates.
type Draft struct {
	RequestID string
	StageID   string
	Values    map[string]any

	// ExistsRemotely is set only from a successful remote fetch or save
	// response. Local presence never implies it, since a local row can
	// originate from an earlier failed-sync session.
	ExistsRemotely bool

	LoadedFrom Source
}

// New returns an empty draft for the pair.
func New(requestID, stageID string) *Draft {
	return &Draft{
		RequestID:  requestID,
		StageID:    stageID,
		Values:     make(map[string]any),
		LoadedFrom: SourceNone,
	}
}

// Clone returns a deep-enough copy: the Values map is copied, slice values
// are re-sliced so callers cannot alias the original backing arrays.
func (d *Draft) Clone() *Draft {
	out := &Draft{
		RequestID:      d.RequestID,
		StageID:        d.StageID,
		Values:         make(map[string]any, len(d.Values)),
		ExistsRemotely: d.ExistsRemotely,
		LoadedFrom:     d.LoadedFrom,
	}
	for k, v := range d.Values {
		if s, ok := v.([]string); ok {
			cp := make([]string, len(s))
			copy(cp, s)
			out.Values[k] = cp
			continue
		}
		out.Values[k] = v
	}
	return out
}

// Store is the durable local draft store, keyed by (stageID, requestID).
// Get returns (nil, nil) when no row exists. Upsert inserts a row with
// audit timestamps when absent and otherwise updates only the supplied
// keys, refreshing the update timestamp.
type Store interface {
	Get(ctx context.Context, stageID, requestID string) (*Draft, error)
	Upsert(ctx context.Context, stageID, requestID string, values map[string]any) error
	Delete(ctx context.Context, stageID, requestID string) error
}

// RemoteFetch is the outcome of a remote read. Found=false is the normal
// "no remote draft yet, create on first save" signal, never an error.
type RemoteFetch struct {
	Found  bool
	Values map[string]any
}

// SaveOperation reports whether the backend inserted or updated the record.
type SaveOperation string

const (
	OperationInsert SaveOperation = "insert"
	OperationUpdate SaveOperation = "update"
)

// RemoteSave is the outcome of a successful remote write.
type RemoteSave struct {
	Operation SaveOperation
	Echoed    map[string]any
}

// SyncClient reconciles drafts against the backend system of record.
// FetchOne returns Found=false for a missing record and an error only for
// transport-level failures, in which case the caller falls back to the
// local store without asserting absence.
type SyncClient interface {
	FetchOne(ctx context.Context, requestID, stageID string) (RemoteFetch, error)
	SaveOne(ctx context.Context, requestID, stageID string, values map[string]any) (RemoteSave, error)
}
