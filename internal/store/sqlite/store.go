// Package sqlite is the durable local draft store. Each stage gets its own
// table generated from the schema registry: primary key request_id, one TEXT
// column per field, and server-style audit timestamps. Collection-valued
// fields land as their reversible string encodings; Yes/No fields land in
// the field's declared boolean encoding.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harvestry/go-inspectform/pkg/draft"
	"github.com/harvestry/go-inspectform/pkg/schema"
)

// Store implements draft.Store on a SQLite database.
type Store struct {
	db     *sql.DB
	reg    *schema.Registry
	logger *slog.Logger
}

var _ draft.Store = (*Store)(nil)

// Option configures the store.
type Option func(*Store)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New opens (or creates) the database at path and ensures one table per
// registered stage exists.
func New(path string, reg *schema.Registry, opts ...Option) (*Store, error) {
	if reg == nil {
		return nil, fmt.Errorf("sqlite: registry is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL mode: %w", err)
	}

	store := &Store{db: db, reg: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	for _, stage := range s.reg.Stages() {
		var cols strings.Builder
		for _, field := range stage.Fields {
			fmt.Fprintf(&cols, "%q TEXT,\n\t\t\t", field.Key)
		}
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			request_id TEXT PRIMARY KEY,
			%screated_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, stage.ID, cols.String())
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create table %q: %w", stage.ID, err)
		}
		s.logger.Debug("ensured stage table", "stage", stage.ID, "fields", len(stage.Fields))
	}
	return nil
}

// Get loads the draft row for (stageID, requestID), returning (nil, nil)
// when no row exists. Values come back in canonical in-memory form;
// NULL columns stay absent from the map.
func (s *Store) Get(ctx context.Context, stageID, requestID string) (*draft.Draft, error) {
	stage, ok := s.reg.Stage(stageID)
	if !ok {
		return nil, fmt.Errorf("sqlite: unknown stage %q", stageID)
	}

	keys := stage.FieldKeys()
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = fmt.Sprintf("%q", k)
	}
	query := fmt.Sprintf("SELECT %s FROM %q WHERE request_id = ?", strings.Join(quoted, ", "), stageID)

	row := s.db.QueryRowContext(ctx, query, requestID)
	raw := make([]sql.NullString, len(keys))
	dest := make([]any, len(keys))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: get %s/%s: %w", stageID, requestID, err)
	}

	codec := draft.NewCodec(stage)
	record := make(map[string]any, len(keys))
	for i, k := range keys {
		if raw[i].Valid {
			record[k] = raw[i].String
		}
	}

	d := draft.New(requestID, stageID)
	d.Values = codec.DecodeRecord(record)
	d.LoadedFrom = draft.SourceLocal
	return d, nil
}

// Upsert writes only the supplied keys. A missing row is inserted with both
// audit timestamps; an existing row keeps its created_at and refreshes
// updated_at.
func (s *Store) Upsert(ctx context.Context, stageID, requestID string, values map[string]any) error {
	stage, ok := s.reg.Stage(stageID)
	if !ok {
		return fmt.Errorf("sqlite: unknown stage %q", stageID)
	}
	if requestID == "" {
		return fmt.Errorf("sqlite: request id is required")
	}

	codec := draft.NewCodec(stage)
	now := time.Now().UTC()

	cols := []string{"request_id"}
	args := []any{requestID}
	var updates []string
	for _, field := range stage.Fields {
		value, present := values[field.Key]
		if !present {
			continue
		}
		encoded, err := codec.EncodeValue(field.Key, value)
		if err != nil {
			return fmt.Errorf("sqlite: upsert %s/%s: %w", stageID, requestID, err)
		}
		cols = append(cols, fmt.Sprintf("%q", field.Key))
		if encoded == nil {
			args = append(args, nil)
		} else {
			args = append(args, fmt.Sprint(encoded))
		}
		updates = append(updates, fmt.Sprintf("%q = excluded.%q", field.Key, field.Key))
	}

	cols = append(cols, "created_at", "updated_at")
	args = append(args, now, now)
	updates = append(updates, "updated_at = excluded.updated_at")

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	stmt := fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)
		ON CONFLICT(request_id) DO UPDATE SET %s`,
		stageID, strings.Join(cols, ", "), placeholders, strings.Join(updates, ", "))

	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("sqlite: upsert %s/%s: %w", stageID, requestID, err)
	}
	return nil
}

// Delete removes the draft row for (stageID, requestID). Deleting an absent
// row is not an error.
func (s *Store) Delete(ctx context.Context, stageID, requestID string) error {
	if _, ok := s.reg.Stage(stageID); !ok {
		return fmt.Errorf("sqlite: unknown stage %q", stageID)
	}
	stmt := fmt.Sprintf("DELETE FROM %q WHERE request_id = ?", stageID)
	if _, err := s.db.ExecContext(ctx, stmt, requestID); err != nil {
		return fmt.Errorf("sqlite: delete %s/%s: %w", stageID, requestID, err)
	}
	return nil
}

// DeleteRequest removes every stage draft belonging to requestID. Used on
// whole-wizard completion and explicit reset.
func (s *Store) DeleteRequest(ctx context.Context, requestID string) error {
	for _, stage := range s.reg.Stages() {
		if err := s.Delete(ctx, stage.ID, requestID); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
