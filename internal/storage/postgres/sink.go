// Package postgres provides the Postgres-backed record sink.
package postgres

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/court"
)

// SinkConfig controls the Postgres connection pool.
type SinkConfig struct {
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
}

type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Sink persists case records across the relational tables and writes
// document content to a blob store, recording the resulting URIs.
type Sink struct {
	pool   pgxPool
	blobs  court.BlobStore
	logger *zap.Logger
}

// NewSink creates a Postgres-backed sink using the provided config.
func NewSink(ctx context.Context, cfg SinkConfig, blobs court.BlobStore, logger *zap.Logger) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewSinkWithPool(pool, blobs, logger)
}

// NewSinkWithPool constructs a sink from an existing pool (primarily for
// testing).
func NewSinkWithPool(pool pgxPool, blobs court.BlobStore, logger *zap.Logger) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{pool: pool, blobs: blobs, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *Sink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Exists reports whether a case row is already stored.
func (s *Sink) Exists(ctx context.Context, caseNumber string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM cases WHERE case_number = $1)`, caseNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check case %s: %w", caseNumber, err)
	}
	return exists, nil
}

// Persist uploads document content to the blob store, then writes the case
// and its child rows in one transaction. Re-persisting a case replaces its
// child rows so a retried run converges instead of duplicating.
func (s *Sink) Persist(ctx context.Context, record *court.CaseRecord) error {
	if record == nil || record.CaseNumber == "" {
		return fmt.Errorf("case number is required")
	}

	uris := make([]string, len(record.Documents))
	for i, doc := range record.Documents {
		if len(doc.Content) == 0 {
			continue
		}
		path := fmt.Sprintf("documents/%s/%s", record.CaseNumber, doc.Name)
		uri, err := s.blobs.PutObject(ctx, path, "application/pdf", bytes.NewReader(doc.Content))
		if err != nil {
			return fmt.Errorf("upload document %s: %w", doc.DocumentID, err)
		}
		uris[i] = uri
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO cases (case_number, case_type, style, file_date, status, court_location, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (case_number) DO UPDATE SET
	case_type = EXCLUDED.case_type,
	style = EXCLUDED.style,
	file_date = EXCLUDED.file_date,
	status = EXCLUDED.status,
	court_location = EXCLUDED.court_location,
	ingested_at = now()`,
		record.CaseNumber, record.Type, record.Style, record.FileDate,
		record.Status, record.CourtLocation,
	); err != nil {
		return fmt.Errorf("upsert case %s: %w", record.CaseNumber, err)
	}

	for _, table := range []string{"parties", "attorneys", "hearings", "documents"} {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE case_number = $1`, table), record.CaseNumber,
		); err != nil {
			return fmt.Errorf("clear %s for %s: %w", table, record.CaseNumber, err)
		}
	}

	for _, p := range record.Parties {
		if _, err := tx.Exec(ctx, `
INSERT INTO parties (case_number, party_type, first_name, middle_name, last_name, nick_name, business_name, full_name, is_defendant)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			record.CaseNumber, p.Type, p.FirstName, p.MiddleName, p.LastName,
			p.NickName, p.BusinessName, p.FullName, p.IsDefendant,
		); err != nil {
			return fmt.Errorf("insert party for %s: %w", record.CaseNumber, err)
		}
	}

	for _, a := range record.Attorneys {
		if _, err := tx.Exec(ctx, `
INSERT INTO attorneys (case_number, first_name, middle_name, last_name, representing, bar_number, is_lead)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			record.CaseNumber, a.FirstName, a.MiddleName, a.LastName,
			a.Representing, a.BarNumber, a.IsLead,
		); err != nil {
			return fmt.Errorf("insert attorney for %s: %w", record.CaseNumber, err)
		}
	}

	for _, h := range record.Hearings {
		if _, err := tx.Exec(ctx, `
INSERT INTO hearings (case_number, hearing_id, calendar, hearing_type, hearing_date, hearing_time, hearing_result)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			record.CaseNumber, h.HearingID, h.Calendar, h.Type, h.Date, h.Time, h.Result,
		); err != nil {
			return fmt.Errorf("insert hearing for %s: %w", record.CaseNumber, err)
		}
	}

	for i, d := range record.Documents {
		if _, err := tx.Exec(ctx, `
INSERT INTO documents (case_number, document_id, document_name, blob_uri, sha256, size_bytes)
VALUES ($1, $2, $3, $4, $5, $6)`,
			record.CaseNumber, d.DocumentID, d.Name, uris[i], d.SHA256, len(d.Content),
		); err != nil {
			return fmt.Errorf("insert document %s for %s: %w", d.DocumentID, record.CaseNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit case %s: %w", record.CaseNumber, err)
	}
	s.logger.Debug("case persisted",
		zap.String("case_number", record.CaseNumber),
		zap.Int("documents", len(record.Documents)),
	)
	return nil
}
