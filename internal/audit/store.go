// Package audit persists an HMAC-signed record per cycle. Every cycle,
// whether clean, degraded, or dry-run, leaves a record, so the audit trail is the
// ground truth for how the daily budget was spent and what the agents did.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/agents"
	labelerotel "github.com/ghelleks/email-labeler-agent-sub001/internal/otel"
)

var tracer = labelerotel.Tracer("github.com/ghelleks/email-labeler-agent-sub001/internal/audit")

// Record is the audit entry for one cycle.
type Record struct {
	ID           string          `json:"id"`
	CycleID      string          `json:"cycle_id"`
	Timestamp    time.Time       `json:"timestamp"`
	DryRun       bool            `json:"dry_run"`
	Candidates   int             `json:"candidates"`
	Labeled      int             `json:"labeled"`
	Skipped      int             `json:"skipped"`
	WouldLabel   int             `json:"would_label"`
	Errors       int             `json:"errors"`
	Fallbacks    int             `json:"fallbacks"`
	AgentResults []agents.Result `json:"agent_results,omitempty"`
	DurationMS   int64           `json:"duration_ms"`
	Signature    string          `json:"signature"`
}

// Store persists HMAC-signed cycle records in SQLite.
type Store struct {
	db     *sql.DB
	signer *Signer
}

// NewStore creates an audit store with HMAC signing.
func NewStore(dbPath string, signingKey string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		record_json TEXT NOT NULL,
		signature TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_timestamp ON cycles(timestamp);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	signer, err := NewSigner(signingKey)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	return &Store{db: db, signer: signer}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save signs and persists a cycle record.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	ctx, span := tracer.Start(ctx, "audit.save",
		trace.WithAttributes(attribute.String("cycle_id", rec.CycleID)))
	defer span.End()

	rec.Signature = ""
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling cycle record: %w", err)
	}
	rec.Signature = s.signer.Sign(recordJSON)

	signedJSON, _ := json.Marshal(rec)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cycles (id, cycle_id, timestamp, record_json, signature)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.CycleID, rec.Timestamp, string(signedJSON), rec.Signature)
	if err != nil {
		return fmt.Errorf("storing cycle record: %w", err)
	}
	return nil
}

// Get retrieves a cycle record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var recordJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT record_json FROM cycles WHERE id = ?`, id).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cycle record %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying cycle record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling cycle record: %w", err)
	}
	return &rec, nil
}

// List returns cycle records, newest first.
func (s *Store) List(ctx context.Context, from, to time.Time, limit int) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "audit.list")
	defer span.End()

	query := `SELECT record_json FROM cycles WHERE 1=1`
	args := []interface{}{}
	if !from.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND timestamp < ?`
		args = append(args, to)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cycle records: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			continue
		}
		results = append(results, rec)
	}
	span.SetAttributes(attribute.Int("audit.record_count", len(results)))
	return results, nil
}

// Verify checks the HMAC signature integrity of a cycle record.
func (s *Store) Verify(ctx context.Context, id string) (bool, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}

	signature := rec.Signature
	rec.Signature = ""
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshaling for verification: %w", err)
	}
	return s.signer.Verify(recordJSON, signature), nil
}
