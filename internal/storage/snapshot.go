// Package storage persists check snapshots so the serve front end can page
// through findings without re-running the pass.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"glot/internal/finding"
)

// SnapshotStore keeps every completed check run and its findings.
type SnapshotStore struct {
	db *sql.DB
}

// Snapshot describes one stored check run.
type Snapshot struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Files     int       `json:"files"`
	Keys      int       `json:"keys"`
}

// Summary is the per-kind tally of a snapshot's unsuppressed findings.
type Summary struct {
	Snapshot Snapshot             `json:"snapshot"`
	ByKind   map[finding.Kind]int `json:"byKind"`
	BySev    map[string]int       `json:"bySeverity"`
	Findings int                  `json:"findings"`
}

// NewSnapshotStore creates or opens the database at path.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SnapshotStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SnapshotStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			files INTEGER NOT NULL,
			keys INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS findings (
			snapshot_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			severity TEXT NOT NULL,
			filepath TEXT NOT NULL,
			line INTEGER NOT NULL,
			col INTEGER NOT NULL,
			suppressed INTEGER NOT NULL,
			detail JSON NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_findings_snapshot ON findings(snapshot_id, kind);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot stores a completed run and returns its snapshot id.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, files, keys int, findings []finding.Finding) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (created_at, files, keys) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), files, keys)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (snapshot_id, kind, severity, filepath, line, col, suppressed, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, f := range findings {
		detail, err := json.Marshal(f)
		if err != nil {
			return 0, err
		}
		suppressed := 0
		if f.Suppressed {
			suppressed = 1
		}
		if _, err := stmt.Exec(id, string(f.Kind), f.Severity.String(),
			f.File, f.Span.Start.Line, f.Span.Start.Col, suppressed, detail); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Latest returns the most recent snapshot, or sql.ErrNoRows when none exist.
func (s *SnapshotStore) Latest(ctx context.Context) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, files, keys FROM snapshots ORDER BY id DESC LIMIT 1`)

	var snap Snapshot
	var created string
	if err := row.Scan(&snap.ID, &created, &snap.Files, &snap.Keys); err != nil {
		return Snapshot{}, err
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return snap, nil
}

// LatestFindings pages through the newest snapshot's findings, optionally
// filtered by kind. The second return value is the total matching count
// before paging.
func (s *SnapshotStore) LatestFindings(ctx context.Context, kind string, offset, limit int) ([]finding.Finding, int, error) {
	snap, err := s.Latest(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	where := `snapshot_id = ?`
	args := []any{snap.ID}
	if kind != "" {
		where += ` AND kind = ?`
		args = append(args, kind)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM findings WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT detail FROM findings WHERE `+where+
			` ORDER BY filepath, line, col, kind LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []finding.Finding
	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, 0, err
		}
		var f finding.Finding
		if err := json.Unmarshal(detail, &f); err != nil {
			return nil, 0, fmt.Errorf("decode finding: %w", err)
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

// LatestSummary tallies the newest snapshot. Suppressed findings are skipped,
// matching the report counts.
func (s *SnapshotStore) LatestSummary(ctx context.Context) (Summary, error) {
	snap, err := s.Latest(ctx)
	if err != nil {
		return Summary{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, severity, COUNT(*) FROM findings
		 WHERE snapshot_id = ? AND suppressed = 0
		 GROUP BY kind, severity`, snap.ID)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	sum := Summary{
		Snapshot: snap,
		ByKind:   make(map[finding.Kind]int),
		BySev:    make(map[string]int),
	}
	for rows.Next() {
		var kind, severity string
		var n int
		if err := rows.Scan(&kind, &severity, &n); err != nil {
			return Summary{}, err
		}
		sum.ByKind[finding.Kind(kind)] += n
		sum.BySev[severity] += n
		sum.Findings += n
	}
	return sum, rows.Err()
}
