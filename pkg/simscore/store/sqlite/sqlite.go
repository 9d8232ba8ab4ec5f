package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cognicore/simscore/pkg/simscore/internalerr"
	"github.com/cognicore/simscore/pkg/simscore/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, errors.Join(internalerr.ErrStoreUnavailable, err))
	}
	// One writer at a time; Register relies on SQLite serializing inserts.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", errors.Join(internalerr.ErrStoreUnavailable, err))
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", errors.Join(internalerr.ErrStoreUnavailable, err))
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS submissions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT UNIQUE NOT NULL,
	assignment_id TEXT NOT NULL,
	student_id TEXT NOT NULL,
	locator TEXT NOT NULL DEFAULT '',
	format TEXT NOT NULL DEFAULT '',
	tokens_json TEXT,
	created_at TEXT NOT NULL,
	UNIQUE(assignment_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_submissions_assignment ON submissions(assignment_id, seq);

CREATE TABLE IF NOT EXISTS reports (
	submission_id TEXT PRIMARY KEY,
	explanation_json TEXT NOT NULL,
	extraction_empty INTEGER NOT NULL DEFAULT 0,
	partial INTEGER NOT NULL DEFAULT 0,
	compared INTEGER NOT NULL DEFAULT 0,
	corpus_size INTEGER NOT NULL DEFAULT 0,
	scored_at TEXT NOT NULL,
	FOREIGN KEY(submission_id) REFERENCES submissions(id) ON DELETE CASCADE
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// HasSubmission reports whether the student already submitted
func (s *sqliteStore) HasSubmission(ctx context.Context, assignmentID, studentID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM submissions WHERE assignment_id = ? AND student_id = ?`,
		assignmentID, studentID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check submission: %w", err)
	}
	return true, nil
}

// Register inserts a submission unless the student already has one.
func (s *sqliteStore) Register(ctx context.Context, sub store.Submission) (store.Submission, error) {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	tokens, err := encodeTokens(sub.Tokens)
	if err != nil {
		return store.Submission{}, err
	}

	const stmt = `
INSERT INTO submissions (id, assignment_id, student_id, locator, format, tokens_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(assignment_id, student_id) DO NOTHING
RETURNING seq;
`
	err = s.db.QueryRowContext(ctx, stmt,
		sub.ID,
		sub.AssignmentID,
		sub.StudentID,
		sub.Locator,
		sub.Format,
		tokens,
		sub.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Scan(&sub.Seq)
	switch {
	case err == sql.ErrNoRows:
		return store.Submission{}, fmt.Errorf("%s/%s: %w", sub.AssignmentID, sub.StudentID, internalerr.ErrDuplicate)
	case isUniqueViolation(err):
		return store.Submission{}, fmt.Errorf("submission id %s: %w", sub.ID, internalerr.ErrDuplicate)
	case err != nil:
		return store.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

const submissionColumns = `id, assignment_id, student_id, seq, locator, format, tokens_json, created_at`

// PriorSubmissions lists submissions accepted before beforeSeq
func (s *sqliteStore) PriorSubmissions(ctx context.Context, assignmentID string, beforeSeq int64) ([]store.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE assignment_id = ?`
	args := []interface{}{assignmentID}
	if beforeSeq > 0 {
		query += ` AND seq < ?`
		args = append(args, beforeSeq)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []store.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ListSubmissions lists every submission of an assignment in acceptance order
func (s *sqliteStore) ListSubmissions(ctx context.Context, assignmentID string) ([]store.Submission, error) {
	return s.PriorSubmissions(ctx, assignmentID, 0)
}

// GetSubmission retrieves a submission by id
func (s *sqliteStore) GetSubmission(ctx context.Context, id string) (store.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Submission{}, fmt.Errorf("submission %s: %w", id, internalerr.ErrNotFound)
	}
	return sub, err
}

// SaveTokens stores the normalized tokens of a submission
func (s *sqliteStore) SaveTokens(ctx context.Context, id string, tokens []string) error {
	if tokens == nil {
		tokens = []string{}
	}
	encoded, err := encodeTokens(tokens)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET tokens_json = ? WHERE id = ?`, encoded, id)
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %s: %w", id, internalerr.ErrNotFound)
	}
	return nil
}

// SaveReport inserts or replaces the report of a submission
func (s *sqliteStore) SaveReport(ctx context.Context, r store.Report) error {
	if r.ScoredAt.IsZero() {
		r.ScoredAt = time.Now().UTC()
	}
	explanation, err := json.Marshal(r.Explanation)
	if err != nil {
		return fmt.Errorf("encode explanation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM submissions WHERE id = ?`, r.SubmissionID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("submission %s: %w", r.SubmissionID, internalerr.ErrNotFound)
	}
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO reports (submission_id, explanation_json, extraction_empty, partial, compared, corpus_size, scored_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(submission_id) DO UPDATE SET
	explanation_json=excluded.explanation_json,
	extraction_empty=excluded.extraction_empty,
	partial=excluded.partial,
	compared=excluded.compared,
	corpus_size=excluded.corpus_size,
	scored_at=excluded.scored_at;
`
	if _, err := tx.ExecContext(ctx, stmt,
		r.SubmissionID,
		string(explanation),
		r.ExtractionEmpty,
		r.Partial,
		r.Compared,
		r.CorpusSize,
		r.ScoredAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	return tx.Commit()
}

// GetReport retrieves the report of a submission
func (s *sqliteStore) GetReport(ctx context.Context, submissionID string) (store.Report, error) {
	var (
		r           store.Report
		explanation string
		scoredAt    string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT submission_id, explanation_json, extraction_empty, partial, compared, corpus_size, scored_at
FROM reports WHERE submission_id = ?`, submissionID).Scan(
		&r.SubmissionID,
		&explanation,
		&r.ExtractionEmpty,
		&r.Partial,
		&r.Compared,
		&r.CorpusSize,
		&scoredAt,
	)
	if err == sql.ErrNoRows {
		return store.Report{}, fmt.Errorf("report %s: %w", submissionID, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Report{}, fmt.Errorf("load report: %w", err)
	}
	if err := json.Unmarshal([]byte(explanation), &r.Explanation); err != nil {
		return store.Report{}, fmt.Errorf("decode explanation: %w", err)
	}
	r.ScoredAt, _ = time.Parse(time.RFC3339Nano, scoredAt)
	return r, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (store.Submission, error) {
	var (
		sub       store.Submission
		tokens    sql.NullString
		createdAt string
	)
	if err := row.Scan(
		&sub.ID,
		&sub.AssignmentID,
		&sub.StudentID,
		&sub.Seq,
		&sub.Locator,
		&sub.Format,
		&tokens,
		&createdAt,
	); err != nil {
		return store.Submission{}, err
	}
	if tokens.Valid {
		if err := json.Unmarshal([]byte(tokens.String), &sub.Tokens); err != nil {
			return store.Submission{}, fmt.Errorf("decode tokens of %s: %w", sub.ID, err)
		}
		if sub.Tokens == nil {
			sub.Tokens = []string{}
		}
	}
	sub.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return sub, nil
}

// encodeTokens maps nil to NULL so unresolved submissions stay distinct
// from empty ones.
func encodeTokens(tokens []string) (interface{}, error) {
	if tokens == nil {
		return nil, nil
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return nil, fmt.Errorf("encode tokens: %w", err)
	}
	return string(data), nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
