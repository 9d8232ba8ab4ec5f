// Package postgres is a PostgreSQL store.Store built on sqlx and pgx.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/cognicore/simscore/pkg/simscore/internalerr"
	"github.com/cognicore/simscore/pkg/simscore/store"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// DB implements store.Store on PostgreSQL.
type DB struct {
	log  *slog.Logger
	conn *sqlx.DB
}

// New connects to address and applies migrations.
func New(ctx context.Context, log *slog.Logger, address string) (*DB, error) {
	conn, err := sqlx.ConnectContext(ctx, "pgx", address)
	if err != nil {
		log.Error("connection problem", "error", err)
		return nil, fmt.Errorf("connect postgres: %w", errors.Join(internalerr.ErrStoreUnavailable, err))
	}
	db := &DB{log: log, conn: conn}
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close implements store.Store.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// HasSubmission implements store.Store.
func (db *DB) HasSubmission(ctx context.Context, assignmentID, studentID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM submissions WHERE assignment_id=$1 AND student_id=$2)`
	var exists bool
	if err := db.conn.GetContext(ctx, &exists, q, assignmentID, studentID); err != nil {
		return false, fmt.Errorf("check submission: %w", err)
	}
	return exists, nil
}

// Register implements store.Store. Registrations of one assignment are
// serialized with a transaction-scoped advisory lock, so sequence order
// matches commit order and a new submission never misses one accepted
// just before it.
func (db *DB) Register(ctx context.Context, sub store.Submission) (store.Submission, error) {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	tokens, err := encodeTokens(sub.Tokens)
	if err != nil {
		return store.Submission{}, err
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return store.Submission{}, fmt.Errorf("begin register: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sub.AssignmentID); err != nil {
		return store.Submission{}, fmt.Errorf("lock assignment %s: %w", sub.AssignmentID, err)
	}

	const q = `
INSERT INTO submissions (id, assignment_id, student_id, locator, format, tokens, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (assignment_id, student_id) DO NOTHING
RETURNING seq`
	err = tx.GetContext(ctx, &sub.Seq, q,
		sub.ID, sub.AssignmentID, sub.StudentID, sub.Locator, sub.Format, tokens, sub.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return store.Submission{}, fmt.Errorf("%s/%s: %w", sub.AssignmentID, sub.StudentID, internalerr.ErrDuplicate)
	case isUniqueViolation(err):
		return store.Submission{}, fmt.Errorf("submission id %s: %w", sub.ID, internalerr.ErrDuplicate)
	case err != nil:
		return store.Submission{}, fmt.Errorf("insert submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return store.Submission{}, fmt.Errorf("commit register: %w", err)
	}
	return sub, nil
}

type submissionRow struct {
	ID           string    `db:"id"`
	AssignmentID string    `db:"assignment_id"`
	StudentID    string    `db:"student_id"`
	Seq          int64     `db:"seq"`
	Locator      string    `db:"locator"`
	Format       string    `db:"format"`
	Tokens       []byte    `db:"tokens"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r submissionRow) toSubmission() (store.Submission, error) {
	sub := store.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		Seq:          r.Seq,
		Locator:      r.Locator,
		Format:       r.Format,
		CreatedAt:    r.CreatedAt,
	}
	if r.Tokens != nil {
		sub.Tokens = []string{}
		if err := json.Unmarshal(r.Tokens, &sub.Tokens); err != nil {
			return store.Submission{}, fmt.Errorf("decode tokens of %s: %w", r.ID, err)
		}
	}
	return sub, nil
}

func selectSubmissions() sq.SelectBuilder {
	return psql.
		Select("id", "assignment_id", "student_id", "seq", "locator", "format", "tokens", "created_at").
		From("submissions")
}

// PriorSubmissions implements store.Store.
func (db *DB) PriorSubmissions(ctx context.Context, assignmentID string, beforeSeq int64) ([]store.Submission, error) {
	b := selectSubmissions().Where(sq.Eq{"assignment_id": assignmentID})
	if beforeSeq > 0 {
		b = b.Where(sq.Lt{"seq": beforeSeq})
	}
	q, args, err := b.OrderBy("seq").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []submissionRow
	if err := db.conn.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("select submissions: %w", err)
	}

	out := make([]store.Submission, 0, len(rows))
	for _, r := range rows {
		sub, err := r.toSubmission()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

// ListSubmissions implements store.Store.
func (db *DB) ListSubmissions(ctx context.Context, assignmentID string) ([]store.Submission, error) {
	return db.PriorSubmissions(ctx, assignmentID, 0)
}

// GetSubmission implements store.Store.
func (db *DB) GetSubmission(ctx context.Context, id string) (store.Submission, error) {
	q, args, err := selectSubmissions().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return store.Submission{}, fmt.Errorf("build query: %w", err)
	}
	var row submissionRow
	if err := db.conn.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Submission{}, fmt.Errorf("submission %s: %w", id, internalerr.ErrNotFound)
		}
		return store.Submission{}, fmt.Errorf("select submission: %w", err)
	}
	return row.toSubmission()
}

// SaveTokens implements store.Store.
func (db *DB) SaveTokens(ctx context.Context, id string, tokens []string) error {
	if tokens == nil {
		tokens = []string{}
	}
	encoded, err := encodeTokens(tokens)
	if err != nil {
		return err
	}
	q, args, err := psql.Update("submissions").Set("tokens", encoded).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	res, err := db.conn.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return fmt.Errorf("submission %s: %w", id, internalerr.ErrNotFound)
	}
	return nil
}

// SaveReport implements store.Store.
func (db *DB) SaveReport(ctx context.Context, r store.Report) error {
	if r.ScoredAt.IsZero() {
		r.ScoredAt = time.Now().UTC()
	}
	explanation, err := json.Marshal(r.Explanation)
	if err != nil {
		return fmt.Errorf("encode explanation: %w", err)
	}

	const q = `
INSERT INTO reports (submission_id, explanation, extraction_empty, partial, compared, corpus_size, scored_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (submission_id) DO UPDATE SET
	explanation = EXCLUDED.explanation,
	extraction_empty = EXCLUDED.extraction_empty,
	partial = EXCLUDED.partial,
	compared = EXCLUDED.compared,
	corpus_size = EXCLUDED.corpus_size,
	scored_at = EXCLUDED.scored_at`
	_, err = db.conn.ExecContext(ctx, q,
		r.SubmissionID, string(explanation), r.ExtractionEmpty, r.Partial, r.Compared, r.CorpusSize, r.ScoredAt)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("submission %s: %w", r.SubmissionID, internalerr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetReport implements store.Store.
func (db *DB) GetReport(ctx context.Context, submissionID string) (store.Report, error) {
	q, args, err := psql.
		Select("submission_id", "explanation", "extraction_empty", "partial", "compared", "corpus_size", "scored_at").
		From("reports").
		Where(sq.Eq{"submission_id": submissionID}).
		ToSql()
	if err != nil {
		return store.Report{}, fmt.Errorf("build query: %w", err)
	}

	var row struct {
		SubmissionID    string    `db:"submission_id"`
		Explanation     []byte    `db:"explanation"`
		ExtractionEmpty bool      `db:"extraction_empty"`
		Partial         bool      `db:"partial"`
		Compared        int       `db:"compared"`
		CorpusSize      int       `db:"corpus_size"`
		ScoredAt        time.Time `db:"scored_at"`
	}
	if err := db.conn.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Report{}, fmt.Errorf("report %s: %w", submissionID, internalerr.ErrNotFound)
		}
		return store.Report{}, fmt.Errorf("select report: %w", err)
	}

	r := store.Report{
		SubmissionID:    row.SubmissionID,
		ExtractionEmpty: row.ExtractionEmpty,
		Partial:         row.Partial,
		Compared:        row.Compared,
		CorpusSize:      row.CorpusSize,
		ScoredAt:        row.ScoredAt,
	}
	if err := json.Unmarshal(row.Explanation, &r.Explanation); err != nil {
		return store.Report{}, fmt.Errorf("decode explanation: %w", err)
	}
	return r, nil
}

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
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
