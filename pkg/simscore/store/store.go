package store

import (
	"context"
	"time"

	"github.com/cognicore/simscore/pkg/simscore/explain"
)

// Store persists the submissions of every assignment and their reports.
type Store interface {
	Close() error

	// HasSubmission reports whether the student already submitted to the
	// assignment. It is an early, non-atomic check; Register is authoritative.
	HasSubmission(ctx context.Context, assignmentID, studentID string) (bool, error)

	// Register inserts s unless (AssignmentID, StudentID) is already taken,
	// in which case it returns internalerr.ErrDuplicate. The check and the
	// insert are one atomic step. The returned submission carries the
	// sequence number that fixes its place in acceptance order.
	Register(ctx context.Context, s Submission) (Submission, error)

	// PriorSubmissions lists the assignment's submissions with Seq below
	// beforeSeq, in acceptance order. A beforeSeq of 0 lists all of them.
	PriorSubmissions(ctx context.Context, assignmentID string, beforeSeq int64) ([]Submission, error)

	GetSubmission(ctx context.Context, id string) (Submission, error)
	ListSubmissions(ctx context.Context, assignmentID string) ([]Submission, error)

	// SaveTokens back-fills the normalized tokens of a submission that was
	// registered without them.
	SaveTokens(ctx context.Context, id string, tokens []string) error

	SaveReport(ctx context.Context, r Report) error
	GetReport(ctx context.Context, submissionID string) (Report, error)
}

// Submission is one accepted document of an assignment.
type Submission struct {
	ID           string
	AssignmentID string
	StudentID    string
	Seq          int64
	Locator      string
	Format       string
	// Tokens is nil until the document has been normalized. Imported
	// submissions start out without tokens.
	Tokens    []string
	CreatedAt time.Time
}

// Report is the stored outcome of scoring a submission.
type Report struct {
	SubmissionID    string
	Explanation     explain.Explanation
	ExtractionEmpty bool
	Partial         bool
	Compared        int
	CorpusSize      int
	ScoredAt        time.Time
}
