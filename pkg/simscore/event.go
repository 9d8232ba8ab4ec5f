package simscore

import (
	"context"
	"time"

	"github.com/cognicore/simscore/pkg/simscore/store"
)

// Event announces a scored submission.
type Event struct {
	SubmissionID        string    `json:"submissionId"`
	AssignmentID        string    `json:"assignmentId"`
	StudentID           string    `json:"studentId"`
	SimilarityScore     int       `json:"similarityScore"`
	MatchedSubmissionID *string   `json:"matchedSubmissionId"`
	ExtractionEmpty     bool      `json:"extractionEmpty"`
	Partial             bool      `json:"partial"`
	Timestamp           time.Time `json:"timestamp"`
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// publish is best effort: the report is already stored.
func (c *Checker) publish(ctx context.Context, sub store.Submission, res Result) {
	if c.publisher == nil {
		return
	}
	e := Event{
		SubmissionID:        sub.ID,
		AssignmentID:        sub.AssignmentID,
		StudentID:           sub.StudentID,
		SimilarityScore:     res.Score,
		MatchedSubmissionID: res.Explanation.MatchedSubmissionID,
		ExtractionEmpty:     res.ExtractionEmpty,
		Partial:             res.Partial,
		Timestamp:           c.now(),
	}
	if err := c.publisher.Publish(ctx, e); err != nil {
		c.log.Warn("publish event failed", "submission", sub.ID, "error", err)
	}
}
