package simscore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cognicore/simscore/pkg/simscore/internalerr"
	"github.com/cognicore/simscore/pkg/simscore/store"
)

// ImportRequest describes a prior submission known only by its document
// locator, such as one carried over from an older system.
type ImportRequest struct {
	AssignmentID string
	StudentID    string
	Locator      string
	Format       string
	CreatedAt    time.Time
}

// Import adds a submission to an assignment's corpus without scoring it.
// Its document is fetched and normalized the first time it is compared.
func (c *Checker) Import(ctx context.Context, req ImportRequest) (store.Submission, error) {
	if strings.TrimSpace(req.AssignmentID) == "" || strings.TrimSpace(req.StudentID) == "" || req.Locator == "" {
		return store.Submission{}, fmt.Errorf("assignment, student and locator are required: %w", internalerr.ErrInvalidInput)
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = c.now()
	}

	sub, err := c.store.Register(ctx, store.Submission{
		ID:           c.newID(),
		AssignmentID: strings.TrimSpace(req.AssignmentID),
		StudentID:    strings.TrimSpace(req.StudentID),
		Locator:      req.Locator,
		Format:       formatHint(req.Format, req.Locator),
		CreatedAt:    req.CreatedAt,
	})
	if err != nil && !errors.Is(err, internalerr.ErrDuplicate) {
		return store.Submission{}, fmt.Errorf("import submission: %w", errors.Join(internalerr.ErrStoreUnavailable, err))
	}
	return sub, err
}

// Submissions lists an assignment's submissions in acceptance order.
func (c *Checker) Submissions(ctx context.Context, assignmentID string) ([]store.Submission, error) {
	subs, err := c.store.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", errors.Join(internalerr.ErrStoreUnavailable, err))
	}
	return subs, nil
}

// Status is a submission together with its report, if it has been scored.
type Status struct {
	Submission store.Submission
	Report     *store.Report
}

// Report looks up a submission and its latest report.
func (c *Checker) Report(ctx context.Context, submissionID string) (Status, error) {
	sub, err := c.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return Status{}, err
	}
	st := Status{Submission: sub}
	r, err := c.store.GetReport(ctx, submissionID)
	switch {
	case err == nil:
		st.Report = &r
	case errors.Is(err, internalerr.ErrNotFound):
	default:
		return Status{}, err
	}
	return st, nil
}
