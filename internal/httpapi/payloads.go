package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cognicore/simscore/pkg/simscore"
	"github.com/cognicore/simscore/pkg/simscore/explain"
	"github.com/cognicore/simscore/pkg/simscore/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

type submissionPayload struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignmentId"`
	StudentID    string    `json:"studentId"`
	Seq          int64     `json:"seq"`
	Locator      string    `json:"locator,omitempty"`
	Format       string    `json:"format,omitempty"`
	Normalized   bool      `json:"normalized"`
	TokenCount   int       `json:"tokenCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

type reportPayload struct {
	Explanation     explain.Explanation `json:"explanation"`
	ExtractionEmpty bool                `json:"extractionEmpty"`
	Partial         bool                `json:"partial"`
	Compared        int                 `json:"compared"`
	CorpusSize      int                 `json:"corpusSize"`
	ScoredAt        time.Time           `json:"scoredAt"`
}

type statusPayload struct {
	Submission submissionPayload `json:"submission"`
	Report     *reportPayload    `json:"report"`
}

func toSubmissionPayload(s store.Submission) submissionPayload {
	return submissionPayload{
		ID:           s.ID,
		AssignmentID: s.AssignmentID,
		StudentID:    s.StudentID,
		Seq:          s.Seq,
		Locator:      s.Locator,
		Format:       s.Format,
		Normalized:   s.Tokens != nil,
		TokenCount:   len(s.Tokens),
		CreatedAt:    s.CreatedAt,
	}
}

func toStatusPayload(st simscore.Status) statusPayload {
	out := statusPayload{Submission: toSubmissionPayload(st.Submission)}
	if r := st.Report; r != nil {
		out.Report = &reportPayload{
			Explanation:     r.Explanation,
			ExtractionEmpty: r.ExtractionEmpty,
			Partial:         r.Partial,
			Compared:        r.Compared,
			CorpusSize:      r.CorpusSize,
			ScoredAt:        r.ScoredAt,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, errorResponse{Error: msg}, status)
}
