package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cognicore/simscore/pkg/simscore/internalerr"
	"github.com/cognicore/simscore/pkg/simscore/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	nextSeq int64
	subs    map[string]store.Submission
	byOwner map[ownerKey]string
	reports map[string]store.Report
}

type ownerKey struct {
	assignment string
	student    string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		nextSeq: 1,
		subs:    make(map[string]store.Submission),
		byOwner: make(map[ownerKey]string),
		reports: make(map[string]store.Report),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// HasSubmission implements store.Store.
func (s *Store) HasSubmission(ctx context.Context, assignmentID, studentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byOwner[ownerKey{assignmentID, studentID}]
	return ok, nil
}

// Register implements store.Store.
func (s *Store) Register(ctx context.Context, sub store.Submission) (store.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerKey{sub.AssignmentID, sub.StudentID}
	if _, ok := s.byOwner[key]; ok {
		return store.Submission{}, fmt.Errorf("%s/%s: %w", sub.AssignmentID, sub.StudentID, internalerr.ErrDuplicate)
	}
	if _, ok := s.subs[sub.ID]; ok {
		return store.Submission{}, fmt.Errorf("submission id %s: %w", sub.ID, internalerr.ErrDuplicate)
	}

	sub.Seq = s.nextSeq
	s.nextSeq++
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	sub = copySubmission(sub)
	s.subs[sub.ID] = sub
	s.byOwner[key] = sub.ID
	return copySubmission(sub), nil
}

// PriorSubmissions implements store.Store.
func (s *Store) PriorSubmissions(ctx context.Context, assignmentID string, beforeSeq int64) ([]store.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Submission
	for _, sub := range s.subs {
		if sub.AssignmentID != assignmentID {
			continue
		}
		if beforeSeq > 0 && sub.Seq >= beforeSeq {
			continue
		}
		out = append(out, copySubmission(sub))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// GetSubmission implements store.Store.
func (s *Store) GetSubmission(ctx context.Context, id string) (store.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return store.Submission{}, fmt.Errorf("submission %s: %w", id, internalerr.ErrNotFound)
	}
	return copySubmission(sub), nil
}

// ListSubmissions implements store.Store.
func (s *Store) ListSubmissions(ctx context.Context, assignmentID string) ([]store.Submission, error) {
	return s.PriorSubmissions(ctx, assignmentID, 0)
}

// SaveTokens implements store.Store.
func (s *Store) SaveTokens(ctx context.Context, id string, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return fmt.Errorf("submission %s: %w", id, internalerr.ErrNotFound)
	}
	sub.Tokens = cloneTokens(tokens)
	s.subs[id] = sub
	return nil
}

// SaveReport implements store.Store.
func (s *Store) SaveReport(ctx context.Context, r store.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[r.SubmissionID]; !ok {
		return fmt.Errorf("submission %s: %w", r.SubmissionID, internalerr.ErrNotFound)
	}
	if r.ScoredAt.IsZero() {
		r.ScoredAt = time.Now().UTC()
	}
	s.reports[r.SubmissionID] = copyReport(r)
	return nil
}

// GetReport implements store.Store.
func (s *Store) GetReport(ctx context.Context, submissionID string) (store.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[submissionID]
	if !ok {
		return store.Report{}, fmt.Errorf("report %s: %w", submissionID, internalerr.ErrNotFound)
	}
	return copyReport(r), nil
}

func copySubmission(sub store.Submission) store.Submission {
	sub.Tokens = cloneTokens(sub.Tokens)
	return sub
}

// cloneTokens keeps the nil/empty distinction: nil means not normalized.
func cloneTokens(tokens []string) []string {
	if tokens == nil {
		return nil
	}
	return append(make([]string, 0, len(tokens)), tokens...)
}

func copyReport(r store.Report) store.Report {
	r.Explanation.MatchedKeywords = append([]string{}, r.Explanation.MatchedKeywords...)
	r.Explanation.MatchedPhrases = append([]string{}, r.Explanation.MatchedPhrases...)
	if r.Explanation.MatchedSubmissionID != nil {
		id := *r.Explanation.MatchedSubmissionID
		r.Explanation.MatchedSubmissionID = &id
	}
	return r
}
