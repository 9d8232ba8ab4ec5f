// Package storetest holds behaviour tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cognicore/simscore/pkg/simscore/explain"
	"github.com/cognicore/simscore/pkg/simscore/internalerr"
	"github.com/cognicore/simscore/pkg/simscore/store"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Run checks the stores built by newStore against the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("RegisterAndDuplicate", func(t *testing.T) { testRegisterAndDuplicate(t, newStore(t)) })
	t.Run("ConcurrentRegister", func(t *testing.T) { testConcurrentRegister(t, newStore(t)) })
	t.Run("PriorSnapshot", func(t *testing.T) { testPriorSnapshot(t, newStore(t)) })
	t.Run("Tokens", func(t *testing.T) { testTokens(t, newStore(t)) })
	t.Run("Reports", func(t *testing.T) { testReports(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
}

func sub(id, assignment, student string, tokens ...string) store.Submission {
	s := store.Submission{
		ID:           id,
		AssignmentID: assignment,
		StudentID:    student,
		Format:       "text/plain",
	}
	if tokens != nil {
		s.Tokens = tokens
	}
	return s
}

func testRegisterAndDuplicate(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	has, err := st.HasSubmission(ctx, "hw1", "alice")
	if err != nil || has {
		t.Fatalf("HasSubmission before register = %v, %v", has, err)
	}

	got, err := st.Register(ctx, sub("s1", "hw1", "alice", "quick", "brown"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got.Seq <= 0 {
		t.Errorf("Seq = %d, want > 0", got.Seq)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	has, err = st.HasSubmission(ctx, "hw1", "alice")
	if err != nil || !has {
		t.Fatalf("HasSubmission after register = %v, %v", has, err)
	}

	_, err = st.Register(ctx, sub("s2", "hw1", "alice", "other"))
	if !errors.Is(err, internalerr.ErrDuplicate) {
		t.Fatalf("second Register: expected ErrDuplicate, got %v", err)
	}

	// Same student, different assignment is fine.
	if _, err := st.Register(ctx, sub("s3", "hw2", "alice", "other")); err != nil {
		t.Fatalf("Register for other assignment: %v", err)
	}
}

func testConcurrentRegister(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		duplicate int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := st.Register(ctx, sub(fmt.Sprintf("race-%d", i), "hw1", "bob", "tok"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, internalerr.ErrDuplicate):
				duplicate++
			default:
				t.Errorf("Register: unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("accepted = %d, want exactly 1", accepted)
	}
	if accepted+duplicate != attempts {
		t.Errorf("accepted+duplicate = %d, want %d", accepted+duplicate, attempts)
	}
}

func testPriorSnapshot(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	var seqs []int64
	for i, student := range []string{"s-a", "s-b", "s-c"} {
		got, err := st.Register(ctx, sub(fmt.Sprintf("p%d", i), "hw1", student, "tok"))
		if err != nil {
			t.Fatalf("Register %s: %v", student, err)
		}
		seqs = append(seqs, got.Seq)
	}
	if _, err := st.Register(ctx, sub("other", "hw9", "s-a", "tok")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	prior, err := st.PriorSubmissions(ctx, "hw1", seqs[2])
	if err != nil {
		t.Fatalf("PriorSubmissions: %v", err)
	}
	if len(prior) != 2 || prior[0].ID != "p0" || prior[1].ID != "p1" {
		t.Fatalf("PriorSubmissions = %v, want [p0 p1]", ids(prior))
	}

	first, err := st.PriorSubmissions(ctx, "hw1", seqs[0])
	if err != nil {
		t.Fatalf("PriorSubmissions: %v", err)
	}
	if len(first) != 0 {
		t.Errorf("first submission should see no priors, got %v", ids(first))
	}

	all, err := st.ListSubmissions(ctx, "hw1")
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(all) != 3 || all[2].ID != "p2" {
		t.Errorf("ListSubmissions = %v", ids(all))
	}
}

func testTokens(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	if _, err := st.Register(ctx, sub("imported", "hw1", "legacy")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := st.Register(ctx, sub("blank", "hw1", "empty", []string{}...)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := st.GetSubmission(ctx, "imported")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.Tokens != nil {
		t.Errorf("imported submission should have nil tokens, got %v", got.Tokens)
	}

	blank, err := st.GetSubmission(ctx, "blank")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if blank.Tokens == nil || len(blank.Tokens) != 0 {
		t.Errorf("normalized-but-empty submission should have empty, non-nil tokens, got %#v", blank.Tokens)
	}

	if err := st.SaveTokens(ctx, "imported", []string{"legacy", "essay", "legacy"}); err != nil {
		t.Fatalf("SaveTokens: %v", err)
	}
	got, err = st.GetSubmission(ctx, "imported")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if len(got.Tokens) != 3 || got.Tokens[2] != "legacy" {
		t.Errorf("Tokens = %v, want order and duplicates kept", got.Tokens)
	}

	if err := st.SaveTokens(ctx, "imported-missing", []string{"x"}); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("SaveTokens on unknown id: expected ErrNotFound, got %v", err)
	}
}

func testReports(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	if _, err := st.Register(ctx, sub("r1", "hw1", "carol", "quick", "fox")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	matched := "r0"
	exp := explain.New().Build([]string{"quick", "fox"}, []string{"quick", "fox"}, 100, matched)
	want := store.Report{
		SubmissionID: "r1",
		Explanation:  exp,
		Partial:      true,
		Compared:     2,
		CorpusSize:   3,
	}
	if err := st.SaveReport(ctx, want); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	got, err := st.GetReport(ctx, "r1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.Explanation.SimilarityScore != 100 || got.Explanation.Tier != explain.TierHigh {
		t.Errorf("Explanation = %+v", got.Explanation)
	}
	if got.Explanation.MatchedSubmissionID == nil || *got.Explanation.MatchedSubmissionID != matched {
		t.Errorf("MatchedSubmissionID = %v", got.Explanation.MatchedSubmissionID)
	}
	if !got.Partial || got.Compared != 2 || got.CorpusSize != 3 {
		t.Errorf("Report = %+v", got)
	}
	if got.ScoredAt.IsZero() {
		t.Error("ScoredAt should be set")
	}

	// Saving again replaces the report (rescore).
	want.Partial = false
	want.Compared = 3
	if err := st.SaveReport(ctx, want); err != nil {
		t.Fatalf("SaveReport again: %v", err)
	}
	got, err = st.GetReport(ctx, "r1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.Partial || got.Compared != 3 {
		t.Errorf("report was not replaced: %+v", got)
	}
}

func testNotFound(t *testing.T, st store.Store) {
	ctx := context.Background()
	defer st.Close()

	if _, err := st.GetSubmission(ctx, "nope"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("GetSubmission: expected ErrNotFound, got %v", err)
	}
	if _, err := st.GetReport(ctx, "nope"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("GetReport: expected ErrNotFound, got %v", err)
	}
	list, err := st.ListSubmissions(ctx, "no-such-assignment")
	if err != nil || len(list) != 0 {
		t.Errorf("ListSubmissions = %v, %v; want empty", list, err)
	}
}

func ids(subs []store.Submission) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.ID
	}
	return out
}
