package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/simscore/pkg/simscore"
	"github.com/cognicore/simscore/pkg/simscore/internalerr"
)

func newChecker(t *testing.T) *simscore.Checker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	checker, cleanup, err := buildChecker(context.Background(), "", dbPath)
	if err != nil {
		t.Fatalf("buildChecker failed: %v", err)
	}
	t.Cleanup(cleanup)
	return checker
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// TestBuildChecker tests that buildChecker opens a fresh database
func TestBuildChecker(t *testing.T) {
	if newChecker(t) == nil {
		t.Fatal("Expected non-nil checker")
	}
}

// TestBuildCheckerInvalidDBPath tests that buildChecker fails with an unusable path
func TestBuildCheckerInvalidDBPath(t *testing.T) {
	_, _, err := buildChecker(context.Background(), "", "/nonexistent/directory/test.db")
	if err == nil {
		t.Error("buildChecker should fail with invalid DB path")
	}
}

// TestBuildCheckerMissingConfig tests that a named config file must exist
func TestBuildCheckerMissingConfig(t *testing.T) {
	dir := t.TempDir()
	_, _, err := buildChecker(context.Background(), filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "test.db"))
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunScoresFiles(t *testing.T) {
	ctx := context.Background()
	checker := newChecker(t)

	first := writeFile(t, "a.txt", "Mitochondria produce cellular energy through respiration")
	second := writeFile(t, "b.txt", "Mitochondria produce cellular energy through respiration")

	var out bytes.Buffer
	if err := run(ctx, checker, request{assignment: "bio", student: "alice", file: first}, &out); err != nil {
		t.Fatalf("run first: %v", err)
	}

	out.Reset()
	if err := run(ctx, checker, request{assignment: "bio", student: "bob", file: second}, &out); err != nil {
		t.Fatalf("run second: %v", err)
	}

	var res simscore.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("output is not a result: %v\n%s", err, out.String())
	}
	if res.Score != 100 {
		t.Errorf("Score = %d, want 100", res.Score)
	}
	if res.CorpusSize != 1 {
		t.Errorf("CorpusSize = %d, want 1", res.CorpusSize)
	}

	out.Reset()
	if err := run(ctx, checker, request{assignment: "bio", list: true}, &out); err != nil {
		t.Fatalf("run list: %v", err)
	}
	for _, want := range []string{"alice", "bob", "SEQ"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("list output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunDuplicate(t *testing.T) {
	ctx := context.Background()
	checker := newChecker(t)
	path := writeFile(t, "a.txt", "Volcanic eruptions reshape islands")

	var out bytes.Buffer
	if err := run(ctx, checker, request{assignment: "geo", student: "alice", file: path}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	err := run(ctx, checker, request{assignment: "geo", student: "alice", file: path}, &out)
	if !errors.Is(err, internalerr.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestRunReportAndRescore(t *testing.T) {
	ctx := context.Background()
	checker := newChecker(t)
	path := writeFile(t, "a.txt", "Tectonic plates drift across the mantle")

	var out bytes.Buffer
	if err := run(ctx, checker, request{assignment: "geo", student: "alice", file: path}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	var res simscore.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	out.Reset()
	if err := run(ctx, checker, request{report: res.SubmissionID}, &out); err != nil {
		t.Fatalf("run report: %v", err)
	}
	if !strings.Contains(out.String(), res.SubmissionID) {
		t.Errorf("report should mention %s:\n%s", res.SubmissionID, out.String())
	}

	out.Reset()
	if err := run(ctx, checker, request{rescore: res.SubmissionID}, &out); err != nil {
		t.Fatalf("run rescore: %v", err)
	}
}

func TestRunImportIsScoredAgainst(t *testing.T) {
	ctx := context.Background()
	checker := newChecker(t)
	prior := writeFile(t, "old.txt", "Glaciers carve valleys over millennia")

	var out bytes.Buffer
	if err := run(ctx, checker, request{assignment: "geo", student: "legacy", importLoc: "file://" + prior}, &out); err != nil {
		t.Fatalf("run import: %v", err)
	}
	if !strings.HasPrefix(out.String(), "imported ") {
		t.Errorf("unexpected import output %q", out.String())
	}

	out.Reset()
	path := writeFile(t, "new.txt", "Glaciers carve valleys over millennia")
	if err := run(ctx, checker, request{assignment: "geo", student: "alice", file: path}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	var res simscore.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Score != 100 {
		t.Errorf("Score = %d, want 100 against the imported document", res.Score)
	}
}

func TestRunRequiresAction(t *testing.T) {
	if err := run(context.Background(), newChecker(t), request{assignment: "geo", student: "alice"}, &bytes.Buffer{}); err == nil {
		t.Error("run without a document should fail")
	}
	if err := run(context.Background(), newChecker(t), request{list: true}, &bytes.Buffer{}); err == nil {
		t.Error("list without an assignment should fail")
	}
}
