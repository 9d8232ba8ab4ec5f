// Package simscore scores classroom submissions against the prior
// submissions of the same assignment.
package simscore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/simscore/pkg/simscore/explain"
	"github.com/cognicore/simscore/pkg/simscore/extract"
	"github.com/cognicore/simscore/pkg/simscore/fetch"
	"github.com/cognicore/simscore/pkg/simscore/internalerr"
	"github.com/cognicore/simscore/pkg/simscore/match"
	"github.com/cognicore/simscore/pkg/simscore/normalize"
	"github.com/cognicore/simscore/pkg/simscore/stoplist"
	"github.com/cognicore/simscore/pkg/simscore/store"
)

// Checker is the similarity engine facade
type Checker struct {
	store      store.Store
	fetcher    fetch.Fetcher
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
	matcher    *match.Matcher
	explainer  *explain.Builder
	publisher  Publisher
	log        *slog.Logger

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// Options configures a Checker
type Options struct {
	Store store.Store
	// Fetcher retrieves documents given by locator. Without one, only
	// inline documents can be scored.
	Fetcher    fetch.Fetcher
	Normalizer *normalize.Normalizer // defaults to the embedded English stop list
	Match      MatchOptions
	Publisher  Publisher
	Log        *slog.Logger
}

// MatchOptions tunes the corpus scan
type MatchOptions struct {
	Workers   int
	Budget    time.Duration
	CacheSize int
}

// New creates a Checker with the given dependencies
func New(opts Options) (*Checker, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required: %w", internalerr.ErrInvalidConfig)
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(stoplist.Default(), normalize.Options{})
	}

	c := &Checker{
		store:      opts.Store,
		fetcher:    opts.Fetcher,
		extractor:  extract.New(opts.Log.With("component", "extract")),
		normalizer: opts.Normalizer,
		explainer:  explain.New(),
		publisher:  opts.Publisher,
		log:        opts.Log,
		entropy:    ulid.Monotonic(rand.Reader, 0),
		now:        func() time.Time { return time.Now().UTC() },
	}

	m, err := match.New(match.Options{
		Workers:   opts.Match.Workers,
		Budget:    opts.Match.Budget,
		CacheSize: opts.Match.CacheSize,
		Resolver:  match.ResolverFunc(c.resolve),
		Log:       opts.Log.With("component", "match"),
	})
	if err != nil {
		return nil, err
	}
	c.matcher = m
	return c, nil
}

// Close cleanly shuts down the Checker and its store
func (c *Checker) Close() error {
	return c.store.Close()
}

// SubmitRequest is a new submission to score. The document is given inline
// or by locator; an inline document of zero bytes is a valid, empty file.
type SubmitRequest struct {
	AssignmentID string
	StudentID    string
	Document     []byte
	// Format is a MIME type, extension or file name. When empty it is
	// taken from the locator path, then sniffed from the content.
	Format  string
	Locator string
}

// Result is the outcome of scoring one submission.
type Result struct {
	SubmissionID string              `json:"submissionId"`
	Score        int                 `json:"score"`
	Explanation  explain.Explanation `json:"explanation"`
	// ExtractionEmpty is set when no tokens could be recovered from the
	// document. The score is then 0 but says nothing about originality.
	ExtractionEmpty bool `json:"extractionEmpty"`
	// Partial is set when some prior submission was not compared.
	Partial    bool `json:"partial"`
	Compared   int  `json:"compared"`
	CorpusSize int  `json:"corpusSize"`
}

// ScoreSubmission registers a new submission and scores it against every
// submission of the assignment accepted before it.
//
// A second submission by the same student to the same assignment fails
// with internalerr.ErrDuplicate before the document is read. If scoring
// fails after registration, the submission stays registered and can be
// scored again with Rescore.
func (c *Checker) ScoreSubmission(ctx context.Context, req SubmitRequest) (Result, error) {
	req.AssignmentID = strings.TrimSpace(req.AssignmentID)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if req.AssignmentID == "" || req.StudentID == "" {
		return Result{}, fmt.Errorf("assignment and student are required: %w", internalerr.ErrInvalidInput)
	}
	if req.Document == nil && req.Locator == "" {
		return Result{}, fmt.Errorf("document or locator is required: %w", internalerr.ErrInvalidInput)
	}

	exists, err := c.store.HasSubmission(ctx, req.AssignmentID, req.StudentID)
	if err != nil {
		return Result{}, fmt.Errorf("check submission: %w", errors.Join(internalerr.ErrStoreUnavailable, err))
	}
	if exists {
		return Result{}, fmt.Errorf("%s/%s: %w", req.AssignmentID, req.StudentID, internalerr.ErrDuplicate)
	}

	data := req.Document
	if data == nil {
		if data, err = c.fetchDocument(ctx, req.Locator); err != nil {
			return Result{}, err
		}
	}
	hint := formatHint(req.Format, req.Locator)
	tokens := c.tokenize(data, hint)

	sub, err := c.store.Register(ctx, store.Submission{
		ID:           c.newID(),
		AssignmentID: req.AssignmentID,
		StudentID:    req.StudentID,
		Locator:      req.Locator,
		Format:       hint,
		Tokens:       tokens,
		CreatedAt:    c.now(),
	})
	if errors.Is(err, internalerr.ErrDuplicate) {
		return Result{}, err
	}
	if err != nil {
		return Result{}, fmt.Errorf("register submission: %w", errors.Join(internalerr.ErrStoreUnavailable, err))
	}

	c.log.Debug("submission registered",
		"submission", sub.ID,
		"assignment", sub.AssignmentID,
		"seq", sub.Seq,
		"tokens", len(tokens))
	return c.score(ctx, sub)
}

// Rescore scores a registered submission again against the same corpus
// snapshot it was first scored with. It is the retry path after a
// transient failure.
func (c *Checker) Rescore(ctx context.Context, submissionID string) (Result, error) {
	sub, err := c.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return Result{}, err
	}
	if sub.Tokens == nil {
		tokens, err := c.resolve(ctx, candidateOf(sub))
		if err != nil {
			return Result{}, err
		}
		sub.Tokens = tokens
	}
	return c.score(ctx, sub)
}

// score matches a registered submission against its priors and stores the
// report.
func (c *Checker) score(ctx context.Context, sub store.Submission) (Result, error) {
	prior, err := c.store.PriorSubmissions(ctx, sub.AssignmentID, sub.Seq)
	if err != nil {
		return Result{}, fmt.Errorf("list prior submissions of %s: %w", sub.AssignmentID, errors.Join(internalerr.ErrCorpusUnavailable, err))
	}

	corpus := make([]match.Candidate, 0, len(prior))
	for _, p := range prior {
		corpus = append(corpus, candidateOf(p))
	}

	best, err := c.matcher.FindBestMatch(ctx, sub.Tokens, corpus)
	if err != nil {
		return Result{}, fmt.Errorf("score %s: %w", sub.ID, err)
	}

	exp := c.explainer.Build(sub.Tokens, best.MatchedTokens, best.Score, best.MatchedID)
	res := Result{
		SubmissionID:    sub.ID,
		Score:           exp.SimilarityScore,
		Explanation:     exp,
		ExtractionEmpty: len(sub.Tokens) == 0,
		Partial:         best.Partial,
		Compared:        best.Compared,
		CorpusSize:      best.Total,
	}

	if err := c.store.SaveReport(ctx, store.Report{
		SubmissionID:    sub.ID,
		Explanation:     exp,
		ExtractionEmpty: res.ExtractionEmpty,
		Partial:         res.Partial,
		Compared:        res.Compared,
		CorpusSize:      res.CorpusSize,
		ScoredAt:        c.now(),
	}); err != nil {
		return Result{}, fmt.Errorf("save report: %w", errors.Join(internalerr.ErrStoreUnavailable, err))
	}

	if res.ExtractionEmpty {
		c.log.Warn("no text extracted, flag for manual review",
			"submission", sub.ID,
			"assignment", sub.AssignmentID)
	}
	c.log.Info("submission scored",
		"submission", sub.ID,
		"assignment", sub.AssignmentID,
		"score", res.Score,
		"matched", best.MatchedID,
		"compared", res.Compared,
		"corpus", res.CorpusSize,
		"partial", res.Partial)

	c.publish(ctx, sub, res)
	return res, nil
}

// tokenize extracts and normalizes a document. The result is never nil,
// which marks the submission as normalized even when nothing was found.
func (c *Checker) tokenize(data []byte, hint string) []string {
	ex := c.extractor.Extract(data, hint)
	tokens := c.normalizer.Normalize(ex.Text)
	if tokens == nil {
		tokens = []string{}
	}
	return tokens
}

func (c *Checker) fetchDocument(ctx context.Context, locator string) ([]byte, error) {
	if c.fetcher == nil {
		return nil, fmt.Errorf("no fetcher for locator %q: %w", locator, internalerr.ErrInvalidInput)
	}
	data, err := c.fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	return data, nil
}

// resolve normalizes a submission registered without tokens and stores
// the result so later passes reuse it.
func (c *Checker) resolve(ctx context.Context, cand match.Candidate) ([]string, error) {
	data, err := c.fetchDocument(ctx, cand.Locator)
	if err != nil {
		return nil, err
	}
	tokens := c.tokenize(data, cand.Format)
	if err := c.store.SaveTokens(ctx, cand.ID, tokens); err != nil {
		c.log.Warn("token back-fill failed", "submission", cand.ID, "error", err)
	}
	return tokens, nil
}

func (c *Checker) newID() string {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(c.now()), c.entropy).String()
}

func candidateOf(s store.Submission) match.Candidate {
	return match.Candidate{
		ID:      s.ID,
		Tokens:  s.Tokens,
		Locator: s.Locator,
		Format:  s.Format,
	}
}

// formatHint prefers the declared format and falls back to the extension
// of the locator path.
func formatHint(format, locator string) string {
	if format != "" || locator == "" {
		return format
	}
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		return path.Ext(u.Path)
	}
	return path.Ext(locator)
}
