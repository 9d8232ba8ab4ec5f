// Package match finds the prior submission most similar to a new one.
package match

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cognicore/simscore/pkg/simscore/internalerr"
	"github.com/cognicore/simscore/pkg/simscore/similarity"
)

// Candidate is one prior submission in an assignment's corpus.
type Candidate struct {
	ID string
	// Tokens is the cached normalized text. Nil means it has to be
	// resolved from Locator.
	Tokens  []string
	Locator string
	Format  string
}

// Resolver produces the normalized tokens of a candidate without cached
// tokens, typically by fetching, extracting and normalizing its document.
type Resolver interface {
	Resolve(ctx context.Context, c Candidate) ([]string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, c Candidate) ([]string, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, c Candidate) ([]string, error) {
	return f(ctx, c)
}

// ErrUnresolved is returned when a candidate has no tokens and no resolver
// is configured.
var ErrUnresolved = errors.New("candidate has no tokens and no resolver")

// Options configures a Matcher
type Options struct {
	Workers   int           // parallel comparisons, default 4
	Budget    time.Duration // per-pass time budget, 0 = unlimited
	CacheSize int           // vectors kept across passes, default 1024
	Resolver  Resolver
	Log       *slog.Logger
}

// Result is the best match of one scoring pass.
type Result struct {
	Score int
	// MatchedID is empty when no prior submission shares any token.
	MatchedID     string
	MatchedTokens []string
	Compared      int
	Total         int
	// Unavailable counts candidates whose document could not be resolved
	// for a non-retryable reason, such as a deleted file.
	Unavailable int
	// Partial is set when some candidate was not compared, because the
	// time budget ran out or its document was unavailable.
	Partial bool
}

// Matcher compares token sequences against a corpus with bounded
// parallelism. Vectors are cached by submission id, so a Matcher should be
// shared across passes.
type Matcher struct {
	workers  int
	budget   time.Duration
	resolver Resolver
	cache    *lru.Cache[string, entry]
	log      *slog.Logger
}

type entry struct {
	tokens []string
	vec    similarity.Vector
}

// New creates a Matcher.
func New(opts Options) (*Matcher, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cache, err := lru.New[string, entry](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("vector cache: %w", err)
	}
	return &Matcher{
		workers:  opts.Workers,
		budget:   opts.Budget,
		resolver: opts.Resolver,
		cache:    cache,
		log:      opts.Log,
	}, nil
}

type outcome struct {
	done   bool
	score  int
	tokens []string
}

// FindBestMatch scores tokens against every candidate and returns the
// highest score. Ties keep the candidate that comes first in corpus order,
// and a match is only reported for a score above zero.
//
// When the budget expires the best of the candidates compared so far is
// returned with Partial set. A candidate whose document is gone is skipped
// the same way. Cancelling ctx, or a transient resolver failure, fails the
// whole pass.
func (m *Matcher) FindBestMatch(ctx context.Context, tokens []string, corpus []Candidate) (Result, error) {
	res := Result{Total: len(corpus)}
	if len(corpus) == 0 {
		return res, nil
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if m.budget > 0 {
		runCtx, cancel = context.WithTimeout(ctx, m.budget)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	vec := similarity.NewVector(tokens)
	outcomes := make([]outcome, len(corpus))

	var (
		mu          sync.Mutex
		firstErr    error
		unavailable atomic.Int32
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	workers := m.workers
	if workers > len(corpus) {
		workers = len(corpus)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				e, err := m.entryFor(runCtx, corpus[i])
				if err != nil {
					switch {
					case ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) &&
						errors.Is(err, context.DeadlineExceeded):
						// Budget expired mid-resolve; the candidate stays uncompared.
					case failsPass(err):
						fail(fmt.Errorf("resolve %s: %w", corpus[i].ID, err))
					default:
						m.log.Warn("prior submission unavailable, skipped",
							"submission", corpus[i].ID,
							"locator", corpus[i].Locator,
							"error", err)
						unavailable.Add(1)
					}
					continue
				}
				outcomes[i] = outcome{
					done:   true,
					score:  similarity.ScoreVectors(vec, e.vec),
					tokens: e.tokens,
				}
			}
		}()
	}

feed:
	for i := range corpus {
		select {
		case <-runCtx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if firstErr != nil {
		return Result{}, firstErr
	}

	for i, o := range outcomes {
		if !o.done {
			continue
		}
		res.Compared++
		if o.score > res.Score {
			res.Score = o.score
			res.MatchedID = corpus[i].ID
			res.MatchedTokens = o.tokens
		}
	}
	res.Unavailable = int(unavailable.Load())
	res.Partial = res.Compared < res.Total
	if res.Partial {
		m.log.Warn("corpus only partially compared",
			"compared", res.Compared,
			"unavailable", res.Unavailable,
			"total", res.Total,
			"budget", m.budget)
	}
	return res, nil
}

// failsPass reports whether a resolve error aborts the whole pass. Retryable
// I/O failures and cancellation do; a document that is gone or unreadable
// only removes its candidate from the comparison.
func failsPass(err error) bool {
	return errors.Is(err, internalerr.ErrTransient) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// entryFor returns the cached vector for a candidate, resolving its tokens
// when they are not known yet.
func (m *Matcher) entryFor(ctx context.Context, c Candidate) (entry, error) {
	if c.ID != "" {
		if e, ok := m.cache.Get(c.ID); ok {
			return e, nil
		}
	}

	toks := c.Tokens
	if toks == nil {
		if m.resolver == nil {
			return entry{}, ErrUnresolved
		}
		var err error
		toks, err = m.resolver.Resolve(ctx, c)
		if err != nil {
			return entry{}, err
		}
		if toks == nil {
			toks = []string{}
		}
	}

	e := entry{tokens: toks, vec: similarity.NewVector(toks)}
	if c.ID != "" {
		m.cache.Add(c.ID, e)
	}
	return e, nil
}

// Cached reports how many vectors are held in the cache.
func (m *Matcher) Cached() int {
	return m.cache.Len()
}
