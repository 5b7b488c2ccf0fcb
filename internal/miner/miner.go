// Package miner searches for a repository revision whose identifier
// satisfies the proof of work predicate by repeatedly re-recording the
// newest revision until it matches or the attempt budget runs out.
//
// A search moves through Init -> Recorded -> Evaluating and ends in
// Accepted (the matching revision stays in history) or Exhausted (the
// revision and its stored file are discarded). Gateway failures end the
// search immediately and are returned unchanged.
package miner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/redpwn/gitpow/internal/digest"
	"github.com/redpwn/gitpow/pow"
)

// Gateway is the set of revision operations a search drives. Calls are
// issued strictly one at a time.
type Gateway interface {
	Stage(ctx context.Context, path string) error
	Record(ctx context.Context, message string) error
	Revision(ctx context.Context) (string, error)
	UndoKeep(ctx context.Context) error
	UndoDiscard(ctx context.Context) error
}

// Storage persists and removes the file a search records.
type Storage interface {
	Exists(r *digest.Record) (bool, error)
	Write(r *digest.Record) error
	Remove(r *digest.Record) error
}

var ErrInvalidConfig = errors.New("invalid search config")

type SearchConfig struct {
	MaxTries int
	Zeroes   int
}

func (c SearchConfig) Validate() error {
	if c.MaxTries < 1 {
		return fmt.Errorf("%w: max tries %d < 1", ErrInvalidConfig, c.MaxTries)
	}
	if c.Zeroes < 0 {
		return fmt.Errorf("%w: zeroes %d < 0", ErrInvalidConfig, c.Zeroes)
	}
	return nil
}

type Outcome string

const (
	Accepted  Outcome = "accepted"
	Exhausted Outcome = "exhausted"
)

// Attempt is one evaluated revision.
type Attempt struct {
	Iteration int
	Revision  string
	Matched   bool
}

type Result struct {
	Outcome    Outcome
	Iterations int
	// Revision is the accepted revision, or the restored one when exhausted.
	Revision string
	Previous string
	Record   *digest.Record
}

type Miner struct {
	mu       sync.Mutex
	gw       Gateway
	store    Storage
	log      *slog.Logger
	observer func(Attempt)
}

type Option func(*Miner)

func WithLogger(l *slog.Logger) Option {
	return func(m *Miner) {
		if l != nil {
			m.log = l
		}
	}
}

// WithObserver registers fn to be called after every evaluated attempt.
func WithObserver(fn func(Attempt)) Option {
	return func(m *Miner) {
		m.observer = fn
	}
}

func New(gw Gateway, store Storage, opts ...Option) *Miner {
	m := &Miner{
		gw:    gw,
		store: store,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mine writes rec, records it, and searches for a matching revision.
// Running out of attempts is reported as an Exhausted result, not an error.
// Cancelling ctx is honoured only while a recorded revision is on top of
// history; the search then rolls back as if exhausted and returns ctx.Err().
// Only one search per Miner runs at a time.
func (m *Miner) Mine(ctx context.Context, rec *digest.Record, cfg SearchConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Once the file is written the search must reach a terminal state, so
	// gateway calls do not see the caller's cancellation.
	steady := context.WithoutCancel(ctx)

	previous, err := m.gw.Revision(steady)
	if err != nil {
		return nil, err
	}
	m.log.Info("commit prior to operations", "revision", previous)

	existed, err := m.store.Exists(rec)
	if err != nil {
		return nil, err
	}
	if err := m.store.Write(rec); err != nil {
		return nil, err
	}
	m.log.Info("file to commit", "path", rec.Path)
	if err := m.gw.Stage(steady, rec.Path); err != nil {
		// Only a file this search created is removed; an existing one
		// may be tracked.
		if !existed {
			if rmErr := m.store.Remove(rec); rmErr != nil {
				m.log.Warn("remove unstaged file", "path", rec.Path, "error", rmErr)
			}
		}
		return nil, err
	}
	if err := m.gw.Record(steady, rec.Digest); err != nil {
		return nil, err
	}

	last := ""
	for iteration := 1; ; iteration++ {
		revision, err := m.gw.Revision(steady)
		if err != nil {
			return nil, err
		}
		if revision == last {
			m.log.Debug("revision unchanged by re-record", "iteration", iteration)
		}
		last = revision

		attempt := Attempt{Iteration: iteration, Revision: revision, Matched: pow.Matches(revision, cfg.Zeroes)}
		m.log.Info("attempt",
			"iteration", iteration,
			"revision", revision,
			"zeroes", pow.LeadingZeroes(revision),
			"matched", attempt.Matched,
		)
		if m.observer != nil {
			m.observer(attempt)
		}

		if attempt.Matched {
			m.log.Info("match", "iteration", iteration, "revision", revision)
			return &Result{
				Outcome:    Accepted,
				Iterations: iteration,
				Revision:   revision,
				Previous:   previous,
				Record:     rec,
			}, nil
		}

		if iteration >= cfg.MaxTries {
			m.log.Info("maximum tries reached", "tries", cfg.MaxTries)
			restored, err := m.rollback(steady, rec, previous)
			if err != nil {
				return nil, err
			}
			return &Result{
				Outcome:    Exhausted,
				Iterations: iteration,
				Revision:   restored,
				Previous:   previous,
				Record:     rec,
			}, nil
		}

		if err := ctx.Err(); err != nil {
			m.log.Warn("search interrupted, rolling back", "iteration", iteration, "error", err)
			if _, rbErr := m.rollback(steady, rec, previous); rbErr != nil {
				return nil, errors.Join(err, rbErr)
			}
			return nil, err
		}

		if err := m.gw.UndoKeep(steady); err != nil {
			return nil, err
		}
		if err := m.gw.Record(steady, rec.Digest); err != nil {
			return nil, err
		}
	}
}

// rollback discards the recorded revision and its file, returning the
// revision history was restored to.
func (m *Miner) rollback(ctx context.Context, rec *digest.Record, previous string) (string, error) {
	if err := m.gw.UndoDiscard(ctx); err != nil {
		return "", err
	}
	if err := m.store.Remove(rec); err != nil {
		return "", err
	}
	restored, err := m.gw.Revision(ctx)
	if err != nil {
		return "", err
	}
	if restored != previous {
		m.log.Warn("rollback did not restore prior revision", "want", previous, "got", restored)
	}
	m.log.Info("rolled back", "revision", restored)
	return restored, nil
}
