package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/redpwn/gitpow/internal/config"
	"github.com/redpwn/gitpow/internal/digest"
	"github.com/redpwn/gitpow/internal/git"
	"github.com/redpwn/gitpow/internal/input"
	"github.com/redpwn/gitpow/internal/lock"
	"github.com/redpwn/gitpow/internal/miner"
	"github.com/redpwn/gitpow/pow"
)

func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	if quiet {
		w = io.Discard
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	if id, err := uuid.NewV7(); err == nil {
		l = l.With("run", id.String())
	}
	return l
}

// stdinSource treats anything other than a terminal file as piped input.
func stdinSource(r io.Reader) (io.Reader, bool) {
	if f, ok := r.(*os.File); ok {
		return f, input.StdinPiped(f)
	}
	return r, r != nil
}

// runMine is the single place that turns a search outcome into output and
// an exit code.
func runMine(cmd *cobra.Command, cfg *config.Config, quiet bool, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(cmd.ErrOrStderr(), cfg.Verbose, quiet)

	stdin, piped := stdinSource(cmd.InOrStdin())
	payload, err := input.Source{Args: args, Stdin: stdin, Piped: piped, Max: int64(cfg.MaxPayload)}.Read()
	if err != nil {
		return WrapExitError(ExitCommandError, "read payload", err)
	}

	algorithm, err := digest.ParseAlgorithm(cfg.Digest)
	if err != nil {
		return WrapExitError(ExitCommandError, "digest", err)
	}
	storageDir, err := cfg.StorageDir()
	if err != nil {
		return WrapExitError(ExitCommandError, "storage dir", err)
	}
	store := &digest.Store{Dir: storageDir, Algorithm: algorithm}
	rec, err := store.Record(payload)
	if err != nil {
		return WrapExitError(ExitCommandError, "digest", err)
	}

	repo := git.NewRepository(cfg.Repo, cfg.Timeout)
	gitDir, err := repo.GitDir(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "open repository", err)
	}
	l, err := lock.Acquire(gitDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "lock repository", err)
	}
	defer func() {
		if err := l.Release(); err != nil {
			log.Error("release lock", "error", err)
		}
	}()

	log.Info("starting",
		"payload", units.HumanSize(float64(len(payload))),
		"digest", rec.Digest,
		"zeroes", cfg.Zeroes,
		"max_tries", cfg.MaxTries,
	)
	log.Debug("search odds",
		"expected_attempts", pow.ExpectedAttempts(cfg.Zeroes),
		"success_probability", fmt.Sprintf("%.4f", pow.SuccessProbability(cfg.Zeroes, cfg.MaxTries)),
	)

	m := miner.New(repo, store, miner.WithLogger(log))
	res, err := m.Mine(ctx, rec, miner.SearchConfig{MaxTries: cfg.MaxTries, Zeroes: cfg.Zeroes})
	if err != nil {
		log.Error("search failed", "error", err)
		if errors.Is(err, context.Canceled) {
			return WrapExitError(ExitCommandError, "interrupted", err)
		}
		return WrapExitError(ExitCommandError, "mine", err)
	}

	if err := render(cmd.OutOrStdout(), cfg.Format, res); err != nil {
		return WrapExitError(ExitCommandError, "write result", err)
	}
	if res.Outcome == miner.Exhausted {
		return NewExitError(ExitExhausted, fmt.Sprintf("no matching revision within %d tries", cfg.MaxTries))
	}

	hook := config.HookEnv{Revision: res.Revision, Path: rec.Path, Iterations: res.Iterations}
	if err := cfg.RunHook(ctx, hook, cmd.ErrOrStderr(), cmd.ErrOrStderr()); err != nil {
		return WrapExitError(ExitCommandError, "post-match hook", err)
	}
	return nil
}
