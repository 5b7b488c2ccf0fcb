// Package git drives the git CLI for the revision operations the miner
// needs. Every command targets one repository directory through -C and
// runs under an optional per-call timeout.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// PlaceholderMessage is the message every recorded revision carries.
const PlaceholderMessage = "Trial"

// ExecError is returned when a git invocation could not be started,
// exited non-zero, or ran past its timeout.
type ExecError struct {
	Dir    string
	Args   []string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("git %s in %s: %v", strings.Join(e.Args, " "), e.Dir, e.Err)
	if e.Stderr != "" {
		msg += " (stderr: " + e.Stderr + ")"
	}
	return msg
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Repository represents a git working tree at a specific directory.
type Repository struct {
	dir     string
	timeout time.Duration
}

// NewRepository returns a Repository targeting dir. A zero timeout leaves
// commands bounded only by the caller's context.
func NewRepository(dir string, timeout time.Duration) *Repository {
	return &Repository{dir: dir, timeout: timeout}
}

func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command targeting this repository and returns stdout.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &ExecError{
			Dir:    r.dir,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.String(), nil
}

// Stage adds path to the index.
func (r *Repository) Stage(ctx context.Context, path string) error {
	_, err := r.Run(ctx, "add", "--", path)
	return err
}

// Record commits the index. The message argument is not used: every
// revision is recorded with PlaceholderMessage.
func (r *Repository) Record(ctx context.Context, _ string) error {
	_, err := r.Run(ctx, "commit", "--quiet", "-m", PlaceholderMessage)
	return err
}

// Revision returns the identifier of HEAD.
func (r *Repository) Revision(ctx context.Context) (string, error) {
	out, err := r.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(out, "\n"), nil
}

// UndoKeep moves HEAD back one revision, leaving the index and working
// tree as they are.
func (r *Repository) UndoKeep(ctx context.Context) error {
	_, err := r.Run(ctx, "reset", "--soft", "HEAD~")
	return err
}

// UndoDiscard moves HEAD back one revision and resets the index and
// working tree to match it.
func (r *Repository) UndoDiscard(ctx context.Context) error {
	_, err := r.Run(ctx, "reset", "--hard", "--quiet", "HEAD~")
	return err
}

// GitDir returns the absolute path of the repository's git directory.
func (r *Repository) GitDir(ctx context.Context) (string, error) {
	out, err := r.Run(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsExecError reports whether err came from a failed git invocation.
func IsExecError(err error) bool {
	var e *ExecError
	return errors.As(err, &e)
}
