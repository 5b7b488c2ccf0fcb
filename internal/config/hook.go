package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
)

// HookEnv is what an accepted search exposes to the hook script.
type HookEnv struct {
	Revision   string
	Path       string
	Iterations int
}

// RunHook runs the configured hook script with /bin/sh. A missing hook
// setting is a no-op; a configured but missing file is an error.
func (c *Config) RunHook(ctx context.Context, h HookEnv, stdout, stderr io.Writer) error {
	if c.Hook == "" {
		return nil
	}
	if _, err := os.Stat(c.Hook); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("hook %s: %w", c.Hook, err)
	}
	cmd := exec.CommandContext(ctx, "/bin/sh", c.Hook)
	cmd.Dir = c.Repo
	cmd.Env = append(
		os.Environ(),
		"gitpow_revision="+h.Revision,
		"gitpow_path="+h.Path,
		"gitpow_iterations="+strconv.Itoa(h.Iterations),
	)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("exec hook: %w", err)
	}
	return nil
}
