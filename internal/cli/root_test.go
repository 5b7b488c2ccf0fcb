package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redpwn/gitpow/internal/input"
	"github.com/redpwn/gitpow/internal/lock"
)

func gitOut(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git not available: %v", err)
	}
	dir := t.TempDir()
	gitOut(t, dir, "init", "--quiet")
	gitOut(t, dir, "config", "user.name", "Test")
	gitOut(t, dir, "config", "user.email", "test@test.local")
	gitOut(t, dir, "config", "commit.gpgsign", "false")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("test\n"), 0644))
	gitOut(t, dir, "add", "README")
	gitOut(t, dir, "commit", "--quiet", "-m", "initial")
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestMineAcceptsWithNoZeroes(t *testing.T) {
	dir := initRepo(t)

	stdout, stderr, err := execute(t, "", "--repo", dir, "--zeroes", "0", "hello")
	require.NoError(t, err)

	head := gitOut(t, dir, "rev-parse", "HEAD")
	assert.Equal(t, "Match on iteration: 1; "+head+"\n", stdout)
	assert.Contains(t, stderr, "commit prior to operations")
	assert.Contains(t, stderr, "run=")

	path := filepath.Join(dir, "files", helloDigest)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	assert.Equal(t, "files/"+helloDigest, gitOut(t, dir, "show", "--name-only", "--format=", "HEAD"))
	assert.Equal(t, "Trial", gitOut(t, dir, "log", "-1", "--format=%s"))
}

func TestMineRelativeRepo(t *testing.T) {
	dir := initRepo(t)
	t.Chdir(filepath.Dir(dir))

	stdout, _, err := execute(t, "", "--repo", filepath.Base(dir), "--zeroes", "0", "--quiet", "hello")
	require.NoError(t, err)

	head := gitOut(t, dir, "rev-parse", "HEAD")
	assert.Equal(t, "Match on iteration: 1; "+head+"\n", stdout)
	assert.Equal(t, "files/"+helloDigest, gitOut(t, dir, "show", "--name-only", "--format=", "HEAD"))
	assert.Empty(t, gitOut(t, dir, "status", "--porcelain"))
	_, statErr := os.Stat(filepath.Join(dir, filepath.Base(dir)))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestMineExhaustedRestoresHistory(t *testing.T) {
	dir := initRepo(t)
	before := gitOut(t, dir, "rev-parse", "HEAD")

	stdout, _, err := execute(t, "", "--repo", dir, "--zeroes", "40", "--max-tries", "2", "--quiet", "hello")
	require.Error(t, err)
	assert.Equal(t, ExitExhausted, GetExitCode(err))
	assert.Equal(t, "Maximum Tries Reached\n", stdout)

	assert.Equal(t, before, gitOut(t, dir, "rev-parse", "HEAD"))
	assert.Empty(t, gitOut(t, dir, "status", "--porcelain"))
	_, statErr := os.Stat(filepath.Join(dir, "files", helloDigest))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestMineReadsPipedStdin(t *testing.T) {
	dir := initRepo(t)

	stdout, _, err := execute(t, "hello\n", "--repo", dir, "--zeroes", "0", "--format", "json", "--quiet")
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "accepted", report.Status)
	assert.Equal(t, 1, report.Iterations)
	assert.Equal(t, helloDigest, report.Digest)
	assert.Equal(t, gitOut(t, dir, "rev-parse", "HEAD"), report.Revision)
	assert.Equal(t, gitOut(t, dir, "rev-parse", "HEAD~"), report.Previous)
}

func TestMineEmptyPayload(t *testing.T) {
	dir := initRepo(t)
	before := gitOut(t, dir, "rev-parse", "HEAD")

	_, _, err := execute(t, "\n", "--repo", dir, "--quiet")
	require.Error(t, err)
	assert.ErrorIs(t, err, input.ErrEmptyPayload)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, before, gitOut(t, dir, "rev-parse", "HEAD"))
}

func TestMineRepositoryLocked(t *testing.T) {
	dir := initRepo(t)
	held, err := lock.Acquire(filepath.Join(dir, ".git"))
	require.NoError(t, err)
	defer held.Release()

	_, _, err = execute(t, "", "--repo", dir, "--zeroes", "0", "--quiet", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, lock.ErrLocked)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMineNotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git not available: %v", err)
	}
	_, _, err := execute(t, "", "--repo", t.TempDir(), "--quiet", "hello")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "open repository")
}

func TestMineRunsHook(t *testing.T) {
	dir := initRepo(t)
	marker := filepath.Join(t.TempDir(), "hook.out")
	hook := filepath.Join(t.TempDir(), "hook.sh")
	script := "echo \"$gitpow_revision $gitpow_iterations\" > " + marker + "\n"
	require.NoError(t, os.WriteFile(hook, []byte(script), 0644))

	_, _, err := execute(t, "", "--repo", dir, "--zeroes", "0", "--quiet", "--hook", hook, "hello")
	require.NoError(t, err)

	out, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, gitOut(t, dir, "rev-parse", "HEAD")+" 1\n", string(out))
}

func TestInvalidFlags(t *testing.T) {
	tests := map[string][]string{
		"zero tries":     {"--max-tries", "0", "hello"},
		"too many zeros": {"--zeroes", "41", "hello"},
		"bad format":     {"--format", "xml", "hello"},
		"bad digest":     {"--digest", "md5", "hello"},
		"bad size":       {"--max-payload", "lots", "hello"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := execute(t, "", args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), "load config")
		})
	}
}

func TestTooManyArgs(t *testing.T) {
	_, _, err := execute(t, "", "one", "two")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
