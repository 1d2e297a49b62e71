//go:build unix

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filehandle/pkg/filehandle"
)

type testEnv struct {
	dir        string
	configPath string
	filePath   string
	logPath    string
}

// newTestEnv writes a config file targeting a file in a temp directory.
// extra is appended verbatim to the YAML document.
func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", "")

	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		filePath:   filepath.Join(dir, "locked.txt"),
		logPath:    filepath.Join(dir, "flockctl.log"),
	}

	content := fmt.Sprintf(`logging:
  level: INFO
  format: text
  output: %q
file:
  path: %q
  permissions: "0640"
hold:
  duration: 50ms
%s`, env.logPath, env.filePath, extra)

	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0644))
	return env
}

func (e *testEnv) run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	full := append([]string{"-config", e.configPath}, args...)
	err := run(ctx, full, &stdout, &stderr)
	return stdout.String(), err
}

func (e *testEnv) logs(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(e.logPath)
	require.NoError(t, err)
	return string(data)
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), nil, &stdout, &stderr)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr.String(), "Commands:")

	err = run(context.Background(), []string{"frobnicate"}, &stdout, &stderr)
	assert.ErrorIs(t, err, errUsage)

	err = run(context.Background(), []string{"-no-such-flag"}, &stdout, &stderr)
	assert.ErrorIs(t, err, errUsage)
}

func TestRun_HoldThenRead(t *testing.T) {
	env := newTestEnv(t, "  stamp: true\n")

	_, err := env.run(context.Background(), "hold", "hello", "there")
	require.NoError(t, err)

	info, err := os.Stat(env.filePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())

	out, err := env.run(context.Background(), "read")
	require.NoError(t, err)

	pattern := fmt.Sprintf(`^hello there\nholder [0-9a-f-]{36} pid %d\n$`, os.Getpid())
	assert.Regexp(t, regexp.MustCompile(pattern), out)
	assert.Contains(t, env.logs(t), "Lock released")
}

func TestRun_HoldUsesConfiguredText(t *testing.T) {
	env := newTestEnv(t, "  text: from config\n")

	_, err := env.run(context.Background(), "hold")
	require.NoError(t, err)

	data, err := os.ReadFile(env.filePath)
	require.NoError(t, err)
	assert.Equal(t, "from config", string(data))
}

func TestRun_HoldEndsOnCancel(t *testing.T) {
	env := newTestEnv(t, "")
	t.Setenv("FLOCKCTL_HOLD_DURATION", "1h")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := env.run(ctx, "hold")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Contains(t, env.logs(t), "Interrupted")
}

func TestRun_TryStrategyReportsContention(t *testing.T) {
	env := newTestEnv(t, "")
	t.Setenv("FLOCKCTL_LOCK_STRATEGY", "try")

	other := filehandle.New(env.filePath, 0640)
	_, err := other.Open(filehandle.IntentReadWrite)
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, other.LockExclusive())

	_, err = env.run(context.Background(), "read")
	require.Error(t, err)
	assert.True(t, errors.Is(err, filehandle.ErrWouldBlock), "got %v", err)
	assert.Contains(t, env.logs(t), "locked by another holder")

	require.NoError(t, other.Unlock())
	_, err = env.run(context.Background(), "read")
	assert.NoError(t, err)
}

func TestRun_PollStrategyTimesOut(t *testing.T) {
	env := newTestEnv(t, `lock:
  strategy: poll
  poll:
    rate: 50
    burst: 1
    timeout: 100ms
`)

	other := filehandle.New(env.filePath, 0640)
	_, err := other.Open(filehandle.IntentReadWrite)
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, other.LockShared())

	_, err = env.run(context.Background(), "append", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, filehandle.ErrWouldBlock)

	// Shared locks are compatible with the holder
	_, err = env.run(context.Background(), "read")
	assert.NoError(t, err)
}

func TestRun_Append(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(context.Background(), "append", "first")
	require.NoError(t, err)
	_, err = env.run(context.Background(), "append", "second", "line")
	require.NoError(t, err)

	data, err := os.ReadFile(env.filePath)
	require.NoError(t, err)
	assert.Equal(t, "\nfirst\nsecond line", string(data))

	_, err = env.run(context.Background(), "append")
	assert.ErrorIs(t, err, errUsage)
}

func TestRun_Chmod(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, os.WriteFile(env.filePath, []byte("x"), 0600))

	out, err := env.run(context.Background(), "chmod", "0604")
	require.NoError(t, err)
	assert.Contains(t, out, "mode 0604")

	info, err := os.Stat(env.filePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0604), info.Mode().Perm())

	_, err = env.run(context.Background(), "chmod", "rwx")
	require.Error(t, err)

	_, err = env.run(context.Background(), "chmod")
	assert.ErrorIs(t, err, errUsage)
}

func TestRun_Stat(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(context.Background(), "stat")
	require.NoError(t, err)
	assert.Contains(t, out, "exists:    false")

	require.NoError(t, os.WriteFile(env.filePath, []byte("12345"), 0600))
	require.NoError(t, os.Chmod(env.filePath, 0600))

	out, err = env.run(context.Background(), "stat")
	require.NoError(t, err)

	for _, want := range []string{
		"exists:    true",
		"size:      5",
		"mode:      0600",
		"owner:     true",
		"readable:  true",
		"writable:  true",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRun_FileFlagOverridesConfig(t *testing.T) {
	env := newTestEnv(t, "")
	other := filepath.Join(env.dir, "other.txt")

	_, err := env.run(context.Background(), "-file", other, "append", "x")
	require.NoError(t, err)

	_, err = os.Stat(other)
	assert.NoError(t, err)
	_, err = os.Stat(env.filePath)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_LogLevelFlag(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(context.Background(), "-log-level", "ERROR", "append", "quiet")
	require.NoError(t, err)

	assert.NotContains(t, env.logs(t), "Appended")
}

func TestRun_Init(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-config", path, "init"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), path)

	err = run(context.Background(), []string{"-config", path, "init"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	err = run(context.Background(), []string{"-config", path, "init", "-force"}, &stdout, &stderr)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# flockctl Configuration File"))
}

func TestRun_MissingConfigFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "none.yaml"), "stat"}, &stdout, &stderr)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errUsage)
}

func TestRun_MetricsSummary(t *testing.T) {
	env := newTestEnv(t, "metrics:\n  enabled: true\n")

	_, err := env.run(context.Background(), "append", "counted")
	require.NoError(t, err)

	logs := env.logs(t)
	assert.Contains(t, logs, `filehandle_bytes_total{direction="write"}`)
	assert.Contains(t, logs, `filehandle_operations_total{op="open",status="success"}`)
}
