package execil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	warnings []string
	errors   []string
}

func (l *testLogger) Warnf(format string, args ...interface{}) {
	l.warnings = append(l.warnings, format)
}

func (l *testLogger) Errorf(format string, args ...interface{}) {
	l.errors = append(l.errors, format)
}

func TestRunAndWaitCapturesStdout(t *testing.T) {
	shell, err := LookPath("sh")
	require.NoError(t, err)

	var out bytes.Buffer
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	log := &testLogger{}
	proc, err := Run(Spawn{
		Exec:   shell,
		Argv:   []string{"sh", "-c", "echo hello"},
		Stdout: w,
	}, log)
	require.NoError(t, err)
	w.Close()

	_, err = out.ReadFrom(r)
	require.NoError(t, err)

	res, err := Wait(proc, log, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.Signaled)
	assert.Equal(t, "hello\n", out.String())
}

func TestWaitReportsNonZeroExit(t *testing.T) {
	shell, err := LookPath("sh")
	require.NoError(t, err)

	log := &testLogger{}
	proc, err := Run(Spawn{Exec: shell, Argv: []string{"sh", "-c", "exit 7"}}, log)
	require.NoError(t, err)

	res, err := Wait(proc, log, false)
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
	assert.NotEmpty(t, log.warnings, "a non-zero exit should be logged as a warning")
}

func TestRunWithMissingChdirReturnsSpawnError(t *testing.T) {
	shell, err := LookPath("sh")
	require.NoError(t, err)

	log := &testLogger{}
	_, err = Run(Spawn{Exec: shell, Argv: []string{"sh", "-c", "true"}, Dir: filepath.Join(t.TempDir(), "does-not-exist")}, log)
	require.Error(t, err)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, ErrChdir, spawnErr.Code)
}

func TestRunWithUnknownExecutableReturnsExecError(t *testing.T) {
	log := &testLogger{}
	_, err := Run(Spawn{Exec: filepath.Join(t.TempDir(), "nonexistent-binary")}, log)
	require.Error(t, err)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, ErrExec, spawnErr.Code)
}

func TestRunRespectsWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644))

	shell, err := LookPath("sh")
	require.NoError(t, err)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	log := &testLogger{}
	proc, err := Run(Spawn{
		Exec:   shell,
		Argv:   []string{"sh", "-c", "ls"},
		Dir:    dir,
		Stdout: w,
	}, log)
	require.NoError(t, err)
	w.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(r)
	require.NoError(t, err)

	_, err = Wait(proc, log, false)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "marker.txt")
}
