package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().FastPath.DirectoryFile, cfg.FastPath.DirectoryFile)
}

func TestLoadParsesYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nsappd.yaml")
	content := `
adp:
  cachesize: 2000000
  cache: true
fastpath:
  gzip_static: true
global:
  cachingmode: none
  shutdowntimeout: 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2000000), cfg.ADP.CacheSize)
	assert.True(t, cfg.ADP.Cache)
	assert.True(t, cfg.FastPath.GzipStatic)
	assert.Equal(t, "none", cfg.Global.CachingMode)
	assert.Equal(t, 30, cfg.Global.ShutdownTimeoutSecs)
}

func TestEnvOverrideTakesPrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nsappd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adp:\n  cachesize: 2000000\n"), 0o644))

	t.Setenv("NSAPPD_ADP_CACHESIZE", "6000000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(6000000), cfg.ADP.CacheSize)
}

func TestValidateRejectsCacheSizeBelowMinimum(t *testing.T) {
	cfg := Default()
	cfg.ADP.CacheSize = 500 * 1024
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cachesize")
}

func TestValidateRejectsUnknownCachingMode(t *testing.T) {
	cfg := Default()
	cfg.Global.CachingMode = "bogus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cachingmode")
}

func TestValidateRejectsUnknownLogLevelAndFormat(t *testing.T) {
	cfg := Default()
	cfg.Global.LogLevel = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loglevel")

	cfg = Default()
	cfg.Global.LogFormat = "xml"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logformat")
}

type recordingLogger struct {
	infos []string
}

func (l *recordingLogger) Warnf(format string, args ...interface{}) {}
func (l *recordingLogger) Infof(format string, args ...interface{}) {
	l.infos = append(l.infos, format)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nsappd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adp:\n  cachesize: 2000000\n"), 0o644))

	changes := make(chan *Config, 4)
	log := &recordingLogger{}
	w, err := Watch(path, func(c *Config) { changes <- c }, log)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("adp:\n  cachesize: 7000000\n"), 0o644))

	select {
	case cfg := <-changes:
		assert.Equal(t, int64(7000000), cfg.ADP.CacheSize)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
