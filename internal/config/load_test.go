package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

// chdir moves into dir for the duration of the test. Tests using it must
// not run in parallel.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(orig))
	})
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.BindAddr)
	assert.Equal(t, 1, cfg.Server.ThreadsPerWorker)
	assert.Equal(t, 2000, cfg.Server.WorkerConnections)
	assert.Equal(t, 500, cfg.Server.MaxRequests)
	assert.Equal(t, 50, cfg.Server.MaxRequestsJitter)
	assert.Equal(t, 120*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.GracefulTimeout)
	assert.Equal(t, 5*time.Second, cfg.Server.KeepAlive)
	assert.Equal(t, 2*time.Second, cfg.Workers.GraceWindow)

	require.Len(t, cfg.Workers.Roles, 3)
	assert.Equal(t, "blog_generation", cfg.Workers.Roles[0].Name)
	assert.Equal(t, 6, cfg.Workers.Roles[0].Concurrency)
	assert.Equal(t, "image_generation", cfg.Workers.Roles[1].Name)
	assert.Equal(t, 4, cfg.Workers.Roles[1].Concurrency)
	assert.Empty(t, cfg.Workers.Roles[2].Queues)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, `
log_level: debug
server:
  bind_addr: 127.0.0.1:8080
  keep_alive: 90s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.BindAddr)
	assert.Equal(t, 90*time.Second, cfg.Server.KeepAlive)
	// Untouched keys keep their defaults.
	assert.Equal(t, 500, cfg.Server.MaxRequests)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_PrimaryWinsOverTemplate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "warden.yaml"), "log_level: warn\n")
	writeFile(t, filepath.Join(dir, "warden.template.yaml"), "log_level: error\n")
	chdir(t, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_TemplateFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "warden.template.yaml"), `
server:
  request_timeout: 60s
`)
	chdir(t, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("WARDEN_LOG_LEVEL", "debug")
	t.Setenv("WARDEN_SERVER_BIND_ADDR", "127.0.0.1:9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.BindAddr)
}

func TestLoad_ValidationFailures(t *testing.T) {
	t.Run("bad log level", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "warden.yaml")
		writeFile(t, path, "log_level: loud\n")

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})

	t.Run("duplicate queue binding", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "warden.yaml")
		writeFile(t, path, `
workers:
  roles:
    - name: blog_generation
      queues: [blog_generation]
      concurrency: 6
    - name: blog_retry
      queues: [blog_generation]
      concurrency: 2
`)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "topology")
	})

	t.Run("role colliding with scheduler", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "warden.yaml")
		writeFile(t, path, `
workers:
  roles:
    - name: scheduler
      concurrency: 1
`)

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestConfig_Topology(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	topo := cfg.Topology()
	require.NoError(t, topo.Validate())

	// Three task roles plus scheduler plus the HTTP pool role.
	assert.Len(t, topo.Roles, 5)
	assert.Len(t, topo.TaskRoles(), 3)

	sched, ok := topo.Scheduler()
	require.True(t, ok)
	assert.True(t, sched.Singleton)
}
