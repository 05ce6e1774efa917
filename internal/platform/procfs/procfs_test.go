package procfs

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_ContainsSelf(t *testing.T) {
	t.Parallel()

	table := New()
	entries, err := table.Snapshot()
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	self := os.Getpid()
	var found bool
	for _, e := range entries {
		if e.PID == self {
			found = true
			assert.NotEmpty(t, e.Cmdline)
			assert.NotZero(t, e.StartTicks)
		}
	}
	assert.True(t, found, "snapshot should include the test process")
}

func TestSnapshot_FakeProcRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "4242"), 0o755))
	cmdline := []byte("appctl\x00task-worker\x00--role\x00default\x00")
	require.NoError(t, os.WriteFile(filepath.Join(root, "4242", "cmdline"), cmdline, 0o644))
	// Non-numeric entries and processes without a cmdline are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "self"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "999"), 0o755))

	table := NewWithRoot(root)
	entries, err := table.Snapshot()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4242, entries[0].PID)
	assert.Equal(t, "appctl task-worker --role default", entries[0].Cmdline)

	pids, err := table.FindBySignature("--role default")
	require.NoError(t, err)
	assert.Equal(t, []int{4242}, pids)

	pids, err = table.FindBySignature("--role blog_generation")
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestFindBySignature(t *testing.T) {
	t.Parallel()

	marker := fmt.Sprintf("procfs-sig-%d", os.Getpid())
	cmd := exec.Command("sh", "-c", fmt.Sprintf(": %s; sleep 30", marker))
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	table := New()
	require.Eventually(t, func() bool {
		pids, err := table.FindBySignature(marker)
		return err == nil && len(pids) == 1 && pids[0] == cmd.Process.Pid
	}, 2*time.Second, 50*time.Millisecond)

	pids, err := table.FindBySignature("no-such-signature-anywhere-7f3a")
	require.NoError(t, err)
	assert.Empty(t, pids)

	pids, err = table.FindBySignature("")
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestAlive(t *testing.T) {
	t.Parallel()

	table := New()
	assert.True(t, table.Alive(os.Getpid()))
	assert.False(t, table.Alive(0))
	assert.False(t, table.Alive(-1))
}

func TestSignal(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())

	table := New()
	require.NoError(t, table.Signal(cmd.Process.Pid, syscall.SIGTERM))

	err := cmd.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminated")

	// A PID beyond pid_max cannot exist; ESRCH is treated as success.
	assert.NoError(t, table.Signal(1<<30, syscall.SIGTERM))
}

func TestStartTicks(t *testing.T) {
	t.Parallel()

	table := New()
	ticks, err := table.StartTicks(os.Getpid())
	require.NoError(t, err)
	assert.NotZero(t, ticks)

	_, err = table.StartTicks(1 << 30)
	assert.Error(t, err)
}
