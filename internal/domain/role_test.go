package domain

import (
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deploymentRoles() []WorkerRole {
	return []WorkerRole{
		{Name: "blog_generation", Queues: []string{"blog_generation"}, Concurrency: 6},
		{Name: "image_generation", Queues: []string{"image_generation"}, Concurrency: 4},
		{Name: "default", Queues: nil, Concurrency: 4},
		{Name: SchedulerRoleName, Singleton: true},
	}
}

func TestWorkerRole_Validate(t *testing.T) {
	t.Parallel()

	t.Run("valid role", func(t *testing.T) {
		t.Parallel()
		role := WorkerRole{Name: "blog_generation", Queues: []string{"blog_generation"}, Concurrency: 6}
		assert.NoError(t, role.Validate())
	})

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()
		role := WorkerRole{Name: "  ", Concurrency: 4}
		assert.ErrorIs(t, role.Validate(), ErrEmptyRoleName)
	})

	t.Run("zero concurrency", func(t *testing.T) {
		t.Parallel()
		role := WorkerRole{Name: "default", Concurrency: 0}
		assert.ErrorIs(t, role.Validate(), ErrInvalidConcurrency)
	})

	t.Run("singleton needs no concurrency", func(t *testing.T) {
		t.Parallel()
		role := WorkerRole{Name: SchedulerRoleName, Singleton: true}
		assert.NoError(t, role.Validate())
	})
}

func TestWorkerRole_Signature(t *testing.T) {
	t.Parallel()

	role := WorkerRole{Name: "image_generation", Concurrency: 4}
	assert.Equal(t, "--role image_generation", role.Signature())
}

func TestWorkerRole_LogFile(t *testing.T) {
	t.Parallel()

	role := WorkerRole{Name: "default", Concurrency: 4}
	assert.Equal(t, filepath.Join("logs", "default.log"), role.LogFile("logs"))
}

func TestTopology_Validate(t *testing.T) {
	t.Parallel()

	t.Run("deployment topology is valid", func(t *testing.T) {
		t.Parallel()
		topo := Topology{Roles: deploymentRoles()}
		assert.NoError(t, topo.Validate())
	})

	t.Run("duplicate role name", func(t *testing.T) {
		t.Parallel()
		topo := Topology{Roles: []WorkerRole{
			{Name: "default", Concurrency: 4},
			{Name: "default", Concurrency: 6},
		}}
		assert.ErrorIs(t, topo.Validate(), ErrDuplicateRole)
	})

	t.Run("queue bound twice", func(t *testing.T) {
		t.Parallel()
		topo := Topology{Roles: []WorkerRole{
			{Name: "blog_generation", Queues: []string{"blog_generation"}, Concurrency: 6},
			{Name: "blog_backup", Queues: []string{"blog_generation"}, Concurrency: 2},
		}}
		err := topo.Validate()
		require.ErrorIs(t, err, ErrDuplicateQueue)
		assert.Contains(t, err.Error(), "blog_generation")
	})

	t.Run("two singletons", func(t *testing.T) {
		t.Parallel()
		topo := Topology{Roles: []WorkerRole{
			{Name: "scheduler", Singleton: true},
			{Name: "beat", Singleton: true},
		}}
		assert.ErrorIs(t, topo.Validate(), ErrDuplicateSingleton)
	})

	t.Run("invalid member role surfaces", func(t *testing.T) {
		t.Parallel()
		topo := Topology{Roles: []WorkerRole{{Name: "", Concurrency: 4}}}
		assert.ErrorIs(t, topo.Validate(), ErrEmptyRoleName)
	})
}

func TestTopology_Accessors(t *testing.T) {
	t.Parallel()

	topo := Topology{Roles: deploymentRoles()}

	tasks := topo.TaskRoles()
	require.Len(t, tasks, 3)
	assert.Equal(t, "blog_generation", tasks[0].Name)
	assert.Equal(t, "default", tasks[2].Name)

	sched, ok := topo.Scheduler()
	require.True(t, ok)
	assert.Equal(t, SchedulerRoleName, sched.Name)
	assert.True(t, sched.Singleton)

	empty := Topology{}
	_, ok = empty.Scheduler()
	assert.False(t, ok)
}

func TestDefaultShutdownPolicy(t *testing.T) {
	t.Parallel()

	policy := DefaultShutdownPolicy()
	require.Len(t, policy.Steps, 1)
	assert.Equal(t, syscall.SIGTERM, policy.Steps[0].Signal)
	assert.Equal(t, "2s", policy.Steps[0].Wait.String())
	assert.Equal(t, syscall.SIGKILL, policy.Final)
	assert.Greater(t, policy.VerifyWait.Nanoseconds(), int64(0))
}
