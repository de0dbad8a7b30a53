package background

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInBackgroundRoundTripsThroughGetOutput(t *testing.T) {
	e := NewExecutor(t.TempDir(), 2)

	id := e.RunInBackground(KindAgent, "do a thing", func(ctx context.Context) (string, error) {
		return "the result", nil
	})

	job, err := e.GetOutput(id, true, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, "the result", job.Output)
}

func TestRunInBackgroundNonBlockingReturnsImmediately(t *testing.T) {
	e := NewExecutor(t.TempDir(), 2)
	release := make(chan struct{})

	id := e.RunInBackground(KindAgent, "slow thing", func(ctx context.Context) (string, error) {
		<-release
		return "finally done", nil
	})

	job, err := e.GetOutput(id, false, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)

	close(release)
	job, err = e.GetOutput(id, true, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
}

func TestRunBashReturnsCommandOutput(t *testing.T) {
	e := NewExecutor(t.TempDir(), 2)

	id := e.RunBash("echo hello")
	job, err := e.GetOutput(id, true, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Contains(t, job.Output, "hello")
}

func TestRunBashBlocksDangerousCommands(t *testing.T) {
	e := NewExecutor(t.TempDir(), 2)

	id := e.RunBash("sudo rm everything")
	job, err := e.GetOutput(id, true, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusError, job.Status)
	assert.Contains(t, job.Output, "blocked")
}

func TestCompletionEnqueuesNotificationDrainedOnce(t *testing.T) {
	e := NewExecutor(t.TempDir(), 2)

	id := e.RunInBackground(KindBash, "cmd", func(ctx context.Context) (string, error) {
		return "done", nil
	})
	_, err := e.GetOutput(id, true, time.Second)
	require.NoError(t, err)

	notes := e.DrainNotifications()
	require.Len(t, notes, 1)
	assert.Equal(t, id, notes[0].TaskID)
	assert.Equal(t, StatusCompleted, notes[0].Status)

	assert.Empty(t, e.DrainNotifications())
}

func TestStopTaskMarksStoppedAndSignalsDone(t *testing.T) {
	e := NewExecutor(t.TempDir(), 2)
	release := make(chan struct{})

	id := e.RunInBackground(KindAgent, "stoppable", func(ctx context.Context) (string, error) {
		<-release
		return "too late", nil
	})

	require.NoError(t, e.StopTask(id))

	job, err := e.GetOutput(id, true, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, job.Status)

	close(release)
}

func TestReadOutputRespectsOffset(t *testing.T) {
	e := NewExecutor(t.TempDir(), 2)

	id := e.RunInBackground(KindBash, "cmd", func(ctx context.Context) (string, error) {
		return "0123456789", nil
	})
	_, err := e.GetOutput(id, true, time.Second)
	require.NoError(t, err)

	full, err := e.ReadOutput(id, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", full)

	tail, err := e.ReadOutput(id, 5)
	require.NoError(t, err)
	assert.Equal(t, "56789", tail)
}

func TestListSortsByID(t *testing.T) {
	e := NewExecutor(t.TempDir(), 2)

	var ids []string
	for i := 0; i < 3; i++ {
		id := e.RunInBackground(KindBash, "cmd", func(ctx context.Context) (string, error) {
			return "ok", nil
		})
		_, err := e.GetOutput(id, true, time.Second)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	jobs := e.List()
	require.Len(t, jobs, 3)
	for i := 1; i < len(jobs); i++ {
		assert.True(t, jobs[i-1].ID < jobs[i].ID)
	}
}
