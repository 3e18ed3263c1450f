package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuroflow/internal/pipeline"
)

func waitNote(t *testing.T, d *Dispatcher) Notification {
	t.Helper()
	select {
	case n := <-d.Notifications():
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a notification")
		return Notification{}
	}
}

func TestSubmitDeliversOneNotification(t *testing.T) {
	d := New()
	defer d.Close()

	id, err := d.Submit(pipeline.OpFilter, func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	n := waitNote(t, d)
	assert.Equal(t, id, n.JobID)
	assert.Equal(t, pipeline.OpFilter, n.Op)
	assert.Equal(t, 42, n.Result)
	assert.NoError(t, n.Err)
	assert.False(t, n.Finished.Before(n.Started))

	// No second notification for a single job.
	select {
	case n := <-d.Notifications():
		t.Fatalf("unexpected extra notification: %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSecondSubmissionIsBusy(t *testing.T) {
	d := New()
	defer d.Close()

	release := make(chan struct{})
	running := make(chan struct{})
	first, err := d.Submit(pipeline.OpComputeICA, func(ctx context.Context) (any, error) {
		close(running)
		<-release
		return "done", nil
	})
	require.NoError(t, err)
	<-running
	require.True(t, d.Busy())

	_, err = d.Submit(pipeline.OpFilter, func(ctx context.Context) (any, error) {
		t.Error("rejected job must never run")
		return nil, nil
	})
	require.ErrorIs(t, err, ErrBusy)

	close(release)
	n := waitNote(t, d)
	assert.Equal(t, first, n.JobID)
	assert.Equal(t, "done", n.Result)

	// After the notification the lane accepts work again.
	_, err = d.Submit(pipeline.OpFilter, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)
	waitNote(t, d)
}

func TestNotificationsInSubmissionOrder(t *testing.T) {
	d := New()
	defer d.Close()

	var ids []string
	for i := 0; i < 5; i++ {
		v := i
		id, err := d.Submit(pipeline.OpFilter, func(ctx context.Context) (any, error) {
			return v, nil
		})
		require.NoError(t, err)
		ids = append(ids, id)

		n := waitNote(t, d)
		assert.Equal(t, ids[i], n.JobID)
		assert.Equal(t, v, n.Result)
	}
}

func TestFailedJobReportsError(t *testing.T) {
	d := New()
	defer d.Close()

	boom := errors.New("numerical failure")
	_, err := d.Submit(pipeline.OpComputeICA, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	require.NoError(t, err)

	n := waitNote(t, d)
	assert.ErrorIs(t, n.Err, boom)
	assert.Nil(t, n.Result)
	assert.False(t, d.Busy())
}

func TestPanickingJobBecomesError(t *testing.T) {
	d := New()
	defer d.Close()

	_, err := d.Submit(pipeline.OpComputeTFR, func(ctx context.Context) (any, error) {
		panic("index out of range")
	})
	require.NoError(t, err)

	n := waitNote(t, d)
	require.Error(t, n.Err)
	assert.Contains(t, n.Err.Error(), "index out of range")

	// The lane survives and keeps working.
	_, err = d.Submit(pipeline.OpFilter, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", waitNote(t, d).Result)
}

func TestSubmitAfterClose(t *testing.T) {
	d := New()
	d.Close()
	d.Close() // idempotent

	_, err := d.Submit(pipeline.OpLoad, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrClosed)
}
