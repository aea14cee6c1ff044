package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diff0/diff0/internal/core"
)

type countingJob struct {
	runs  int32
	block chan struct{}
}

func (j *countingJob) Run(_ context.Context, _ *core.ReviewRequest) error {
	if j.block != nil {
		<-j.block
	}
	atomic.AddInt32(&j.runs, 1)
	return nil
}

func dispatcherLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_ProcessesAllQueuedRequests(t *testing.T) {
	job := &countingJob{}
	d := NewDispatcher(job, 3, dispatcherLogger())

	for i := 0; i < 10; i++ {
		req := testRequest()
		req.PRNumber = i + 1
		require.NoError(t, d.Dispatch(context.Background(), req))
	}
	d.Stop()

	assert.EqualValues(t, 10, atomic.LoadInt32(&job.runs))
}

func TestDispatcher_RejectsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	job := &countingJob{block: block}
	d := NewDispatcher(job, 1, dispatcherLogger())

	// One request occupies the worker, the next hundred fill the queue.
	var err error
	for i := 0; i < 102; i++ {
		req := testRequest()
		req.DeliveryID = fmt.Sprintf("delivery-%d", i)
		if err = d.Dispatch(context.Background(), req); err != nil {
			break
		}
	}

	assert.Error(t, err, "a full queue sheds load instead of blocking the webhook")

	close(block)
	d.Stop()
}

func TestDispatcher_StopWaitsForInFlightJobs(t *testing.T) {
	block := make(chan struct{})
	job := &countingJob{block: block}
	d := NewDispatcher(job, 1, dispatcherLogger())

	require.NoError(t, d.Dispatch(context.Background(), testRequest()))

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Stop returned while a job was still running")
	default:
	}

	close(block)
	<-done
	assert.EqualValues(t, 1, atomic.LoadInt32(&job.runs))
}
