// Package dispatch runs pipeline jobs on a single background lane.
//
// The lane accepts at most one job at a time: submitting while a job is
// outstanding fails with ErrBusy instead of queueing. Every accepted job
// produces exactly one notification on the Notifications channel, in
// submission order. Jobs are never cancelled once started.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"neuroflow/internal/pipeline"
)

// ErrBusy is returned by Submit while a previous job is still outstanding.
var ErrBusy = errors.New("a job is already running")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatcher is closed")

// RunFunc does the actual work of a job on the background lane. The
// context carries no deadline; running jobs are not cancelled.
type RunFunc func(ctx context.Context) (any, error)

// Notification reports the outcome of one job. Exactly one is delivered
// per accepted submission.
type Notification struct {
	JobID    string
	Op       pipeline.Operation
	Result   any
	Err      error
	Started  time.Time
	Finished time.Time
}

// Dispatcher owns the background lane. Create with New, stop with Close.
type Dispatcher struct {
	mu     sync.Mutex
	active string // outstanding job id, empty when idle
	closed bool

	jobs  chan job
	notes chan Notification
	quit  chan struct{}
	done  chan struct{}

	closeOnce sync.Once
}

type job struct {
	id  string
	op  pipeline.Operation
	run RunFunc
}

// New starts the background lane.
func New() *Dispatcher {
	d := &Dispatcher{
		// Capacity one: Submit marks the lane busy before sending, so
		// the buffer never holds more than a single job and the send
		// cannot block.
		jobs:  make(chan job, 1),
		notes: make(chan Notification, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go d.worker()
	return d
}

// Submit hands a job to the lane and returns its id. It fails with
// ErrBusy when a job is outstanding and ErrClosed after Close; in both
// cases the job never runs and no notification is produced.
func (d *Dispatcher) Submit(op pipeline.Operation, run RunFunc) (string, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", ErrClosed
	}
	if d.active != "" {
		d.mu.Unlock()
		return "", ErrBusy
	}
	id := uuid.NewString()
	d.active = id
	d.mu.Unlock()

	d.jobs <- job{id: id, op: op, run: run}
	return id, nil
}

// Busy reports whether a job is outstanding.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active != ""
}

// Notifications delivers one outcome per accepted job, in submission
// order. The channel is never closed while the dispatcher is running.
func (d *Dispatcher) Notifications() <-chan Notification {
	return d.notes
}

// Close stops the lane. A job that already started still runs to
// completion, but its notification may be dropped. Close is idempotent.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.quit)
	})
	<-d.done
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	ctx := context.Background()
	for {
		select {
		case <-d.quit:
			return
		case jb := <-d.jobs:
			started := time.Now()
			result, err := runGuarded(ctx, jb.run)
			n := Notification{
				JobID:    jb.id,
				Op:       jb.op,
				Result:   result,
				Err:      err,
				Started:  started,
				Finished: time.Now(),
			}

			// Clear the busy flag before delivering, so a caller that
			// reacts to the notification can submit again without a
			// spurious ErrBusy.
			d.mu.Lock()
			d.active = ""
			d.mu.Unlock()

			select {
			case d.notes <- n:
			case <-d.quit:
				return
			}
		}
	}
}

// runGuarded keeps a misbehaving computation from taking down the lane:
// a panic comes back as an ordinary job error.
func runGuarded(ctx context.Context, run RunFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return run(ctx)
}
