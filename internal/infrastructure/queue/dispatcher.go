package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// ErrStopped is returned for work submitted after the dispatcher shut down.
var ErrStopped = errors.New("dispatcher stopped")

const (
	jobQueued int32 = iota
	jobRunning
	jobSettled
)

type job struct {
	ctx   context.Context
	key   string
	fn    func(ctx context.Context) error
	done  chan error
	state atomic.Int32
}

// Dispatcher routes batch mutations to a fixed set of workers using
// consistent hashing on the batch id, so mutations of one batch never
// overlap and run in submission order.
type Dispatcher struct {
	workers []chan *job
	stopped chan struct{}
	pending atomic.Int64
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan *job, numWorkers),
		stopped: make(chan struct{}),
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan *job, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled
// and fail whatever is still queued with ErrStopped.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
	go func() {
		<-ctx.Done()
		close(d.stopped)
	}()
}

// Do runs fn on the worker that owns key and waits for it to finish.
// Waiting gives up when ctx is done; a job whose ctx expired before a worker
// picked it up is skipped.
func (d *Dispatcher) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	j := &job{ctx: ctx, key: key, fn: fn, done: make(chan error, 1)}

	d.pending.Add(1)
	select {
	case d.workers[d.shardIndex(key)] <- j:
	case <-ctx.Done():
		d.pending.Add(-1)
		return ctx.Err()
	case <-d.stopped:
		d.pending.Add(-1)
		return ErrStopped
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		if d.abandon(j) {
			return ErrStopped
		}
		// Already running; its result is on the way.
		return <-j.done
	}
}

// Pending is the number of jobs queued or running across all workers.
func (d *Dispatcher) Pending() int {
	return int(d.pending.Load())
}

// shardIndex maps a batch id deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan *job) {
	for {
		select {
		case <-ctx.Done():
			d.drain(ch)
			return
		case j := <-ch:
			d.run(id, j)
		}
	}
}

// drain fails every job left in ch.
func (d *Dispatcher) drain(ch <-chan *job) {
	for {
		select {
		case j := <-ch:
			d.abandon(j)
		default:
			return
		}
	}
}

func (d *Dispatcher) run(id int, j *job) {
	if !j.state.CompareAndSwap(jobQueued, jobRunning) {
		return
	}

	err := j.ctx.Err()
	if err == nil {
		err = j.fn(j.ctx)
		if err != nil {
			d.log.Debug().Err(err).
				Str("key", j.key).
				Int("worker_id", id).
				Msg("job failed")
		}
	}

	j.state.Store(jobSettled)
	d.pending.Add(-1)
	j.done <- err
}

// abandon settles a job that never started with ErrStopped. It reports
// false when a worker already picked the job up.
func (d *Dispatcher) abandon(j *job) bool {
	if !j.state.CompareAndSwap(jobQueued, jobSettled) {
		return false
	}
	d.pending.Add(-1)
	j.done <- ErrStopped
	return true
}
