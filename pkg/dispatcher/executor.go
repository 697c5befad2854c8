package dispatcher

import (
	"fmt"
	"sync"
	"sync/atomic"

	infinity "github.com/Code-Hex/go-infinity-channel"
	"github.com/rs/zerolog"
)

// Executor runs tasks in the order they were submitted, one at a time.
// Async must return without waiting for task to run.
type Executor interface {
	Async(task func())
}

// Immediate runs each task on the calling goroutine. Ordering then follows
// the callers; use it in tests or when the caller already serializes.
type Immediate struct{}

func (Immediate) Async(task func()) { task() }

// SerialQueue is an Executor backed by a single worker goroutine.
//
// With size <= 0 the queue is unbounded and Async never blocks. With size > 0
// Async blocks while size tasks are pending. A task running on the queue must
// not submit to a full bounded queue.
type SerialQueue struct {
	in   chan<- func()
	stop func()

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup

	pending atomic.Int64
	logger  zerolog.Logger
}

// NewSerialQueue starts the worker. Call Close to drain and stop it.
func NewSerialQueue(size int, logger zerolog.Logger) *SerialQueue {
	q := &SerialQueue{logger: logger}
	var out <-chan func()
	if size <= 0 {
		ch := infinity.NewChannel[func()]()
		q.in, out, q.stop = ch.In(), ch.Out(), ch.Close
	} else {
		ch := make(chan func(), size)
		q.in, out, q.stop = ch, ch, func() { close(ch) }
	}

	q.wg.Add(1)
	go q.run(out)
	return q
}

func (q *SerialQueue) run(out <-chan func()) {
	defer q.wg.Done()
	for task := range out {
		q.exec(task)
	}
}

func (q *SerialQueue) exec(task func()) {
	defer func() {
		q.pending.Add(-1)
		queuePending.Dec()
		if r := recover(); r != nil {
			sinkPanicsTotal.Inc()
			q.logger.Error().Str("panic", fmt.Sprint(r)).Msg("dispatcher task panicked")
		}
	}()
	task()
}

// Async enqueues task. Tasks submitted after Close are dropped.
func (q *SerialQueue) Async(task func()) {
	q.submit(task)
}

func (q *SerialQueue) submit(task func()) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		skippedTotal.WithLabelValues(reasonClosed).Inc()
		return false
	}
	q.pending.Add(1)
	queuePending.Inc()
	q.in <- task
	return true
}

// Flush blocks until every task submitted before the call has run. It must
// not be called from a task.
func (q *SerialQueue) Flush() {
	done := make(chan struct{})
	if !q.submit(func() { close(done) }) {
		return
	}
	<-done
}

// Pending returns the number of queued or running tasks.
func (q *SerialQueue) Pending() int { return int(q.pending.Load()) }

// Close stops accepting tasks, runs everything already queued and waits for
// the worker to exit. It is safe to call more than once.
func (q *SerialQueue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.stop()
		q.mu.Unlock()
		q.wg.Wait()
	})
}
