// Package embedqueue provides the asynchronous embedding queue that sits
// between synchronous parsing/DB updates and embedding generation. Jobs are
// processed in batches by a single background goroutine; a failed batch falls
// back to per-item embedding so one bad section cannot poison the batch.
package embedqueue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mdgraph/mdgraph/pkg/embedder"
)

// DefaultBatchSize is the number of jobs embedded per provider call.
const DefaultBatchSize = 32

// DefaultRequestTimeout bounds a single provider call.
const DefaultRequestTimeout = 30 * time.Second

// ErrStopped is returned by Drain when the queue is not running and jobs
// remain that would never complete.
var ErrStopped = errors.New("embedding queue stopped")

// Job is one section waiting to be embedded.
type Job struct {
	SectionID int64
	DocID     string
	Heading   string
	Content   string
}

// Store receives finished embeddings for persistence.
type Store interface {
	UpdateEmbedding(ctx context.Context, sectionID int64, vector []float32, model string) error
}

// Index receives finished embeddings for in-memory search.
type Index interface {
	Upsert(sectionID int64, docID string, vector []float32) error
}

// EventType identifies a queue lifecycle event.
type EventType string

const (
	EventJobComplete   EventType = "job:complete"
	EventJobError      EventType = "job:error"
	EventQueueEmpty    EventType = "queue:empty"
	EventQueueProgress EventType = "queue:progress"
)

// Event carries the payload of a queue event. Which fields are set depends
// on the event type.
type Event struct {
	Type      EventType
	SectionID int64
	DocID     string
	Completed int
	Total     int
	Err       error
}

// Listener receives queue events. Listeners run on the queue goroutine;
// panics are swallowed so a bad listener cannot kill the pump.
type Listener func(Event)

// Options configures a Queue.
type Options struct {
	BatchSize      int
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Queue batches embedding jobs and writes results to the store and the
// vector index. Enqueueing a section that is already queued replaces its
// content in place instead of adding a duplicate job.
type Queue struct {
	provider  embedder.Client
	store     Store
	index     Index
	batchSize int
	timeout   time.Duration
	logger    *slog.Logger

	mu             sync.Mutex
	jobs           []*Job
	queued         map[int64]*Job
	listeners      map[int]Listener
	nextListenerID int
	drainWaiters   []chan struct{}
	completed      int
	totalEnqueued  int
	processing     bool
	running        bool
	stopCh         chan struct{}
	done           chan struct{}

	// wake is buffered so enqueue never blocks on the pump
	wake chan struct{}
}

// New creates a queue. The queue does not process jobs until Start is called.
func New(provider embedder.Client, store Store, index Index, opts Options) *Queue {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Queue{
		provider:  provider,
		store:     store,
		index:     index,
		batchSize: opts.BatchSize,
		timeout:   opts.RequestTimeout,
		logger:    opts.Logger,
		queued:    make(map[int64]*Job),
		listeners: make(map[int]Listener),
		wake:      make(chan struct{}, 1),
	}
}

// Start launches the background pump. Calling Start on a running queue is a
// no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.done = make(chan struct{})
	go q.run(q.stopCh, q.done)
	q.wakeUp()
}

// Stop halts the pump, waiting only for the in-flight batch to finish.
// Remaining jobs stay queued and resume on the next Start.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	stopCh, done := q.stopCh, q.done
	q.mu.Unlock()

	close(stopCh)
	<-done
}

// Enqueue adds jobs to the queue. A job whose section is already queued
// replaces the queued job's content in place.
func (q *Queue) Enqueue(jobs ...Job) {
	q.mu.Lock()
	for i := range jobs {
		job := jobs[i]
		if existing, ok := q.queued[job.SectionID]; ok {
			*existing = job
			continue
		}
		j := &job
		q.jobs = append(q.jobs, j)
		q.queued[job.SectionID] = j
		q.totalEnqueued++
	}
	running := q.running
	q.mu.Unlock()

	if running {
		q.wakeUp()
	}
}

// Pending returns the number of jobs waiting in the queue.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Completed returns the number of jobs completed since the last Clear.
func (q *Queue) Completed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// Drain blocks until the queue is empty and no batch is in flight, the
// context is cancelled, or the queue is found stopped with work remaining.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if len(q.jobs) == 0 && !q.processing {
		q.mu.Unlock()
		return nil
	}
	if !q.running {
		q.mu.Unlock()
		return ErrStopped
	}
	waiter := make(chan struct{})
	q.drainWaiters = append(q.drainWaiters, waiter)
	q.mu.Unlock()

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear drops all queued jobs and resets the counters. An in-flight batch
// still completes.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.jobs = nil
	q.queued = make(map[int64]*Job)
	q.completed = 0
	q.totalEnqueued = 0
	running := q.running
	q.mu.Unlock()

	// Let the pump observe the empty queue and release drain waiters
	if running {
		q.wakeUp()
	}
}

// On registers a listener and returns its id for Off.
func (q *Queue) On(l Listener) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextListenerID++
	q.listeners[q.nextListenerID] = l
	return q.nextListenerID
}

// Off removes a listener registered with On.
func (q *Queue) Off(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.listeners, id)
}

func (q *Queue) wakeUp() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run(stopCh, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stopCh:
			return
		case <-q.wake:
		}

		for {
			batch := q.takeBatch()
			if batch == nil {
				break
			}
			q.processBatch(batch)
			q.finishBatch()

			select {
			case <-stopCh:
				return
			default:
			}
		}
		q.notifyIfEmpty()
	}
}

// takeBatch removes up to batchSize jobs from the queue and marks the queue
// as processing. Returns nil when no jobs remain.
func (q *Queue) takeBatch() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil
	}
	n := q.batchSize
	if n > len(q.jobs) {
		n = len(q.jobs)
	}
	batch := q.jobs[:n:n]
	q.jobs = q.jobs[n:]
	for _, job := range batch {
		delete(q.queued, job.SectionID)
	}
	q.processing = true
	return batch
}

func (q *Queue) finishBatch() {
	q.mu.Lock()
	q.processing = false
	q.mu.Unlock()
}

// notifyIfEmpty emits queue:empty and releases drain waiters once nothing is
// queued or in flight.
func (q *Queue) notifyIfEmpty() {
	q.mu.Lock()
	if len(q.jobs) > 0 || q.processing {
		q.mu.Unlock()
		return
	}
	waiters := q.drainWaiters
	q.drainWaiters = nil
	q.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	q.emit(Event{Type: EventQueueEmpty})
}

func (q *Queue) processBatch(batch []*Job) {
	texts := make([]string, len(batch))
	for i, job := range batch {
		if job.Heading != "" {
			texts[i] = job.Heading + "\n" + job.Content
		} else {
			texts[i] = job.Content
		}
	}

	results, err := q.embedBatch(texts)
	if err != nil {
		q.logger.Warn("batch embed failed, retrying items individually", "error", err, "batch", len(batch))
		results = q.embedIndividually(batch, texts)
	}

	for i, job := range batch {
		var result *embedder.Result
		if i < len(results) {
			result = results[i]
		}
		if result == nil {
			// Errors from the individual fallback were already reported
			if err == nil {
				q.emit(Event{Type: EventJobError, SectionID: job.SectionID, DocID: job.DocID, Err: embedder.ErrNoResult})
			}
			continue
		}

		if storeErr := q.storeResult(job, result); storeErr != nil {
			q.emit(Event{Type: EventJobError, SectionID: job.SectionID, DocID: job.DocID, Err: storeErr})
			continue
		}

		q.mu.Lock()
		q.completed++
		completed, total := q.completed, q.totalEnqueued
		q.mu.Unlock()

		q.emit(Event{Type: EventJobComplete, SectionID: job.SectionID, DocID: job.DocID})
		q.emit(Event{Type: EventQueueProgress, Completed: completed, Total: total})
	}
}

func (q *Queue) embedBatch(texts []string) ([]*embedder.Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	return q.provider.EmbedBatch(ctx, texts)
}

// embedIndividually retries each job on its own after a failed batch call.
// Failed items are reported as job:error and returned as nil.
func (q *Queue) embedIndividually(batch []*Job, texts []string) []*embedder.Result {
	results := make([]*embedder.Result, len(texts))
	for i, text := range texts {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		result, err := q.provider.Embed(ctx, text)
		cancel()
		if err != nil {
			q.emit(Event{Type: EventJobError, SectionID: batch[i].SectionID, DocID: batch[i].DocID, Err: err})
			continue
		}
		results[i] = result
	}
	return results
}

func (q *Queue) storeResult(job *Job, result *embedder.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.store.UpdateEmbedding(ctx, job.SectionID, result.Vector, result.Model); err != nil {
		return err
	}
	return q.index.Upsert(job.SectionID, job.DocID, result.Vector)
}

func (q *Queue) emit(event Event) {
	q.mu.Lock()
	listeners := make([]Listener, 0, len(q.listeners))
	for _, l := range q.listeners {
		listeners = append(listeners, l)
	}
	q.mu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					q.logger.Error("queue listener panicked", "panic", r)
				}
			}()
			l(event)
		}()
	}
}
