package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
	"github.com/taskflow/taskflow-api/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
)

// Reconciler applies a billing event to local state.
type Reconciler interface {
	Reconcile(ctx context.Context, event *domain.BillingEvent) error
}

// Dispatcher retries dead-lettered billing events on a fixed set of workers.
// Letters are sharded by the event's ordering key so retries touching the same
// subscription run in order on one worker.
type Dispatcher struct {
	workers    []chan domain.DeadLetter
	reconciler Reconciler
	store      ports.BillingEventStore
	log        zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, reconciler Reconciler, store ports.BillingEventStore, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:    make([]chan domain.DeadLetter, numWorkers),
		reconciler: reconciler,
		store:      store,
		log:        log,
		inflight:   make(map[string]struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.DeadLetter, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands a letter to its shard without blocking. It reports false when
// the letter is already queued or the shard is full; the next sweep picks it
// up again.
func (d *Dispatcher) Enqueue(letter domain.DeadLetter) bool {
	d.mu.Lock()
	if _, ok := d.inflight[letter.ID]; ok {
		d.mu.Unlock()
		return false
	}
	d.inflight[letter.ID] = struct{}{}
	d.mu.Unlock()

	idx := d.shardIndex(letter.Event.OrderingKey())
	select {
	case d.workers[idx] <- letter:
		metrics.RetryQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		metrics.DeadLettersTotal.WithLabelValues("retried").Inc()
		return true
	default:
		d.done(letter.ID)
		return false
	}
}

// shardIndex maps an ordering key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) done(id string) {
	d.mu.Lock()
	delete(d.inflight, id)
	d.mu.Unlock()
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.DeadLetter) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case letter, ok := <-ch:
			if !ok {
				return
			}
			metrics.RetryQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.retry(ctx, id, letter)
			d.done(letter.ID)
		}
	}
}

func (d *Dispatcher) retry(ctx context.Context, workerID int, letter domain.DeadLetter) {
	log := d.log.With().
		Str("dead_letter_id", letter.ID).
		Str("event_id", letter.Event.ID).
		Str("event_type", letter.Event.Type).
		Int("attempt", letter.Attempts+1).
		Int("worker_id", workerID).
		Logger()

	start := time.Now()
	err := d.reconciler.Reconcile(ctx, &letter.Event)
	if err != nil {
		metrics.RetryDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		metrics.DeadLettersTotal.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Msg("billing event retry failed")
		if ferr := d.store.FailDeadLetter(ctx, letter.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("failed to record retry failure")
		}
		return
	}

	metrics.RetryDuration.WithLabelValues("resolved").Observe(time.Since(start).Seconds())
	metrics.DeadLettersTotal.WithLabelValues("resolved").Inc()
	log.Info().Msg("billing event retry resolved")
	if rerr := d.store.ResolveDeadLetter(ctx, letter.ID); rerr != nil {
		log.Error().Err(rerr).Msg("failed to resolve dead letter")
	}
}
