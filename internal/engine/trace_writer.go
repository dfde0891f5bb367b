package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
)

const (
	defaultTraceQueue   = 4096
	defaultTraceTimeout = 2 * time.Second
)

// TraceWriter records finished signal traces off the signal path. Offer
// never blocks; a full queue drops the trace.
type TraceWriter struct {
	store   storage.TraceStore
	max     int
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.Mutex
	queue  []domain.SignalTrace
	notify chan struct{}
}

// NewTraceWriter creates a writer holding at most max queued traces.
func NewTraceWriter(store storage.TraceStore, max int, timeout time.Duration, logger zerolog.Logger) *TraceWriter {
	if max <= 0 {
		max = defaultTraceQueue
	}
	if timeout <= 0 {
		timeout = defaultTraceTimeout
	}
	return &TraceWriter{
		store:   store,
		max:     max,
		timeout: timeout,
		log:     logger.With().Str("component", "trace_writer").Logger(),
		notify:  make(chan struct{}, 1),
	}
}

// Offer queues t for writing. Returns false if the queue was full.
func (w *TraceWriter) Offer(t domain.SignalTrace) bool {
	w.mu.Lock()
	if len(w.queue) >= w.max {
		w.mu.Unlock()
		observability.RecordTraceDropped()
		return false
	}
	w.queue = append(w.queue, t)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of queued traces.
func (w *TraceWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Run writes queued traces until ctx is done, then drains what is left.
// A batch in progress completes; each write is bounded by the timeout.
func (w *TraceWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.Flush(context.WithoutCancel(ctx))
			return nil
		case <-w.notify:
			w.Flush(context.WithoutCancel(ctx))
		}
	}
}

// Flush writes every queued trace in arrival order. Traces are append-only,
// so a failed write is logged and not retried.
func (w *TraceWriter) Flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.queue
	w.queue = nil
	w.mu.Unlock()

	for i := range batch {
		t := batch[i]
		wctx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.store.Insert(wctx, &t)
		cancel()
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			w.log.Warn().Err(err).Str("signal_id", t.SignalID).Msg("record trace")
		}
	}
}
