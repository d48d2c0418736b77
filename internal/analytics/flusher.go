package analytics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultFlushInterval is how often pending deltas are folded into Postgres.
const DefaultFlushInterval = 30 * time.Second

// FunnelCounterStore is the slice of the funnel repository the flusher needs.
type FunnelCounterStore interface {
	AddCounters(ctx context.Context, id, views, submissions int64) error
}

// Flusher periodically drains the Redis counters into the funnel rollups.
type Flusher struct {
	counter *Counter
	store   FunnelCounterStore

	interval time.Duration
	mu       sync.Mutex
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

// NewFlusher builds a flusher with the default interval.
func NewFlusher(counter *Counter, store FunnelCounterStore) *Flusher {
	return &Flusher{
		counter:  counter,
		store:    store,
		interval: DefaultFlushInterval,
	}
}

// SetInterval overrides the flush cadence. Used by tests.
func (f *Flusher) SetInterval(d time.Duration) { f.interval = d }

// Start launches the background flush loop.
func (f *Flusher) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return fmt.Errorf("analytics flusher already running")
	}
	f.running = true
	f.stop = make(chan struct{})
	f.done = make(chan struct{})

	go f.loop()
	log.Printf("[analytics] flusher started (interval %s)", f.interval)
	return nil
}

// Stop halts the loop and performs one final flush so counts survive
// shutdown.
func (f *Flusher) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	close(f.stop)
	f.mu.Unlock()

	<-f.done
}

func (f *Flusher) loop() {
	defer close(f.done)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.Flush(context.Background())
		case <-f.stop:
			f.Flush(context.Background())
			return
		}
	}
}

// Flush drains pending deltas and applies them. Failures are logged and the
// deltas for the failing funnel are dropped; analytics rollups are best
// effort, the submission audit trail is the durable record.
func (f *Flusher) Flush(ctx context.Context) {
	deltas, err := f.counter.Drain(ctx)
	if err != nil {
		log.Printf("[analytics] drain failed: %v", err)
		return
	}
	for id, d := range deltas {
		if err := f.store.AddCounters(ctx, id, d.Views, d.Submissions); err != nil {
			log.Printf("[analytics] flush for funnel %d failed: %v", id, err)
		}
	}
}
