package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Sender accepts events for delivery. *Dispatcher and *Debouncer both
// implement it.
type Sender interface {
	Dispatch(ctx context.Context, event *Event) error
}

// DebounceConfig holds debouncer configuration.
type DebounceConfig struct {
	// Interval is the quiet period after the last event before dispatch.
	Interval time.Duration
	// MaxWait is the maximum time to wait before dispatching.
	// Even if events keep coming, dispatch after this time.
	MaxWait time.Duration
	// Types lists the event types that are coalesced. Other types pass
	// straight through.
	Types []string
}

// DefaultDebounceConfig coalesces rapid content.updated events.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Interval: 1 * time.Second,
		MaxWait:  5 * time.Second,
		Types:    []string{EventContentUpdated},
	}
}

type pendingEvent struct {
	event     *Event
	timer     *time.Timer
	firstSeen time.Time
}

// Debouncer coalesces bursts of events for the same content item into one
// delivery carrying the latest data.
type Debouncer struct {
	next    Sender
	config  DebounceConfig
	logger  *slog.Logger
	pending map[string]*pendingEvent
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDebouncer creates a debouncer in front of next.
func NewDebouncer(next Sender, config DebounceConfig, logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		next:    next,
		config:  config,
		logger:  logger,
		pending: make(map[string]*pendingEvent),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// eventKey identifies the entity an event is about. Events without a known
// entity share one key per type.
func eventKey(event *Event) string {
	switch data := event.Data.(type) {
	case ContentEventData:
		return fmt.Sprintf("%s:%d:%d", event.Type, data.TenantID, data.ID)
	case *ContentEventData:
		return fmt.Sprintf("%s:%d:%d", event.Type, data.TenantID, data.ID)
	}
	return event.Type
}

// Dispatch forwards event immediately unless its type is debounced. A
// debounced event replaces any pending event with the same key.
func (d *Debouncer) Dispatch(ctx context.Context, event *Event) error {
	if !slices.Contains(d.config.Types, event.Type) {
		return d.next.Dispatch(ctx, event)
	}

	key := eventKey(event)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.pending[key]; ok {
		existing.event = event
		if now.Sub(existing.firstSeen) >= d.config.MaxWait {
			d.dispatchLocked(key)
			return nil
		}
		existing.timer.Reset(d.config.Interval)
		d.logger.Debug("debounced event updated", "key", key, "wait_time", now.Sub(existing.firstSeen))
		return nil
	}

	pe := &pendingEvent{event: event, firstSeen: now}
	pe.timer = time.AfterFunc(d.config.Interval, func() {
		d.mu.Lock()
		d.dispatchLocked(key)
		d.mu.Unlock()
	})
	d.pending[key] = pe
	d.logger.Debug("debounced event queued", "key", key)
	return nil
}

// dispatchLocked sends a pending event. Must be called with lock held.
func (d *Debouncer) dispatchLocked(key string) {
	pe, ok := d.pending[key]
	if !ok {
		return
	}
	pe.timer.Stop()
	delete(d.pending, key)

	d.wg.Add(1)
	go func(event *Event) {
		defer d.wg.Done()
		if err := d.next.Dispatch(d.ctx, event); err != nil {
			d.logger.Error("failed to dispatch debounced event", "error", err, "event_type", event.Type)
		}
	}(pe.event)
}

// Flush immediately dispatches all pending events.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key := range d.pending {
		d.dispatchLocked(key)
	}
}

// Stop flushes pending events and waits for them to be handed on.
func (d *Debouncer) Stop() {
	d.Flush()
	d.wg.Wait()
	d.cancel()
}

// PendingCount returns the number of pending events.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

var (
	_ Sender = (*Dispatcher)(nil)
	_ Sender = (*Debouncer)(nil)
)
