package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds dispatcher configuration.
type Config struct {
	// URLs receive every event.
	URLs []string
	// Secret signs payloads; deliveries are unsigned when empty.
	Secret string
	// Workers is the number of concurrent delivery workers.
	Workers int
	// Rate caps deliveries per second across all workers. Zero disables
	// the limit.
	Rate float64
	// MaxAttempts bounds tries per delivery, including the first.
	MaxAttempts int
	// InitialBackoff doubles after every failed attempt up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// QueueSize bounds pending deliveries; new ones are dropped when full.
	QueueSize int
	// DrainTimeout bounds how long Stop spends delivering queued events
	// before in-flight requests are cancelled.
	DrainTimeout time.Duration
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        3,
		Rate:           5,
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
		QueueSize:      100,
		DrainTimeout:   10 * time.Second,
	}
}

// Dispatcher fans events out to endpoints and delivers them from a worker
// pool.
type Dispatcher struct {
	cfg     Config
	client  HTTPDoer
	limiter *rate.Limiter
	logger  *slog.Logger
	queue   chan *QueuedDelivery
	wg      sync.WaitGroup
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	running bool
}

// HTTPDoer sends a request. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// QueuedDelivery is one event bound for one endpoint.
type QueuedDelivery struct {
	ID      string
	Event   string
	Payload []byte
	URL     string
	Attempt int
}

// NewDispatcher creates a new webhook dispatcher. Zero config values fall
// back to DefaultConfig.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(1, int(cfg.Rate)))
	}

	return &Dispatcher{
		cfg:     cfg,
		client:  httpClient,
		limiter: limiter,
		logger:  logger,
		queue:   make(chan *QueuedDelivery, cfg.QueueSize),
		done:    make(chan struct{}),
	}
}

// WithClient replaces the HTTP client. It must be called before Start.
func (d *Dispatcher) WithClient(c HTTPDoer) *Dispatcher {
	d.client = c
	return d
}

// Enabled reports whether any endpoint is configured.
func (d *Dispatcher) Enabled() bool {
	return len(d.cfg.URLs) > 0
}

// Start starts the dispatcher workers. Workers keep ctx's values but not its
// cancellation: they run until Stop, so events queued during shutdown are
// still delivered.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher", "workers", d.cfg.Workers, "endpoints", len(d.cfg.URLs))

	for i := range d.cfg.Workers {
		d.wg.Add(1)
		go d.worker(d.ctx, i)
	}
}

// Stop stops accepting events and makes one attempt at every queued
// delivery. After DrainTimeout in-flight requests are cancelled and the
// rest of the queue is dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping webhook dispatcher", "queued", len(d.queue))
	close(d.done)

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(d.cfg.DrainTimeout):
		d.logger.Warn("webhook drain timed out, cancelling deliveries", "dropped", len(d.queue))
		d.cancel()
		<-drained
	}
	d.cancel()
	d.logger.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("webhook worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			d.drain(ctx)
			return
		case <-ctx.Done():
			return
		case delivery := <-d.queue:
			d.processDelivery(ctx, delivery)
		}
	}
}

// drain delivers what is left in the queue. Retries are skipped since
// done is closed.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case delivery := <-d.queue:
			if ctx.Err() != nil {
				continue
			}
			d.processDelivery(ctx, delivery)
		default:
			return
		}
	}
}

// Dispatch queues one delivery of event per configured endpoint. It never
// blocks: when the queue is full the delivery is dropped and logged.
func (d *Dispatcher) Dispatch(_ context.Context, event *Event) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		d.logger.Warn("dispatcher not running, cannot dispatch event", "event_type", event.Type)
		return nil
	}
	if !d.Enabled() {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal event payload", "error", err, "event_type", event.Type)
		return err
	}

	for _, url := range d.cfg.URLs {
		qd := &QueuedDelivery{
			ID:      event.ID,
			Event:   event.Type,
			Payload: payload,
			URL:     url,
		}
		select {
		case d.queue <- qd:
			d.logger.Debug("delivery queued", "delivery_id", event.ID, "url", url)
		default:
			d.logger.Warn("delivery queue full, dropping delivery", "delivery_id", event.ID, "event_type", event.Type)
		}
	}
	return nil
}

// DispatchEvent is a convenience method to dispatch an event with the given type and data.
func (d *Dispatcher) DispatchEvent(ctx context.Context, eventType string, data any) error {
	return d.Dispatch(ctx, NewEvent(eventType, data))
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature.
func VerifySignature(payload []byte, signature, secret string) bool {
	expectedSig := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
