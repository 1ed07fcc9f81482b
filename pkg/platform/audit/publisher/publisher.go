package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "policardmed/pkg/platform/audit"
	"policardmed/pkg/platform/audit/worker"
	"policardmed/pkg/platform/circuit"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is full.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")

// ErrNotQueryable is returned by List when the primary sink is write-only.
var ErrNotQueryable = errors.New("audit store does not support queries")

// Publisher fronts an audit sink. In sync mode Emit persists before returning;
// with WithAsyncBuffer a background worker drains a bounded channel and Emit
// never blocks on the sink.
type Publisher struct {
	store    audit.Store
	fallback audit.Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *Metrics

	bufferSize int
	inbox      chan audit.Event
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	closed     bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables async mode with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

// WithFallback writes events to fallback while the primary sink's breaker is
// open.
func WithFallback(fallback audit.Store, breaker *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.fallback = fallback
		p.breaker = breaker
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(sinkFunc(p.persist), p.inbox, p.logger)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit stamps and publishes an event. The category is always derived from
// the action.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.AuditEvent(event.Action).Category()

	if p.inbox == nil {
		if err := p.persist(ctx, event); err != nil {
			return err
		}
		p.incEmitted()
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- event:
		p.incEmitted()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.metrics != nil {
			p.metrics.Dropped.Inc()
		}
		return ErrBufferFull
	}
}

// List returns events recorded for subject when the primary sink is queryable.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	lister, ok := p.store.(audit.Lister)
	if !ok {
		return nil, ErrNotQueryable
	}
	return lister.ListBySubject(ctx, subject)
}

// Close stops accepting events and waits for the async buffer to drain.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox == nil {
			return
		}
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
		<-p.done
	})
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	err := p.store.Append(ctx, event)
	if p.breaker == nil {
		return err
	}
	if err == nil {
		_, change := p.breaker.RecordSuccess()
		if change.Closed {
			p.logger.InfoContext(ctx, "audit sink recovered", "breaker", p.breaker.Name())
			p.setCircuitOpen(false)
		}
		return nil
	}

	if p.metrics != nil {
		p.metrics.PersistFailures.Inc()
	}
	useFallback, change := p.breaker.RecordFailure()
	if change.Opened {
		p.logger.WarnContext(ctx, "audit sink unhealthy, using fallback",
			"breaker", p.breaker.Name(),
			"error", err,
		)
		p.setCircuitOpen(true)
	}
	if !useFallback || p.fallback == nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.FallbackWrites.Inc()
	}
	return p.fallback.Append(ctx, event)
}

func (p *Publisher) incEmitted() {
	if p.metrics != nil {
		p.metrics.Emitted.Inc()
	}
}

func (p *Publisher) setCircuitOpen(open bool) {
	if p.metrics != nil {
		p.metrics.setCircuitOpen(open)
	}
}

type sinkFunc func(ctx context.Context, event audit.Event) error

func (f sinkFunc) Append(ctx context.Context, event audit.Event) error {
	return f(ctx, event)
}
