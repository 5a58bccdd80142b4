// Package publisher emits audit events to a store, optionally through
// an async buffer.
//
// Compliance events should use the default synchronous mode: the caller
// blocks until the append succeeds, and a failed append fails the
// business operation (fail-closed). The async buffer exists for
// high-volume operational events where dropping under pressure is
// acceptable.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	id "certledger/pkg/domain"
	audit "certledger/pkg/platform/audit"
)

// Publisher writes audit events to a store and optional extra sinks.
type Publisher struct {
	store  audit.Store
	sinks  []Sink
	logger *slog.Logger

	inbox  chan audit.Event
	wg     sync.WaitGroup
	closed sync.Once
}

// Sink receives every successfully stored event. Sink failures are
// logged, never propagated: the store is the system of record.
type Sink interface {
	Deliver(ctx context.Context, event audit.Event) error
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given
// buffer size. Events are dropped (and logged) when the buffer is full.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// WithSink adds a delivery sink (e.g. a Kafka producer).
func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithLogger sets a logger for drop/sink error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. In sync mode the error from the store
// propagates to the caller; in async mode Emit never blocks and a full
// buffer drops the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.inbox == nil {
		return p.deliver(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
	}
	return nil
}

// List returns stored events for an issuer.
func (p *Publisher) List(ctx context.Context, issuerID id.IssuerID) ([]audit.Event, error) {
	return p.store.ListByIssuer(ctx, issuerID)
}

// Close drains the async buffer and stops the background worker.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		if err := p.deliver(context.Background(), event); err != nil {
			p.logger.Error("audit append failed", "action", event.Action, "error", err)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			p.logger.Error("audit sink delivery failed", "action", event.Action, "error", err)
		}
	}
	return nil
}
