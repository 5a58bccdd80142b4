package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "certledger/pkg/domain"
	audit "certledger/pkg/platform/audit"
	auditmemory "certledger/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("store down")
}

func (failingStore) ListByIssuer(context.Context, id.IssuerID) ([]audit.Event, error) {
	return nil, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (s *recordingSink) Deliver(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func testEvent(action string) audit.Event {
	return audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: time.Now(),
		IssuerID:  id.IssuerID(uuid.New()),
		Action:    action,
	}
}

func TestSyncEmit(t *testing.T) {
	ctx := context.Background()

	t.Run("stores events and returns store errors", func(t *testing.T) {
		store := auditmemory.NewInMemoryStore()
		p := NewPublisher(store)
		defer p.Close()

		event := testEvent(audit.EventIssuerApproved)
		require.NoError(t, p.Emit(ctx, event))
		require.Len(t, store.All(), 1)

		listed, err := p.List(ctx, event.IssuerID)
		require.NoError(t, err)
		assert.Len(t, listed, 1)
	})

	t.Run("fails closed when the store fails", func(t *testing.T) {
		p := NewPublisher(failingStore{})
		defer p.Close()
		require.Error(t, p.Emit(ctx, testEvent(audit.EventIssuerApproved)))
	})
}

func TestSinkFanout(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers stored events to sinks", func(t *testing.T) {
		store := auditmemory.NewInMemoryStore()
		sink := &recordingSink{}
		p := NewPublisher(store, WithSink(sink))
		defer p.Close()

		require.NoError(t, p.Emit(ctx, testEvent(audit.EventCertificateDrafted)))
		assert.Equal(t, 1, sink.count())
	})

	t.Run("sink failure does not fail the emit", func(t *testing.T) {
		store := auditmemory.NewInMemoryStore()
		sink := &recordingSink{err: errors.New("broker down")}
		p := NewPublisher(store, WithSink(sink))
		defer p.Close()

		require.NoError(t, p.Emit(ctx, testEvent(audit.EventCertificateDrafted)))
		assert.Len(t, store.All(), 1)
	})
}

func TestAsyncEmit(t *testing.T) {
	ctx := context.Background()

	store := auditmemory.NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(16))

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Emit(ctx, testEvent(audit.EventCertificateDrafted)))
	}
	// Close drains the buffer before returning.
	p.Close()
	assert.Len(t, store.All(), 5)
}
