package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"synq/backend/internal/logging"
	"synq/backend/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.AuthEvent
	emitErr error
	delay   time.Duration
	ctxErrs []error
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.AuthEvent) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.AuthEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.AuthEvent(nil), m.events...)
}

func waitForEvents(t *testing.T, m *mockEventEmitter, n int) []*domain.AuthEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := m.getEvents(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(m.getEvents()))
	return nil
}

func TestEmitAsync_NilEmitterOrEvent(t *testing.T) {
	ctx := context.Background()
	// Should not panic
	EmitAsync(ctx, nil, &domain.AuthEvent{EventType: "test"}, logging.Nop())

	emitter := &mockEventEmitter{}
	EmitAsync(ctx, emitter, nil, logging.Nop())
	time.Sleep(10 * time.Millisecond)
	if n := len(emitter.getEvents()); n != 0 {
		t.Errorf("expected no events for nil event, got %d", n)
	}
}

func TestEmitAsync_EmitsEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	event := &domain.AuthEvent{UserID: "user-1", EventType: domain.EventLoginSucceeded, Source: domain.SourceAuth}

	EmitAsync(context.Background(), emitter, event, nil)

	events := waitForEvents(t, emitter, 1)
	if events[0].UserID != "user-1" {
		t.Errorf("event user_id = %q, want %q", events[0].UserID, "user-1")
	}
	if events[0].EventType != domain.EventLoginSucceeded {
		t.Errorf("event type = %q, want %q", events[0].EventType, domain.EventLoginSucceeded)
	}
}

func TestEmitAsync_IgnoresRequestCancellation(t *testing.T) {
	emitter := &mockEventEmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	EmitAsync(ctx, emitter, &domain.AuthEvent{EventType: "test"}, logging.Nop())

	waitForEvents(t, emitter, 1)
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	if emitter.ctxErrs[0] != nil {
		t.Errorf("emit context should not inherit cancellation, got %v", emitter.ctxErrs[0])
	}
}

func TestEmitAsync_ErrorIsLoggedNotReturned(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("broker down")}
	EmitAsync(context.Background(), emitter, &domain.AuthEvent{EventType: "test"}, logging.Nop())
	waitForEvents(t, emitter, 1)
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(ctx, emitter, &domain.AuthEvent{EventType: "test"}, nil)
		}()
	}
	wg.Wait()

	waitForEvents(t, emitter, 10)
}

func TestFanout_EmitsToAllAndJoinsErrors(t *testing.T) {
	ok := &mockEventEmitter{}
	failing := &mockEventEmitter{emitErr: errors.New("kafka down")}
	f := Fanout{ok, nil, failing}

	err := f.Emit(context.Background(), &domain.AuthEvent{EventType: domain.EventLogout})
	if err == nil || err.Error() != "kafka down" {
		t.Errorf("Emit error = %v, want kafka down", err)
	}
	if len(ok.getEvents()) != 1 || len(failing.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
	if err := (Fanout{}).Emit(context.Background(), &domain.AuthEvent{}); err != nil {
		t.Errorf("empty fanout: %v", err)
	}
}
