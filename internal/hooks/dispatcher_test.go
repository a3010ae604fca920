package hooks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivecore.io/core/internal/domain"
	"archivecore.io/core/internal/hooks/queue"
	"archivecore.io/core/internal/obs"
)

// fakeDeliverer records every delivery it receives, optionally with an
// artificial delay or a forced failure, to exercise ordering and stats
// without a live HTTP server.
type fakeDeliverer struct {
	mu       sync.Mutex
	delay    time.Duration
	failOn   func(Payload) bool
	received []Payload
	order    []string
}

func (d *fakeDeliverer) Deliver(ctx context.Context, reg domain.HookRegistration, p Payload) (string, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	d.mu.Lock()
	d.received = append(d.received, p)
	d.order = append(d.order, p.ObjectKey)
	d.mu.Unlock()
	if d.failOn != nil && d.failOn(p) {
		return "", fmt.Errorf("forced failure for %s", p.ObjectKey)
	}
	return "ok", nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	execs []domain.HookExecution
}

func (r *fakeRecorder) InsertHookExecution(e domain.HookExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs = append(r.execs, e)
	return nil
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.execs)
}

func newTestDispatcher(deliverers map[domain.HookType]Deliverer, recorder ExecutionRecorder) *Dispatcher {
	return New(deliverers, recorder, obs.New(nil), 16, queue.Block)
}

func TestDispatcherFiresOnlyMatchingHooks(t *testing.T) {
	webhook := &fakeDeliverer{}
	recorder := &fakeRecorder{}
	d := newTestDispatcher(map[domain.HookType]Deliverer{domain.HookWebhook: webhook}, recorder)
	defer d.Shutdown()

	d.Register(domain.HookRegistration{
		Name:        "archived-only",
		Type:        domain.HookWebhook,
		EventFilter: []domain.HookEvent{domain.EventDocumentArchived},
	})

	d.Fire(domain.EventDocumentArchived, "obj-1", nil, nil)
	d.Fire(domain.EventDocumentDeleted, "obj-2", nil, nil)

	require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, 5*time.Millisecond)

	webhook.mu.Lock()
	defer webhook.mu.Unlock()
	require.Len(t, webhook.received, 1)
	assert.Equal(t, "obj-1", webhook.received[0].ObjectKey)
}

func TestDispatcherPerHookFIFOOrdering(t *testing.T) {
	webhook := &fakeDeliverer{}
	recorder := &fakeRecorder{}
	d := newTestDispatcher(map[domain.HookType]Deliverer{domain.HookWebhook: webhook}, recorder)
	defer d.Shutdown()

	d.Register(domain.HookRegistration{
		Name:        "ordered",
		Type:        domain.HookWebhook,
		EventFilter: []domain.HookEvent{domain.EventDocumentArchived},
	})

	for i := 0; i < 10; i++ {
		d.Fire(domain.EventDocumentArchived, fmt.Sprintf("obj-%d", i), nil, nil)
	}

	require.Eventually(t, func() bool { return recorder.count() == 10 }, time.Second, 5*time.Millisecond)

	webhook.mu.Lock()
	defer webhook.mu.Unlock()
	for i, key := range webhook.order {
		assert.Equal(t, fmt.Sprintf("obj-%d", i), key)
	}
}

func TestDispatcherRunsDistinctHooksInParallel(t *testing.T) {
	slow := &fakeDeliverer{delay: 100 * time.Millisecond}
	recorder := &fakeRecorder{}
	d := newTestDispatcher(map[domain.HookType]Deliverer{domain.HookWebhook: slow}, recorder)
	defer d.Shutdown()

	d.Register(domain.HookRegistration{Name: "a", Type: domain.HookWebhook, EventFilter: []domain.HookEvent{domain.EventDocumentArchived}})
	d.Register(domain.HookRegistration{Name: "b", Type: domain.HookWebhook, EventFilter: []domain.HookEvent{domain.EventDocumentArchived}})

	start := time.Now()
	d.Fire(domain.EventDocumentArchived, "obj-1", nil, nil)
	require.Eventually(t, func() bool { return recorder.count() == 2 }, time.Second, 5*time.Millisecond)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 180*time.Millisecond, "two hooks with a 100ms delay should overlap, not serialize")
}

func TestDispatcherCallbackPanicRecovered(t *testing.T) {
	recorder := &fakeRecorder{}
	callback := CallbackDeliverer{Handlers: map[string]CallbackFunc{
		"panicky": func(ctx context.Context, p Payload) error {
			panic("boom")
		},
	}}
	d := newTestDispatcher(map[domain.HookType]Deliverer{domain.HookCallback: callback}, recorder)
	defer d.Shutdown()

	d.Register(domain.HookRegistration{Name: "panicky", Type: domain.HookCallback, EventFilter: []domain.HookEvent{domain.EventDocumentArchived}})
	d.Fire(domain.EventDocumentArchived, "obj-1", nil, nil)

	require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, 5*time.Millisecond)
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.execs, 1)
	assert.False(t, recorder.execs[0].Success)
	assert.Contains(t, recorder.execs[0].Error, "panicked")
}

func TestDispatcherStatsComputesAverageAndSuccessRate(t *testing.T) {
	var n int32
	webhook := &fakeDeliverer{failOn: func(p Payload) bool {
		return atomic.AddInt32(&n, 1)%2 == 0
	}}
	recorder := &fakeRecorder{}
	d := newTestDispatcher(map[domain.HookType]Deliverer{domain.HookWebhook: webhook}, recorder)
	defer d.Shutdown()

	d.Register(domain.HookRegistration{Name: "flaky", Type: domain.HookWebhook, EventFilter: []domain.HookEvent{domain.EventDocumentArchived}})
	for i := 0; i < 4; i++ {
		d.Fire(domain.EventDocumentArchived, fmt.Sprintf("obj-%d", i), nil, nil)
	}

	require.Eventually(t, func() bool { return recorder.count() == 4 }, time.Second, 5*time.Millisecond)

	snap := d.Stats()
	assert.EqualValues(t, 4, snap.EventsFired)
	assert.EqualValues(t, 4, snap.HooksExecuted)
	assert.EqualValues(t, 2, snap.HooksFailed)
	assert.InDelta(t, 0.5, snap.SuccessRate, 0.001)
	assert.Greater(t, snap.AvgExecutionTime, time.Duration(0))
}

func TestDispatcherDropNewestBackpressure(t *testing.T) {
	blocker := make(chan struct{})
	webhook := &fakeDeliverer{}
	blockingWebhook := blockingDeliverer{inner: webhook, release: blocker}
	recorder := &fakeRecorder{}
	d := New(map[domain.HookType]Deliverer{domain.HookWebhook: blockingWebhook}, recorder, obs.New(nil), 1, queue.DropNewest)
	defer func() {
		close(blocker)
		d.Shutdown()
	}()

	d.Register(domain.HookRegistration{Name: "bounded", Type: domain.HookWebhook, EventFilter: []domain.HookEvent{domain.EventDocumentArchived}})

	for i := 0; i < 10; i++ {
		d.Fire(domain.EventDocumentArchived, fmt.Sprintf("obj-%d", i), nil, nil)
	}

	require.Eventually(t, func() bool { return d.Dropped() > 0 }, time.Second, 5*time.Millisecond)
}

// blockingDeliverer waits on release before delegating, used to force a
// lane to fill up and exercise the DropNewest path deterministically.
type blockingDeliverer struct {
	inner   Deliverer
	release chan struct{}
	once    sync.Once
}

func (b blockingDeliverer) Deliver(ctx context.Context, reg domain.HookRegistration, p Payload) (string, error) {
	b.once.Do(func() { <-b.release })
	return b.inner.Deliver(ctx, reg, p)
}

func TestDispatcherShutdownDrainsInFlightJob(t *testing.T) {
	webhook := &fakeDeliverer{delay: 50 * time.Millisecond}
	recorder := &fakeRecorder{}
	d := newTestDispatcher(map[domain.HookType]Deliverer{domain.HookWebhook: webhook}, recorder)

	d.Register(domain.HookRegistration{Name: "slow", Type: domain.HookWebhook, EventFilter: []domain.HookEvent{domain.EventDocumentArchived}})
	d.Fire(domain.EventDocumentArchived, "obj-1", nil, nil)

	time.Sleep(5 * time.Millisecond)
	d.Shutdown()

	assert.Equal(t, 1, recorder.count())
}
