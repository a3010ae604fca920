// Package hooks is the integration hook dispatcher: fire() enqueues an
// archive-lifecycle event without blocking the emitting path, and a
// bounded worker pool — one goroutine per registered hook — drains
// each hook's own FIFO lane, so hooks run in parallel to each other
// but serially within a hook (§4.7).
package hooks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"archivecore.io/core/internal/domain"
	"archivecore.io/core/internal/hooks/queue"
	"archivecore.io/core/internal/obs"
)

// ExecutionRecorder persists one HookExecution row per delivery
// attempt. *metadb.DB satisfies this via InsertHookExecution.
type ExecutionRecorder interface {
	InsertHookExecution(e domain.HookExecution) error
}

// Stats holds the live delivery counters read by Snapshot (§4.7
// Statistics). All fields are updated with atomics so Fire and worker
// goroutines never contend on a lock for bookkeeping.
type Stats struct {
	eventsFired   uint64
	hooksExecuted uint64
	hooksFailed   uint64
	totalExecNS   int64
}

func (s *Stats) recordFire() {
	atomic.AddUint64(&s.eventsFired, 1)
}

func (s *Stats) recordExecution(d time.Duration, success bool) {
	atomic.AddUint64(&s.hooksExecuted, 1)
	atomic.AddInt64(&s.totalExecNS, int64(d))
	if !success {
		atomic.AddUint64(&s.hooksFailed, 1)
	}
}

// Snapshot is a point-in-time read of Stats.
type Snapshot struct {
	EventsFired      uint64
	HooksExecuted    uint64
	HooksFailed      uint64
	AvgExecutionTime time.Duration
	SuccessRate      float64
}

// Snapshot returns the current counters, computing the derived
// average execution time and success rate.
func (s *Stats) Snapshot() Snapshot {
	executed := atomic.LoadUint64(&s.hooksExecuted)
	snap := Snapshot{
		EventsFired:   atomic.LoadUint64(&s.eventsFired),
		HooksExecuted: executed,
		HooksFailed:   atomic.LoadUint64(&s.hooksFailed),
	}
	if executed > 0 {
		snap.AvgExecutionTime = time.Duration(atomic.LoadInt64(&s.totalExecNS) / int64(executed))
		snap.SuccessRate = float64(executed-snap.HooksFailed) / float64(executed)
	}
	return snap
}

const defaultHookTimeout = 10 * time.Second

// Dispatcher owns the registered hooks, their per-hook queue lanes and
// the worker goroutine draining each lane.
type Dispatcher struct {
	mu            sync.RWMutex
	registrations []domain.HookRegistration

	deliverers map[domain.HookType]Deliverer
	q          *queue.Queue
	recorder   ExecutionRecorder
	logger     *obs.ContextLogger
	stats      Stats

	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// New builds a Dispatcher. deliverers maps each HookType to the
// mechanism that executes it; laneSize and policy configure the
// underlying per-hook queue's capacity and backpressure behaviour
// (§4.7 Backpressure).
func New(deliverers map[domain.HookType]Deliverer, recorder ExecutionRecorder, logger *obs.ContextLogger, laneSize int, policy queue.DropPolicy) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		deliverers: deliverers,
		q:          queue.New(laneSize, policy),
		recorder:   recorder,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Register adds a hook registration and starts its dedicated worker
// goroutine. Registrations are not expected to churn at runtime in the
// common case, but Register may be called any time before Shutdown.
func (d *Dispatcher) Register(reg domain.HookRegistration) {
	d.mu.Lock()
	d.registrations = append(d.registrations, reg)
	d.mu.Unlock()
	d.startWorker(reg)
}

func (d *Dispatcher) startWorker(reg domain.HookRegistration) {
	lane := d.q.Lane(reg.Name)
	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for {
			select {
			case <-d.ctx.Done():
				return
			case job, ok := <-lane:
				if !ok {
					return
				}
				d.execute(reg, job)
			}
		}
	}()
}

// Fire enqueues event for every registration whose event filter
// matches, returning immediately (§4.7 Delivery). Under the queue's
// Block policy this can briefly block the caller when a lane is full;
// under DropNewest it never blocks, at the cost of dropped deliveries.
func (d *Dispatcher) Fire(event domain.HookEvent, objectKey string, data map[string]interface{}, metadata map[string]string) {
	d.stats.recordFire()

	d.mu.RLock()
	regs := make([]domain.HookRegistration, len(d.registrations))
	copy(regs, d.registrations)
	d.mu.RUnlock()

	payload := Payload{Event: event, ObjectKey: objectKey, Data: data, Metadata: metadata}
	for _, reg := range regs {
		if !reg.Matches(event) {
			continue
		}
		d.q.Enqueue(queue.Job{HookName: reg.Name, Payload: payload, EnqueuedAt: time.Now()})
	}
}

func (d *Dispatcher) execute(reg domain.HookRegistration, job queue.Job) {
	payload := job.Payload.(Payload)
	deliverer := d.deliverers[reg.Type]

	timeout := reg.Timeout
	if timeout <= 0 {
		timeout = defaultHookTimeout
	}
	// Deliberately not derived from d.ctx: Shutdown cancels d.ctx to
	// stop workers picking up new jobs, but a job already dequeued
	// should still run to completion within its own timeout.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	response, err := deliverer.Deliver(ctx, reg, payload)
	elapsed := time.Since(start)
	success := err == nil
	d.stats.recordExecution(elapsed, success)

	exec := domain.HookExecution{
		HookName:      reg.Name,
		Event:         payload.Event,
		ObjectKey:     payload.ObjectKey,
		Success:       success,
		ExecutionTime: elapsed,
		Response:      response,
		FiredAt:       start,
	}
	if err != nil {
		exec.Error = err.Error()
		d.logger.WithField("hook", reg.Name).WithError(err).Warn("hook delivery failed")
	}

	if d.recorder != nil {
		if rerr := d.recorder.InsertHookExecution(exec); rerr != nil {
			d.logger.WithError(rerr).Warn("failed to record hook execution")
		}
	}
}

// Stats returns the current delivery counters.
func (d *Dispatcher) Stats() Snapshot { return d.stats.Snapshot() }

// QueueDepth reports how many jobs are buffered for a given hook.
func (d *Dispatcher) QueueDepth(hookName string) int { return d.q.Depth(hookName) }

// Dropped reports how many jobs the queue's DropNewest policy has
// discarded.
func (d *Dispatcher) Dropped() int64 { return d.q.Dropped() }

// Shutdown stops accepting new work and waits for every worker to
// drain its current job before returning.
func (d *Dispatcher) Shutdown() {
	d.cancel()
	d.workers.Wait()
}
