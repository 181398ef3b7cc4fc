// Package metrics owns the process-lifetime counters and the threshold
// alerting on top of them. All mutation funnels through one mutex so
// concurrent handlers never race on the snapshot.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"duewatch/internal/queue"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	JobsCompleted int64 `json:"jobs_completed"`
	JobsFailed    int64 `json:"jobs_failed"`
	JobsActive    int64 `json:"jobs_active"`

	EmailsSent       int64 `json:"emails_sent"`
	EmailsFailed     int64 `json:"emails_failed"`
	EmailsProcessing int64 `json:"emails_processing"`

	RemindersSent    int64 `json:"reminders_sent"`
	RemindersFailed  int64 `json:"reminders_failed"`
	RemindersSkipped int64 `json:"reminders_skipped"`

	StartTime time.Time `json:"start_time"`
}

// Stats is the operational view: counters plus substrate backlog per queue.
type Stats struct {
	Snapshot
	Queues map[string]queue.Counts `json:"queues"`
}

type Health struct {
	Status string          `json:"status"` // healthy | degraded
	Checks map[string]bool `json:"checks"`
}

// Substrate is the slice of the queue repo the engine reads.
type Substrate interface {
	Counts(ctx context.Context, queueName string) (queue.Counts, error)
	Ping(ctx context.Context) error
}

const recentAlertCap = 100

type Engine struct {
	mu   sync.Mutex
	snap Snapshot

	queues  []string
	workers int

	substrate Substrate
	sink      Sink

	// probe checks the notification log store; nil disables the rule.
	probe func(ctx context.Context) error

	recent []Alert

	AlertInterval time.Duration // default 5m
}

func NewEngine(substrate Substrate, sink Sink) *Engine {
	if sink == nil {
		sink = LogSink{}
	}
	return &Engine{
		snap:      Snapshot{StartTime: time.Now()},
		substrate: substrate,
		sink:      sink,
	}
}

func (e *Engine) RegisterQueue(name string) {
	e.mu.Lock()
	e.queues = append(e.queues, name)
	e.mu.Unlock()
}

func (e *Engine) RegisterWorker() {
	e.mu.Lock()
	e.workers++
	e.mu.Unlock()
}

func (e *Engine) SetLogStoreProbe(probe func(ctx context.Context) error) {
	e.mu.Lock()
	e.probe = probe
	e.mu.Unlock()
}

// Run consumes lifecycle events and evaluates alert rules on a timer.
// Returns when ctx is done or the event channel closes.
func (e *Engine) Run(ctx context.Context, events <-chan queue.Event) {
	interval := e.AlertInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.Observe(ev)
		case <-ticker.C:
			e.CheckAndGenerateAlerts(ctx)
		}
	}
}

// Observe applies one lifecycle event to the counters and relays it to the
// alert sink. It never fails: observability cannot fail jobs.
func (e *Engine) Observe(ev queue.Event) {
	e.mu.Lock()
	switch ev.Kind {
	case queue.EventActive:
		e.snap.JobsActive++
	case queue.EventCompleted:
		e.snap.JobsCompleted++
		if e.snap.JobsActive > 0 {
			e.snap.JobsActive--
		}
	case queue.EventFailed:
		e.snap.JobsFailed++
		if e.snap.JobsActive > 0 {
			e.snap.JobsActive--
		}
	}
	e.mu.Unlock()

	switch ev.Kind {
	case queue.EventCompleted:
		e.sink.NotifyJobCompleted(ev.Queue, ev.JobID)
	case queue.EventFailed:
		e.sink.NotifyJobFailed(ev.Queue, ev.JobID, ev.Err)
	case queue.EventStalled:
		e.sink.NotifyJobStalled(ev.Queue, ev.JobID)
	}
}

// Counter hooks used by the reminder pipeline.

func (e *Engine) ReminderSent()    { e.add(func(s *Snapshot) { s.RemindersSent++ }) }
func (e *Engine) ReminderSkipped() { e.add(func(s *Snapshot) { s.RemindersSkipped++ }) }
func (e *Engine) ReminderFailed()  { e.add(func(s *Snapshot) { s.RemindersFailed++ }) }
func (e *Engine) EmailSent()       { e.add(func(s *Snapshot) { s.EmailsSent++; s.EmailsProcessing-- }) }
func (e *Engine) EmailFailed()     { e.add(func(s *Snapshot) { s.EmailsFailed++; s.EmailsProcessing-- }) }
func (e *Engine) EmailProcessing() { e.add(func(s *Snapshot) { s.EmailsProcessing++ }) }

func (e *Engine) add(fn func(*Snapshot)) {
	e.mu.Lock()
	fn(&e.snap)
	if e.snap.EmailsProcessing < 0 {
		e.snap.EmailsProcessing = 0
	}
	e.mu.Unlock()
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Stats merges the counter snapshot with per-queue backlog counts. A queue
// whose counts cannot be read is reported empty rather than failing the call.
func (e *Engine) Stats(ctx context.Context) Stats {
	e.mu.Lock()
	snap := e.snap
	queues := append([]string(nil), e.queues...)
	e.mu.Unlock()

	out := Stats{Snapshot: snap, Queues: make(map[string]queue.Counts, len(queues))}
	for _, q := range queues {
		counts, err := e.substrate.Counts(ctx, q)
		if err != nil {
			out.Queues[q] = queue.Counts{}
			continue
		}
		out.Queues[q] = counts
	}
	return out
}

// HealthCheck reports healthy only when the engine is fully wired and the
// substrate answers. It never repairs a degraded state.
func (e *Engine) HealthCheck(ctx context.Context) Health {
	e.mu.Lock()
	queues := len(e.queues)
	workers := e.workers
	e.mu.Unlock()

	checks := map[string]bool{
		"initialized":         !e.Snapshot().StartTime.IsZero(),
		"queues_registered":   queues > 0,
		"workers_registered":  workers > 0,
		"substrate_reachable": e.substrate.Ping(ctx) == nil,
	}

	status := "healthy"
	for _, ok := range checks {
		if !ok {
			status = "degraded"
			break
		}
	}
	return Health{Status: status, Checks: checks}
}

// Recent returns alerts fired in this process, newest last.
func (e *Engine) Recent() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Alert(nil), e.recent...)
}

func (e *Engine) NotifyExecution(r ExecutionReport) {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	e.sink.NotifyExecution(r)
}

func (e *Engine) fire(a Alert) {
	a.ID = uuid.NewString()
	a.At = time.Now()

	e.mu.Lock()
	e.recent = append(e.recent, a)
	if len(e.recent) > recentAlertCap {
		e.recent = e.recent[len(e.recent)-recentAlertCap:]
	}
	e.mu.Unlock()

	e.sink.NotifySystemAlert(a)
}
