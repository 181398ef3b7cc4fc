package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duewatch/internal/queue"
)

type fakeSubstrate struct {
	counts  map[string]queue.Counts
	pingErr error
}

func (f *fakeSubstrate) Counts(ctx context.Context, q string) (queue.Counts, error) {
	return f.counts[q], nil
}

func (f *fakeSubstrate) Ping(ctx context.Context) error { return f.pingErr }

type captureSink struct {
	executions []ExecutionReport
	completed  []uint64
	failed     []uint64
	stalled    []uint64
	alerts     []Alert
}

func (s *captureSink) NotifyExecution(r ExecutionReport) { s.executions = append(s.executions, r) }

func (s *captureSink) NotifyJobCompleted(q string, id uint64) { s.completed = append(s.completed, id) }

func (s *captureSink) NotifyJobFailed(q string, id uint64, r string) { s.failed = append(s.failed, id) }

func (s *captureSink) NotifyJobStalled(q string, id uint64) { s.stalled = append(s.stalled, id) }

func (s *captureSink) NotifySystemAlert(a Alert) { s.alerts = append(s.alerts, a) }

func TestObserveUpdatesCountersAndSink(t *testing.T) {
	sink := &captureSink{}
	e := NewEngine(&fakeSubstrate{}, sink)

	e.Observe(queue.Event{Kind: queue.EventActive, Queue: "scans", JobID: 1})
	e.Observe(queue.Event{Kind: queue.EventActive, Queue: "scans", JobID: 2})
	e.Observe(queue.Event{Kind: queue.EventCompleted, Queue: "scans", JobID: 1})
	e.Observe(queue.Event{Kind: queue.EventFailed, Queue: "scans", JobID: 2, Err: "boom"})
	e.Observe(queue.Event{Kind: queue.EventStalled, Queue: "scans", JobID: 3})

	snap := e.Snapshot()
	assert.Equal(t, int64(1), snap.JobsCompleted)
	assert.Equal(t, int64(1), snap.JobsFailed)
	assert.Equal(t, int64(0), snap.JobsActive)

	assert.Equal(t, []uint64{1}, sink.completed)
	assert.Equal(t, []uint64{2}, sink.failed)
	assert.Equal(t, []uint64{3}, sink.stalled)
}

func TestErrorRateAlertFiresOncePerCycle(t *testing.T) {
	sink := &captureSink{}
	e := NewEngine(&fakeSubstrate{}, sink)

	// 85% success: 17 completed, 3 failed.
	for i := 0; i < 17; i++ {
		e.Observe(queue.Event{Kind: queue.EventCompleted})
	}
	for i := 0; i < 3; i++ {
		e.Observe(queue.Event{Kind: queue.EventFailed})
	}

	fired := e.CheckAndGenerateAlerts(context.Background())
	require.Len(t, fired, 1)
	assert.Equal(t, "error_rate", fired[0].Type)
	assert.Equal(t, SeverityWarning, fired[0].Severity)
	assert.NotEmpty(t, fired[0].ID)

	// One alert per evaluation cycle, not one per failed job.
	fired = e.CheckAndGenerateAlerts(context.Background())
	require.Len(t, fired, 1)
	assert.Len(t, sink.alerts, 2)
}

func TestNoAlertsWhenHealthy(t *testing.T) {
	e := NewEngine(&fakeSubstrate{}, &captureSink{})
	for i := 0; i < 20; i++ {
		e.Observe(queue.Event{Kind: queue.EventCompleted})
	}
	assert.Empty(t, e.CheckAndGenerateAlerts(context.Background()))
}

func TestRulesAreIndependent(t *testing.T) {
	sub := &fakeSubstrate{counts: map[string]queue.Counts{
		"notifications": {Waiting: 80},
	}}
	sink := &captureSink{}
	e := NewEngine(sub, sink)
	e.RegisterQueue("notifications")

	// Trip error rate, backlog, and in-flight emails together.
	e.Observe(queue.Event{Kind: queue.EventCompleted})
	e.Observe(queue.Event{Kind: queue.EventFailed})
	for i := 0; i < 11; i++ {
		e.EmailProcessing()
	}

	probeErr := errors.New("connection refused")
	e.SetLogStoreProbe(func(ctx context.Context) error { return probeErr })

	fired := e.CheckAndGenerateAlerts(context.Background())
	require.Len(t, fired, 4)

	types := make(map[string]Severity, len(fired))
	for _, a := range fired {
		types[a.Type] = a.Severity
	}
	assert.Equal(t, SeverityWarning, types["error_rate"])
	assert.Equal(t, SeverityWarning, types["queue_backlog"])
	assert.Equal(t, SeverityInfo, types["emails_processing"])
	assert.Equal(t, SeverityError, types["log_store_unreachable"])

	assert.Len(t, e.Recent(), 4)
}

func TestHealthCheck(t *testing.T) {
	sub := &fakeSubstrate{}
	e := NewEngine(sub, &captureSink{})

	h := e.HealthCheck(context.Background())
	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.Checks["queues_registered"])
	assert.False(t, h.Checks["workers_registered"])

	e.RegisterQueue("scans")
	e.RegisterWorker()
	h = e.HealthCheck(context.Background())
	assert.Equal(t, "healthy", h.Status)

	sub.pingErr = errors.New("dial error")
	h = e.HealthCheck(context.Background())
	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.Checks["substrate_reachable"])
}

func TestStatsMergesQueueCounts(t *testing.T) {
	sub := &fakeSubstrate{counts: map[string]queue.Counts{
		"scans":         {Waiting: 2, Completed: 5},
		"notifications": {Active: 1},
	}}
	e := NewEngine(sub, &captureSink{})
	e.RegisterQueue("scans")
	e.RegisterQueue("notifications")
	e.ReminderSent()
	e.ReminderSkipped()

	s := e.Stats(context.Background())
	assert.Equal(t, int64(1), s.RemindersSent)
	assert.Equal(t, int64(1), s.RemindersSkipped)
	assert.Equal(t, int64(2), s.Queues["scans"].Waiting)
	assert.Equal(t, int64(1), s.Queues["notifications"].Active)
	assert.False(t, s.StartTime.IsZero())
}

func TestEmailCountersNeverGoNegative(t *testing.T) {
	e := NewEngine(&fakeSubstrate{}, &captureSink{})
	e.EmailSent()
	snap := e.Snapshot()
	assert.Equal(t, int64(1), snap.EmailsSent)
	assert.Equal(t, int64(0), snap.EmailsProcessing)
}
