package metrics

import (
	"log"
	"time"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Alert is one fired threshold rule.
type Alert struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Severity       Severity  `json:"severity"`
	Message        string    `json:"message"`
	Recommendation string    `json:"recommendation"`
	At             time.Time `json:"at"`
}

// ExecutionReport summarizes one batch run for the alert sink.
type ExecutionReport struct {
	Policy  string    `json:"policy"`
	Total   int       `json:"total"`
	Sent    int       `json:"sent"`
	Skipped int       `json:"skipped"`
	Failed  int       `json:"failed"`
	At      time.Time `json:"at"`
}

// Sink receives engine events. Implementations must not block; failures
// here must never bounce back into job outcomes.
type Sink interface {
	NotifyExecution(r ExecutionReport)
	NotifyJobCompleted(queue string, jobID uint64)
	NotifyJobFailed(queue string, jobID uint64, reason string)
	NotifyJobStalled(queue string, jobID uint64)
	NotifySystemAlert(a Alert)
}

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) NotifyExecution(r ExecutionReport) {
	log.Printf("[execution] policy=%s total=%d sent=%d skipped=%d failed=%d\n",
		r.Policy, r.Total, r.Sent, r.Skipped, r.Failed)
}

func (LogSink) NotifyJobCompleted(queue string, jobID uint64) {
	log.Printf("[job] completed queue=%s id=%d\n", queue, jobID)
}

func (LogSink) NotifyJobFailed(queue string, jobID uint64, reason string) {
	log.Printf("[job] failed queue=%s id=%d reason=%q\n", queue, jobID, reason)
}

func (LogSink) NotifyJobStalled(queue string, jobID uint64) {
	log.Printf("[job] stalled queue=%s id=%d\n", queue, jobID)
}

func (LogSink) NotifySystemAlert(a Alert) {
	log.Printf("[alert] %s severity=%s: %s (%s)\n", a.Type, a.Severity, a.Message, a.Recommendation)
}
