package metrics

import (
	"context"
	"fmt"
)

// Threshold rules. Each is evaluated every cycle; none short-circuits another.
const (
	minSuccessRate    = 0.90
	maxWaitingBacklog = 50
	maxEmailsInFlight = 10
)

// CheckAndGenerateAlerts evaluates every rule against the current state and
// fires one alert per rule that trips. Called on the alert ticker; also
// callable directly for operational checks.
func (e *Engine) CheckAndGenerateAlerts(ctx context.Context) []Alert {
	e.mu.Lock()
	snap := e.snap
	queues := append([]string(nil), e.queues...)
	probe := e.probe
	e.mu.Unlock()

	var fired []Alert

	if total := snap.JobsCompleted + snap.JobsFailed; total > 0 {
		rate := float64(snap.JobsCompleted) / float64(total)
		if rate < minSuccessRate {
			fired = append(fired, Alert{
				Type:           "error_rate",
				Severity:       SeverityWarning,
				Message:        fmt.Sprintf("job success rate %.1f%% below %.0f%%", rate*100, minSuccessRate*100),
				Recommendation: "inspect recent failed jobs and upstream provider availability",
			})
		}
	}

	for _, q := range queues {
		counts, err := e.substrate.Counts(ctx, q)
		if err != nil {
			continue
		}
		if counts.Waiting > maxWaitingBacklog {
			fired = append(fired, Alert{
				Type:           "queue_backlog",
				Severity:       SeverityWarning,
				Message:        fmt.Sprintf("queue %q has %d waiting jobs", q, counts.Waiting),
				Recommendation: "raise worker concurrency or check for a stuck handler",
			})
		}
	}

	if snap.EmailsProcessing > maxEmailsInFlight {
		fired = append(fired, Alert{
			Type:           "emails_processing",
			Severity:       SeverityInfo,
			Message:        fmt.Sprintf("%d notifications currently in flight", snap.EmailsProcessing),
			Recommendation: "transient under load; investigate only if it persists",
		})
	}

	if probe != nil {
		if err := probe(ctx); err != nil {
			fired = append(fired, Alert{
				Type:           "log_store_unreachable",
				Severity:       SeverityError,
				Message:        fmt.Sprintf("notification log store unreachable: %v", err),
				Recommendation: "check database connectivity; notification audit trail is not being written",
			})
		}
	}

	for i := range fired {
		e.fire(fired[i])
	}
	return e.recentTail(len(fired))
}

// recentTail returns the n most recently fired alerts with ids and
// timestamps filled in.
func (e *Engine) recentTail(n int) []Alert {
	if n == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Alert(nil), e.recent[len(e.recent)-n:]...)
}
