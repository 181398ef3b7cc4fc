// Package reminder orchestrates one scan: fetch candidate obligations,
// classify them against today, resolve recipients, and enqueue one
// notification job per obligation that needs a message.
package reminder

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"duewatch/internal/classify"
	"duewatch/internal/metrics"
	"duewatch/internal/obligation"
	"duewatch/internal/queue"
	"duewatch/internal/recipient"
)

const (
	QueueScans         = "scans"
	QueueNotifications = "notifications"

	JobScanCorporate    = "scan-corporate"
	JobScanCoverage     = "scan-coverage"
	JobSendNotification = "send-notification"
)

// Coverage obligations without a grouping key process under this group.
const unknownGroup = "unknown"

// Enqueuer is the slice of the queue repo the processor needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobName string, payload any, opts queue.Options) (*queue.Job, error)
}

// Counters is implemented by the metrics engine.
type Counters interface {
	ReminderSent()
	ReminderSkipped()
	ReminderFailed()
}

// Reporter receives the aggregate result of every batch run.
type Reporter interface {
	NotifyExecution(r metrics.ExecutionReport)
}

type ItemResult struct {
	ObligationID uint64 `json:"obligation_id"`
	Group        string `json:"group,omitempty"`
	Sent         bool   `json:"sent"`
	Skipped      bool   `json:"skipped"`
	Reason       string `json:"reason,omitempty"`
	Err          string `json:"error,omitempty"`
}

type BatchResult struct {
	Policy  obligation.Policy `json:"policy"`
	Total   int               `json:"total"`
	Sent    int               `json:"sent"`
	Skipped int               `json:"skipped"`
	Failed  int               `json:"failed"`
	Items   []ItemResult      `json:"items"`
}

type Processor struct {
	Obligations obligation.Provider
	Resolver    *recipient.Resolver
	Queue       Enqueuer
	Counters    Counters
	Reporter    Reporter

	WarningDays int
	MaxAttempts int

	CorporateStatuses []string
	CoverageStatuses  []string
}

// RunBatch processes every candidate obligation for one policy. Per-item
// failures are collected, never propagated: one broken obligation must not
// sink the rest of the batch. Only the initial fetch can fail the batch job
// itself (and with it trigger the substrate's retry).
func (p *Processor) RunBatch(ctx context.Context, policy obligation.Policy, now time.Time, progress func(pct int)) (BatchResult, error) {
	res := BatchResult{Policy: policy}

	candidates, err := p.Obligations.Obligations(ctx, policy, p.statuses(policy))
	if err != nil {
		return res, err
	}
	res.Total = len(candidates)

	ordered := p.order(policy, candidates)

	for i, item := range ordered {
		r := p.processOne(ctx, item.o, policy, now)
		r.Group = item.group
		res.Items = append(res.Items, r)
		switch {
		case r.Sent:
			res.Sent++
		case r.Skipped:
			res.Skipped++
		default:
			res.Failed++
		}
		if progress != nil && res.Total > 0 {
			progress((i + 1) * 100 / res.Total)
		}
	}

	// Always reported, even when nothing was sent.
	p.Reporter.NotifyExecution(metrics.ExecutionReport{
		Policy:  string(policy),
		Total:   res.Total,
		Sent:    res.Sent,
		Skipped: res.Skipped,
		Failed:  res.Failed,
		At:      now,
	})
	return res, nil
}

type orderedItem struct {
	o     obligation.Obligation
	group string
}

// order flattens the candidate list into processing order. Coverage batches
// group by grouping key so one plan's failures read together in the results;
// corporate keeps fetch order.
func (p *Processor) order(policy obligation.Policy, candidates []obligation.Obligation) []orderedItem {
	if policy != obligation.PolicyCoverage {
		out := make([]orderedItem, len(candidates))
		for i, o := range candidates {
			out[i] = orderedItem{o: o}
		}
		return out
	}

	groups := make(map[string][]obligation.Obligation)
	for _, o := range candidates {
		key := unknownGroup
		if o.GroupKey != nil && *o.GroupKey != "" {
			key = *o.GroupKey
		}
		groups[key] = append(groups[key], o)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []orderedItem
	for _, k := range keys {
		for _, o := range groups[k] {
			out = append(out, orderedItem{o: o, group: k})
		}
	}
	return out
}

func (p *Processor) processOne(ctx context.Context, o obligation.Obligation, policy obligation.Policy, now time.Time) ItemResult {
	item := ItemResult{ObligationID: o.ID}

	decision, err := classify.Classify(o, now, classify.Params{Policy: policy, WarningDays: p.WarningDays})
	if err != nil {
		p.Counters.ReminderFailed()
		item.Err = err.Error()
		return item
	}
	if !decision.ShouldSend {
		p.Counters.ReminderSkipped()
		item.Skipped = true
		item.Reason = decision.Reason
		return item
	}

	recipients, err := p.Resolver.Resolve(ctx, o)
	if err != nil {
		p.Counters.ReminderFailed()
		item.Err = err.Error()
		return item
	}
	if len(recipients) == 0 {
		// Owner lookup failed or nobody to notify: skip, never send to nobody.
		p.Counters.ReminderSkipped()
		item.Skipped = true
		item.Reason = "no recipients"
		return item
	}

	payload := Notification{
		MessageType:   decision.Type,
		Recipients:    recipients,
		Obligation:    o,
		DaysRemaining: decision.DaysRemaining,
		OverdueDays:   decision.OverdueDays(),
	}
	if _, err := p.Queue.Enqueue(ctx, QueueNotifications, JobSendNotification, payload, queue.Options{
		Attempts: p.MaxAttempts,
	}); err != nil {
		p.Counters.ReminderFailed()
		item.Err = err.Error()
		return item
	}

	p.Counters.ReminderSent()
	item.Sent = true
	return item
}

func (p *Processor) statuses(policy obligation.Policy) []string {
	var s []string
	if policy == obligation.PolicyCorporate {
		s = p.CorporateStatuses
	} else {
		s = p.CoverageStatuses
	}
	if len(s) == 0 {
		s = []string{obligation.StatusPending, obligation.StatusOverdue}
	}
	return s
}

// Force enqueues scan jobs immediately, bypassing the cron triggers. Used for
// operational testing; the jobs run through the same handlers and emit the
// same events as a scheduled run. Returns the enqueued job ids without
// waiting for execution.
func (p *Processor) Force(ctx context.Context, which string) ([]string, error) {
	var names []string
	switch which {
	case "corporate":
		names = []string{JobScanCorporate}
	case "coverage":
		names = []string{JobScanCoverage}
	case "both":
		names = []string{JobScanCorporate, JobScanCoverage}
	default:
		return nil, fmt.Errorf("unknown policy %q", which)
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		jobID := fmt.Sprintf("force:%s:%s", name, uuid.NewString())
		if _, err := p.Queue.Enqueue(ctx, QueueScans, name, struct{}{}, queue.Options{
			Attempts: p.MaxAttempts,
			JobID:    jobID,
		}); err != nil {
			return ids, err
		}
		log.Printf("reminder: forced %s as %s\n", name, jobID)
		ids = append(ids, jobID)
	}
	return ids, nil
}
