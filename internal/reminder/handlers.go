package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"duewatch/internal/dispatch"
	"duewatch/internal/obligation"
	"duewatch/internal/queue"
)

// PayloadError means the job body cannot be decoded; retrying cannot fix it.
type PayloadError struct {
	Job string
	Err error
}

func (e *PayloadError) Error() string   { return fmt.Sprintf("%s payload: %v", e.Job, e.Err) }
func (e *PayloadError) Unwrap() error   { return e.Err }
func (e *PayloadError) Permanent() bool { return true }

// EmailCounters tracks transport-level outcomes.
type EmailCounters interface {
	EmailSent()
	EmailFailed()
	EmailProcessing()
}

// Notifier executes send-notification jobs.
type Notifier struct {
	Transport Transport
	Counters  EmailCounters
}

func (n *Notifier) Handle(ctx context.Context, payload []byte, h queue.Handle) ([]byte, error) {
	var msg Notification
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, &PayloadError{Job: JobSendNotification, Err: err}
	}
	if len(msg.Recipients) == 0 {
		// The batch processor never enqueues an empty set; treat one as a no-op.
		return json.Marshal(Receipt{Success: false})
	}

	n.Counters.EmailProcessing()
	receipt, err := n.Transport.Send(ctx, msg)
	if err != nil {
		n.Counters.EmailFailed()
		return nil, err
	}
	n.Counters.EmailSent()
	return json.Marshal(receipt)
}

// Register wires the three job handlers into the dispatch table.
func Register(reg *dispatch.Registry, p *Processor, n *Notifier) {
	reg.Register(JobScanCorporate, scanHandler(p, obligation.PolicyCorporate))
	reg.Register(JobScanCoverage, scanHandler(p, obligation.PolicyCoverage))
	reg.Register(JobSendNotification, n.Handle)
}

func scanHandler(p *Processor, policy obligation.Policy) dispatch.HandlerFunc {
	return func(ctx context.Context, payload []byte, h queue.Handle) ([]byte, error) {
		res, err := p.RunBatch(ctx, policy, time.Now(), h.Progress)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	}
}
