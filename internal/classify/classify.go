// Package classify decides whether an obligation needs a reminder today.
// It is pure: callers supply the clock so the rules stay testable.
package classify

import (
	"fmt"
	"math"
	"time"

	"duewatch/internal/obligation"
)

type MessageType string

const (
	MessageReminderBeforeDue MessageType = "REMINDER_BEFORE_DUE"
	MessageOverdue           MessageType = "OVERDUE"
)

// Corporate reminders only run during the first days of the month, when the
// salary reimbursement cycle is open.
const corporateWindowLastDay = 10

const DefaultWarningDays = 10

// Decision is the outcome of one classification pass for one obligation.
// DaysRemaining is signed: zero or negative means the obligation is due.
type Decision struct {
	ObligationID  uint64      `json:"obligation_id"`
	Type          MessageType `json:"message_type,omitempty"`
	DaysRemaining int         `json:"days_remaining"`
	ShouldSend    bool        `json:"should_send"`
	Reason        string      `json:"reason,omitempty"`
}

// OverdueDays is how many days past due the obligation is. Zero for
// same-day due dates, which still classify as overdue.
func (d Decision) OverdueDays() int {
	if d.DaysRemaining > 0 {
		return 0
	}
	return -d.DaysRemaining
}

// ValidationError means the input can never classify; retrying is pointless.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

func (e *ValidationError) Permanent() bool { return true }

type Params struct {
	Policy      obligation.Policy
	WarningDays int // coverage only; DefaultWarningDays when zero
}

// Classify maps one obligation and the current time to a Decision.
func Classify(o obligation.Obligation, now time.Time, p Params) (Decision, error) {
	if o.DueDate.IsZero() {
		return Decision{}, &ValidationError{Field: "due_date", Detail: "zero date"}
	}

	switch p.Policy {
	case obligation.PolicyCorporate:
		return classifyCorporate(o, now), nil
	case obligation.PolicyCoverage:
		days := p.WarningDays
		if days <= 0 {
			days = DefaultWarningDays
		}
		return classifyCoverage(o, now, days), nil
	default:
		return Decision{}, &ValidationError{Field: "policy", Detail: string(p.Policy)}
	}
}

func classifyCorporate(o obligation.Obligation, now time.Time) Decision {
	if now.Day() > corporateWindowLastDay {
		return Decision{ObligationID: o.ID, Reason: "out of period"}
	}

	remaining := daysUntil(o.DueDate, now)
	if remaining <= 0 {
		return Decision{
			ObligationID:  o.ID,
			Type:          MessageOverdue,
			DaysRemaining: remaining,
			ShouldSend:    true,
		}
	}

	// Corporate has no warning window: inside the monthly period every
	// pending obligation gets a reminder, however far out the due date.
	return Decision{
		ObligationID:  o.ID,
		Type:          MessageReminderBeforeDue,
		DaysRemaining: remaining,
		ShouldSend:    true,
	}
}

func classifyCoverage(o obligation.Obligation, now time.Time, warningDays int) Decision {
	remaining := daysUntil(o.DueDate, now)

	if remaining <= 0 {
		return Decision{
			ObligationID:  o.ID,
			Type:          MessageOverdue,
			DaysRemaining: remaining,
			ShouldSend:    true,
		}
	}
	if remaining <= warningDays {
		return Decision{
			ObligationID:  o.ID,
			Type:          MessageReminderBeforeDue,
			DaysRemaining: remaining,
			ShouldSend:    true,
		}
	}
	return Decision{
		ObligationID:  o.ID,
		DaysRemaining: remaining,
		Reason:        "not within warning window",
	}
}

// daysUntil rounds up, so a due date later today yields 0 and counts as due.
func daysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}
