package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"duewatch/internal/classify"
	"duewatch/internal/obligation"
)

// Notification is the payload of one send-notification job.
type Notification struct {
	MessageType   classify.MessageType   `json:"message_type"`
	Recipients    []obligation.Recipient `json:"recipients"`
	Obligation    obligation.Obligation  `json:"obligation"`
	DaysRemaining int                    `json:"days_remaining"`
	OverdueDays   int                    `json:"overdue_days"`
}

// Subject assembles the plain message line. Full templating lives upstream.
func (n Notification) Subject() string {
	switch n.MessageType {
	case classify.MessageOverdue:
		return fmt.Sprintf("Obligation %d is %d day(s) overdue", n.Obligation.ID, n.OverdueDays)
	default:
		return fmt.Sprintf("Obligation %d is due in %d day(s)", n.Obligation.ID, n.DaysRemaining)
	}
}

type Receipt struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
}

// Transport delivers one notification to its recipients.
type Transport interface {
	Send(ctx context.Context, n Notification) (Receipt, error)
}

// NotificationLog is the audit row written per delivered notification.
type NotificationLog struct {
	ID           uint64 `gorm:"primaryKey"`
	ObligationID uint64 `gorm:"index;not null"`
	MessageType  string `gorm:"not null"`

	Recipients pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	DaysRemaining int    `gorm:"not null;default:0"`
	Subject       string `gorm:"type:text;not null;default:''"`
	MessageID     string `gorm:"uniqueIndex;not null"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

// LogTransport records deliveries in the notification log table. It stands in
// for the real mail/SMS gateway and doubles as the reachability probe behind
// the log-store alert rule.
type LogTransport struct {
	DB *gorm.DB
}

func (t *LogTransport) Send(ctx context.Context, n Notification) (Receipt, error) {
	addrs := make(pq.StringArray, 0, len(n.Recipients))
	for _, r := range n.Recipients {
		addrs = append(addrs, r.Address)
	}

	row := NotificationLog{
		ObligationID:  n.Obligation.ID,
		MessageType:   string(n.MessageType),
		Recipients:    addrs,
		DaysRemaining: n.DaysRemaining,
		Subject:       n.Subject(),
		MessageID:     uuid.NewString(),
	}
	if err := t.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return Receipt{}, fmt.Errorf("notification log: %w", err)
	}
	return Receipt{Success: true, MessageID: row.MessageID}, nil
}

// Ping reports whether the log store is reachable.
func (t *LogTransport) Ping(ctx context.Context) error {
	db, err := t.DB.WithContext(ctx).DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}
