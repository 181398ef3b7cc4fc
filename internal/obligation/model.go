package obligation

import "time"

// Policy selects which reminder rules apply to an obligation.
type Policy string

const (
	PolicyCorporate Policy = "CORPORATE"
	PolicyCoverage  Policy = "COVERAGE"
)

// Obligation statuses as delivered by the upstream system.
const (
	StatusPending = "PENDING"
	StatusOverdue = "OVERDUE"
	StatusPaid    = "PAID"
)

// Obligation is a reimbursement record with a due date. Read-only to the
// engine; rows are loaded by the upstream sync, never written here.
type Obligation struct {
	ID         uint64  `gorm:"primaryKey"`
	PolicyType Policy  `gorm:"type:text;index;not null"`
	Status     string  `gorm:"index;not null"`
	OwnerID    uint64  `gorm:"index;not null"`
	GroupKey   *string `gorm:"type:text"` // coverage only, e.g. health plan id

	DueDate     time.Time `gorm:"index;not null"`
	AmountCents int64     `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// Recipient is a notification target from the company directory.
type Recipient struct {
	ID      uint64 `gorm:"primaryKey" json:"-"`
	Name    string `gorm:"not null" json:"name"`
	Address string `gorm:"uniqueIndex;not null" json:"address"`
	Role    string `gorm:"not null;default:''" json:"role"`

	// Managers are ranked by tenure when picking escalation targets.
	PolicyScope Policy    `gorm:"type:text;index;not null;default:''" json:"-"`
	HiredAt     time.Time `gorm:"not null;default:now()" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"-"`
}

const RoleManager = "MANAGER"
