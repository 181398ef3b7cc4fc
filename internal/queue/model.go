package queue

import "time"

const (
	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

// Job is one durable unit of work. Rows are claimed with SKIP LOCKED so a job
// is delivered to exactly one worker at a time; stalled RUNNING rows are swept
// back to PENDING rather than abandoned.
type Job struct {
	ID    uint64 `gorm:"primaryKey"`
	Queue string `gorm:"index;not null"`
	Name  string `gorm:"not null"`

	// JobID is an optional stable identifier. Enqueues sharing one JobID
	// collapse to a single row, which keeps repeating triggers idempotent
	// across restarts.
	JobID *string `gorm:"uniqueIndex"`

	Payload []byte `gorm:"type:jsonb;not null;default:'{}'::jsonb"`
	Result  []byte `gorm:"type:jsonb"`

	RunAt    time.Time `gorm:"index;not null"`
	Status   string    `gorm:"index;not null;default:'PENDING'"`
	Priority int       `gorm:"not null;default:0"`

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:5"`

	// BackoffBase is the first retry delay in seconds; later retries double it.
	BackoffBase int `gorm:"not null;default:2"`

	Progress int `gorm:"not null;default:0"`

	LockedBy *string    `gorm:"type:text"`
	LockedAt *time.Time `gorm:"type:timestamptz"`

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}
