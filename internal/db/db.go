package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"duewatch/internal/auth"
	"duewatch/internal/obligation"
	"duewatch/internal/queue"
	"duewatch/internal/reminder"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&obligation.Obligation{},
		&obligation.Recipient{},
		&queue.Job{},
		&reminder.NotificationLog{},
		&auth.Operator{},
	); err != nil {
		return err
	}

	stmts := []string{
		// Claim path: due jobs per queue, then stalled-lock sweep.
		`create index if not exists idx_jobs_due on jobs(queue, status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,

		// Batch fetch: candidates by policy and status, ordered by due date.
		`create index if not exists idx_obligations_scan on obligations(policy_type, status, due_date);`,

		// Manager ranking by tenure.
		`create index if not exists idx_recipients_managers on recipients(role, policy_scope, hired_at);`,

		`create index if not exists idx_notification_logs_obligation on notification_logs(obligation_id, created_at desc);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
