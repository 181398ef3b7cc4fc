package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultMaxAttempts = 5
	DefaultBackoffBase = 2 * time.Second
	maxBackoff         = 10 * time.Minute
)

// Options tune one enqueue. Zero values fall back to queue defaults.
type Options struct {
	Attempts    int
	BackoffBase time.Duration
	Priority    int
	Delay       time.Duration
	JobID       string
}

// Counts is the backlog breakdown for one queue.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

type Repo struct {
	DB  *gorm.DB
	Bus *Bus
}

// Enqueue creates one job. When Options.JobID is set and a row with that id
// already exists, the enqueue is a no-op and Enqueue returns (nil, nil).
func (r *Repo) Enqueue(ctx context.Context, queueName, jobName string, payload any, opts Options) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	backoff := opts.BackoffBase
	if backoff <= 0 {
		backoff = DefaultBackoffBase
	}

	j := Job{
		Queue:       queueName,
		Name:        jobName,
		Payload:     body,
		RunAt:       time.Now().Add(opts.Delay),
		Status:      StatusPending,
		Priority:    opts.Priority,
		MaxAttempts: attempts,
		BackoffBase: int(backoff / time.Second),
	}
	if opts.JobID != "" {
		id := opts.JobID
		j.JobID = &id
	}

	tx := r.DB.WithContext(ctx)
	if j.JobID != nil {
		tx = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			DoNothing: true,
		})
	}
	if err := tx.Create(&j).Error; err != nil {
		return nil, err
	}
	if j.ID == 0 {
		// Conflict on JobID: an equivalent job is already queued.
		return nil, nil
	}

	r.Bus.Publish(Event{Kind: EventQueued, Queue: queueName, Name: jobName, JobID: j.ID})
	return &j, nil
}

// Claim atomically takes one due job from the queue. FOR UPDATE SKIP LOCKED
// ensures no double-claim across workers. Returns nil when nothing is due.
func (r *Repo) Claim(ctx context.Context, queueName, workerID string) (*Job, error) {
	var job Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Raw(`
with cte as (
  select id
  from jobs
  where queue = ? and status = 'PENDING' and run_at <= now()
  order by priority desc, run_at asc
  for update skip locked
  limit 1
)
update jobs
set status='RUNNING', locked_by=?, locked_at=now(), updated_at=now()
where id in (select id from cte)
returning *;
`, queueName, workerID)
		return q.Scan(&job).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

// RequeueStalled sweeps RUNNING jobs whose lock is older than the threshold
// back to PENDING so another worker can pick them up.
func (r *Repo) RequeueStalled(ctx context.Context, olderThan time.Duration) ([]Job, error) {
	var stalled []Job
	err := r.DB.WithContext(ctx).Raw(`
update jobs
set status='PENDING', locked_by=null, locked_at=null, updated_at=now()
where status='RUNNING' and locked_at is not null
  and locked_at < now() - (? * interval '1 second')
returning *;
`, int(olderThan.Seconds())).Scan(&stalled).Error
	if err != nil {
		return nil, err
	}
	return stalled, nil
}

func (r *Repo) MarkDone(ctx context.Context, id uint64, result []byte) error {
	return r.DB.WithContext(ctx).Exec(
		`update jobs set status='DONE', result=?, progress=100, updated_at=now() where id=?`,
		result, id,
	).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.DB.WithContext(ctx).Exec(
		`update jobs set status='FAILED', last_error=?, updated_at=now() where id=?`,
		errMsg, id,
	).Error
}

func (r *Repo) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.WithContext(ctx).Exec(`
update jobs
set status='PENDING',
    attempts=?,
    run_at=?,
    locked_by=null,
    locked_at=null,
    last_error=?,
    updated_at=now()
where id=?`, attempts, runAt, errMsg, id).Error
}

func (r *Repo) SetProgress(ctx context.Context, id uint64, pct int) error {
	return r.DB.WithContext(ctx).Exec(
		`update jobs set progress=?, updated_at=now() where id=?`,
		pct, id,
	).Error
}

func (r *Repo) Counts(ctx context.Context, queueName string) (Counts, error) {
	var rows []struct {
		Status  string
		Delayed bool
		N       int64
	}
	err := r.DB.WithContext(ctx).Raw(`
select status, (status = 'PENDING' and run_at > now()) as delayed, count(*) as n
from jobs
where queue = ?
group by 1, 2`, queueName).Scan(&rows).Error
	if err != nil {
		return Counts{}, err
	}

	var c Counts
	for _, row := range rows {
		switch {
		case row.Status == StatusPending && row.Delayed:
			c.Delayed += row.N
		case row.Status == StatusPending:
			c.Waiting += row.N
		case row.Status == StatusRunning:
			c.Active += row.N
		case row.Status == StatusDone:
			c.Completed += row.N
		case row.Status == StatusFailed:
			c.Failed += row.N
		}
	}
	return c, nil
}

// Ping reports whether the substrate is reachable.
func (r *Repo) Ping(ctx context.Context) error {
	db, err := r.DB.WithContext(ctx).DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// NextBackoff doubles the base delay per completed attempt, capped.
func NextBackoff(base time.Duration, attempts int) time.Duration {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempts-1)))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}
