package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler fires repeating triggers. Each fire enqueues under a
// deterministic JobID derived from the fire minute, so overlapping
// schedulers (or a restart mid-registration) cannot duplicate a run.
type Scheduler struct {
	repo *Repo
	cron *cron.Cron
}

func NewScheduler(repo *Repo) *Scheduler {
	return &Scheduler{repo: repo, cron: cron.New()}
}

// Repeat registers a cron-driven enqueue of jobName on queueName.
func (s *Scheduler) Repeat(queueName, jobName, spec string, payload any, opts Options) error {
	_, err := s.cron.AddFunc(spec, func() {
		o := opts
		o.JobID = RepeatID(jobName, time.Now())
		if _, err := s.repo.Enqueue(context.Background(), queueName, jobName, payload, o); err != nil {
			log.Printf("scheduler: enqueue %s: %v\n", jobName, err)
		}
	})
	if err != nil {
		return fmt.Errorf("register %q (%s): %w", jobName, spec, err)
	}
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RepeatID is stable for all fires of jobName within the same minute.
func RepeatID(jobName string, at time.Time) string {
	return fmt.Sprintf("repeat:%s:%s", jobName, at.UTC().Truncate(time.Minute).Format("200601021504"))
}
