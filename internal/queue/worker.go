package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Dispatcher routes a claimed job to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *Job, h Handle) ([]byte, error)
}

// Handle lets a running handler report fractional progress (0-100).
// Monotonicity is a contract on handler authors, not enforced here.
type Handle interface {
	Progress(pct int)
}

type Worker struct {
	ID          string
	Queue       string
	Repo        *Repo
	Dispatcher  Dispatcher
	Bus         *Bus
	Concurrency int

	PollInterval time.Duration // default 800ms
	StallAfter   time.Duration // default 5m
}

func (w *Worker) Run(ctx context.Context) {
	poll := w.PollInterval
	if poll <= 0 {
		poll = 800 * time.Millisecond
	}
	n := w.Concurrency
	if n <= 0 {
		n = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.claimLoop(ctx, poll)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.stallLoop(ctx)
	}()
	wg.Wait()
}

func (w *Worker) claimLoop(ctx context.Context, poll time.Duration) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.Repo.Claim(ctx, w.Queue, w.ID)
			if err != nil {
				log.Printf("worker %s: claim error: %v\n", w.ID, err)
				continue
			}
			if job == nil {
				continue
			}
			w.process(ctx, job)
		}
	}
}

func (w *Worker) stallLoop(ctx context.Context) {
	after := w.StallAfter
	if after <= 0 {
		after = 5 * time.Minute
	}
	ticker := time.NewTicker(after / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stalled, err := w.Repo.RequeueStalled(ctx, after)
			if err != nil {
				log.Printf("worker %s: stall sweep error: %v\n", w.ID, err)
				continue
			}
			for _, j := range stalled {
				w.Bus.Publish(Event{Kind: EventStalled, Queue: j.Queue, Name: j.Name, JobID: j.ID})
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	w.Bus.Publish(Event{Kind: EventActive, Queue: job.Queue, Name: job.Name, JobID: job.ID})

	result, err := w.Dispatcher.Dispatch(ctx, job, &jobHandle{worker: w, job: job})
	if err == nil {
		if mdErr := w.Repo.MarkDone(ctx, job.ID, result); mdErr != nil {
			log.Printf("worker %s: mark done job=%d: %v\n", w.ID, job.ID, mdErr)
		}
		w.Bus.Publish(Event{Kind: EventCompleted, Queue: job.Queue, Name: job.Name, JobID: job.ID})
		return
	}

	w.Bus.Publish(Event{Kind: EventFailed, Queue: job.Queue, Name: job.Name, JobID: job.ID, Err: err.Error()})

	attempts, terminal, delay := retryPlan(job, err)
	if terminal {
		if mfErr := w.Repo.MarkFailed(ctx, job.ID, err.Error()); mfErr != nil {
			log.Printf("worker %s: mark failed job=%d: %v\n", w.ID, job.ID, mfErr)
		}
		return
	}
	if rlErr := w.Repo.RetryLater(ctx, job.ID, attempts, time.Now().Add(delay), err.Error()); rlErr != nil {
		log.Printf("worker %s: retry later job=%d: %v\n", w.ID, job.ID, rlErr)
	}
}

// retryPlan decides terminal failure vs retry for one failed execution.
// Permanent errors (unknown handler, validation) never retry.
func retryPlan(job *Job, err error) (attempts int, terminal bool, delay time.Duration) {
	attempts = job.Attempts + 1
	if isPermanent(err) || attempts >= job.MaxAttempts {
		return attempts, true, 0
	}
	return attempts, false, NextBackoff(time.Duration(job.BackoffBase)*time.Second, attempts)
}

type permanenter interface {
	Permanent() bool
}

func isPermanent(err error) bool {
	var p permanenter
	return errors.As(err, &p) && p.Permanent()
}

type jobHandle struct {
	worker *Worker
	job    *Job
}

func (h *jobHandle) Progress(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if err := h.worker.Repo.SetProgress(context.Background(), h.job.ID, pct); err != nil {
		log.Printf("worker %s: progress job=%d: %v\n", h.worker.ID, h.job.ID, err)
	}
	h.worker.Bus.Publish(Event{
		Kind:     EventProgress,
		Queue:    h.job.Queue,
		Name:     h.job.Name,
		JobID:    h.job.ID,
		Progress: pct,
	})
}
