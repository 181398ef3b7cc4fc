package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	base := 2 * time.Second

	assert.Equal(t, 2*time.Second, NextBackoff(base, 1))
	assert.Equal(t, 4*time.Second, NextBackoff(base, 2))
	assert.Equal(t, 8*time.Second, NextBackoff(base, 3))
	assert.Equal(t, maxBackoff, NextBackoff(base, 30))

	// Zero base falls back to the default.
	assert.Equal(t, DefaultBackoffBase, NextBackoff(0, 1))
}

type permErr struct{ msg string }

func (e permErr) Error() string   { return e.msg }
func (e permErr) Permanent() bool { return true }

func TestRetryPlan(t *testing.T) {
	job := &Job{Attempts: 0, MaxAttempts: 3, BackoffBase: 2}

	attempts, terminal, delay := retryPlan(job, errors.New("transient"))
	assert.Equal(t, 1, attempts)
	assert.False(t, terminal)
	assert.Equal(t, 2*time.Second, delay)

	job.Attempts = 2
	attempts, terminal, _ = retryPlan(job, errors.New("transient"))
	assert.Equal(t, 3, attempts)
	assert.True(t, terminal)

	job.Attempts = 0
	_, terminal, _ = retryPlan(job, fmt.Errorf("dispatch: %w", permErr{"unknown handler"}))
	assert.True(t, terminal, "permanent errors never retry")
}

func TestBusFanOutNeverBlocks(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(Event{Kind: EventQueued, Queue: "scans", JobID: 1})

	ea := <-a
	eb := <-b
	assert.Equal(t, EventQueued, ea.Kind)
	assert.Equal(t, ea.JobID, eb.JobID)
	assert.False(t, ea.At.IsZero())

	// A full subscriber drops events instead of blocking the publisher.
	for i := 0; i < 300; i++ {
		bus.Publish(Event{Kind: EventProgress, JobID: uint64(i)})
	}
}

func TestNilBusPublishIsSafe(t *testing.T) {
	var bus *Bus
	bus.Publish(Event{Kind: EventQueued})
}

func TestRepeatIDStableWithinMinute(t *testing.T) {
	at := time.Date(2025, 3, 5, 6, 0, 12, 0, time.UTC)
	again := at.Add(30 * time.Second)

	assert.Equal(t, RepeatID("scan-corporate", at), RepeatID("scan-corporate", again))
	assert.NotEqual(t, RepeatID("scan-corporate", at), RepeatID("scan-coverage", at))
	assert.NotEqual(t, RepeatID("scan-corporate", at), RepeatID("scan-corporate", at.Add(time.Minute)))
}
