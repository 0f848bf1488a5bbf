package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"courtwatch/internal/ports"
)

// Cron adapts robfig/cron to the scheduler port. Specs are standard
// five-field cron expressions evaluated in the configured location.
type Cron struct {
	inner *cron.Cron
}

var _ ports.Scheduler = (*Cron)(nil)

// NewCron builds the driver; a nil location means local time.
func NewCron(loc *time.Location) *Cron {
	if loc == nil {
		loc = time.Local
	}
	return &Cron{inner: cron.New(cron.WithLocation(loc))}
}

// Add registers a recurring job.
func (c *Cron) Add(spec string, job func()) error {
	_, err := c.inner.AddFunc(spec, job)
	return err
}

// Start begins firing jobs in a background goroutine.
func (c *Cron) Start() {
	c.inner.Start()
}

// Stop halts scheduling and waits for in-flight jobs to finish, or for
// the caller's context to give up on them.
func (c *Cron) Stop(ctx context.Context) error {
	stopped := c.inner.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
