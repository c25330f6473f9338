package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "eventdesk/internal/log"
)

// cronLogger routes cron's own logging into the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

// Runner runs a job on a cron schedule until its context ends.
type Runner struct {
	cron *cron.Cron
	spec string
	id   cron.EntryID
	done chan struct{}
}

// Validate reports whether spec is a standard five-field cron expression
// or a descriptor such as "@every 5m".
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("schedule: invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// Start schedules job on spec, evaluated in loc. A run that is still going
// when the next tick fires causes that tick to be skipped. The runner stops
// when ctx is cancelled, waiting for a running job to return.
func Start(ctx context.Context, spec string, loc *time.Location, job func(context.Context)) (*Runner, error) {
	if job == nil {
		return nil, fmt.Errorf("schedule: nil job")
	}
	if err := Validate(spec); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	id, err := c.AddFunc(spec, func() { job(ctx) })
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	r := &Runner{cron: c, spec: spec, id: id, done: make(chan struct{})}
	c.Start()
	appLog.Info("schedule started", "spec", spec, "next", r.Next())

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("schedule stopped", "spec", spec)
		close(r.done)
	}()
	return r, nil
}

// Next returns the next time the job fires.
func (r *Runner) Next() time.Time {
	return r.cron.Entry(r.id).Next
}

// Done is closed once the runner has stopped.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
