package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/talenthub/pkg/logger"
)

const (
	defaultRetention         = 90 * 24 * time.Hour
	defaultRetentionSchedule = "@daily"
)

// NotificationPurger deletes read notifications created before a cutoff.
type NotificationPurger interface {
	PurgeReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Task is a named cleanup routine run on a cron schedule.
type Task struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner coordinates background maintenance tasks such as purging read
// notifications past their retention window.
type Cleaner struct {
	tasks []Task
	cron  *cron.Cron
	now   func() time.Time
	log   *zap.Logger
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithTask registers an additional task.
func WithTask(task Task) Option {
	return func(cleaner *Cleaner) {
		if task.Run != nil {
			cleaner.tasks = append(cleaner.tasks, task)
		}
	}
}

// WithNotificationRetention purges read notifications older than retention on
// schedule. Zero values fall back to 90 days and @daily.
func WithNotificationRetention(purger NotificationPurger, retention time.Duration, schedule string) Option {
	return WithTask(NotificationRetentionTask(purger, retention, schedule))
}

// NotificationRetentionTask builds the notification retention task.
func NotificationRetentionTask(purger NotificationPurger, retention time.Duration, schedule string) Task {
	if retention <= 0 {
		retention = defaultRetention
	}
	if schedule == "" {
		schedule = defaultRetentionSchedule
	}
	task := Task{Name: "notification_retention", Schedule: schedule}
	if purger != nil {
		task.Run = func(ctx context.Context, now time.Time) (int64, error) {
			return purger.PurgeReadOlderThan(ctx, now.Add(-retention))
		}
	}
	return task
}

// NewCleaner constructs a Cleaner. Tasks without a Run function are ignored.
func NewCleaner(opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		now: time.Now,
		log: logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Tasks returns the registered task names.
func (c *Cleaner) Tasks() []string {
	names := make([]string, 0, len(c.tasks))
	for _, task := range c.tasks {
		names = append(names, task.Name)
	}
	return names
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one task exists.
func (c *Cleaner) Start() error {
	if len(c.tasks) == 0 {
		return nil
	}

	for _, task := range c.tasks {
		task := task
		if _, err := c.cron.AddFunc(task.Schedule, func() {
			c.run(context.Background(), task)
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", task.Name, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially and reports
// every failure.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, task := range c.tasks {
		if err := c.run(ctx, task); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", task.Name, err))
		}
	}
	return errs
}

func (c *Cleaner) run(ctx context.Context, task Task) error {
	if task.Run == nil {
		return errors.New("task has no run function")
	}

	removed, err := task.Run(ctx, c.now())
	if err != nil {
		c.log.Warn("cleanup failed", zap.String("task", task.Name), zap.Error(err))
		return err
	}
	if removed > 0 {
		c.log.Info("cleanup completed", zap.String("task", task.Name), zap.Int64("removed", removed))
	}
	return nil
}
