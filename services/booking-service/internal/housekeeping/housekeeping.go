// Package housekeeping periodically removes date overrides and blocked dates that lie
// far enough in the past to be irrelevant.
package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultSpec          = "15 3 * * *"
	DefaultRetentionDays = 30
)

// Task is an extra cleanup step run after the date prune, e.g. trimming the outbox.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Store is the part of the booking store a Job touches.
type Store interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Settings(ctx context.Context) (model.Settings, error)
}

type Config struct {
	// Spec is a standard five-field cron expression.
	Spec          string
	RetentionDays int
	// Location is the timezone the cron spec fires in. The cutoff date follows the
	// business timezone stored in settings at the time of each run, falling back to
	// Location when settings cannot be read.
	Location *time.Location
}

type Job struct {
	store     Store
	logger    *slog.Logger
	spec      string
	retention int
	loc       *time.Location
	tasks     []Task
	now       func() time.Time
}

func New(store Store, logger *slog.Logger, cfg Config, tasks ...Task) (*Job, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, fmt.Errorf("invalid housekeeping schedule %q: %w", cfg.Spec, err)
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Job{
		store:     store,
		logger:    logger,
		spec:      cfg.Spec,
		retention: cfg.RetentionDays,
		loc:       cfg.Location,
		tasks:     tasks,
		now:       time.Now,
	}, nil
}

// Cutoff is the first date that is kept, counted in the current business timezone.
func (j *Job) Cutoff(ctx context.Context) time.Time {
	loc := j.loc
	if s, err := j.store.Settings(ctx); err != nil {
		j.logger.Warn("housekeeping: settings unavailable, using default timezone", "err", err, "timezone", loc.String())
	} else {
		loc = s.Location()
	}
	return availability.DateOf(j.now().In(loc)).AddDate(0, 0, -j.retention)
}

// RunOnce prunes once and then runs every extra task. A failing task does not stop the
// ones after it; all failures are returned joined.
func (j *Job) RunOnce(ctx context.Context) error {
	ctx, span := otelx.Tracer("booking-service/housekeeping").Start(ctx, "housekeeping.run")
	defer span.End()

	cutoff := j.Cutoff(ctx)
	var errs []error
	removed, err := j.store.PruneBefore(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("prune dates: %w", err))
	} else {
		j.logger.Info("pruned expired dates", "cutoff", availability.FormatDate(cutoff), "removed", removed)
	}
	span.SetAttributes(attribute.String("housekeeping.cutoff", availability.FormatDate(cutoff)), attribute.Int64("housekeeping.removed", removed))

	for _, t := range j.tasks {
		n, err := t.Run(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		j.logger.Info("housekeeping task done", "task", t.Name, "removed", n)
	}

	err = errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Run schedules RunOnce until ctx is cancelled. Overlapping runs are skipped.
func (j *Job) Run(ctx context.Context) {
	logger := cronLogger{j.logger}
	c := cron.New(
		cron.WithLocation(j.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc(j.spec, func() {
		if err := j.RunOnce(ctx); err != nil {
			j.logger.Error("housekeeping failed", "err", err)
		}
	})
	if err != nil {
		j.logger.Error("housekeeping not scheduled", "err", err)
		return
	}

	c.Start()
	j.logger.Info("housekeeping scheduled", "spec", j.spec, "retention_days", j.retention)
	<-ctx.Done()
	<-c.Stop().Done()
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
