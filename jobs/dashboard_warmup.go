package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/daybook/daybook/internal/aggregate"
	jobmetrics "github.com/daybook/daybook/internal/jobs"
	"github.com/daybook/daybook/internal/reporting"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DashboardSource computes dashboard totals, populating the cache on a miss.
type DashboardSource interface {
	GetDashboardTotals(ctx context.Context, req reporting.DashboardRequest) reporting.Result[aggregate.Dashboard]
}

// DashboardWarmupJob keeps the dashboard cache populated so interactive
// requests rarely scan the ledger.
type DashboardWarmupJob struct {
	Source  DashboardSource
	Groups  [][]aggregate.Group
	Loc     *time.Location
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDashboardWarmupJob wires dependencies for the warmup handler. Each entry
// of groups is warmed in addition to the configured default scope.
func NewDashboardWarmupJob(source DashboardSource, loc *time.Location, logger *slog.Logger, metrics *jobmetrics.Metrics, groups ...[]aggregate.Group) *DashboardWarmupJob {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardWarmupJob{
		Source:  source,
		Groups:  groups,
		Loc:     loc,
		Logger:  logger,
		Metrics: metrics,
		clock:   time.Now,
	}
}

// Handle processes dashboard warmup tasks.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Source == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload DashboardWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("dashboard warmup: payload: %v: %w", err, asynq.SkipRetry)
	}
	now, err := j.asOf(payload.AsOf)
	if err != nil {
		return fmt.Errorf("dashboard warmup: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskDashboardWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("as_of", now.Format(time.DateOnly)))
	start := time.Now()

	scopes := append([][]aggregate.Group{nil}, j.Groups...)
	for _, groups := range scopes {
		res := j.Source.GetDashboardTotals(ctx, reporting.DashboardRequest{Now: now, Groups: groups})
		if !res.Success {
			logger.Error("warm dashboard", slog.String("kind", string(res.Kind)), slog.Any("error", res.Err))
			return fmt.Errorf("dashboard warmup: %s", res.Message)
		}
		tracker.Processed(1)
	}

	logger.Info("completed dashboard warmup", slog.Int("scopes", len(scopes)), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *DashboardWarmupJob) asOf(raw string) (time.Time, error) {
	if raw == "" {
		return j.now().In(j.Loc), nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, j.Loc)
	if err != nil {
		return time.Time{}, err
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskDashboardWarmup))
}

func (j *DashboardWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DashboardWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
