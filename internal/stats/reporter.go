// Package stats periodically logs a one-line ingestion summary, so an
// operator can tell from the log alone whether devices are reporting.
package stats

import (
	"context"
	"time"

	"gem2prom/internal/core/domain"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

type Reporter struct {
	scheduler quartz.Scheduler
	interval  time.Duration

	rootContext *pactor.RootContext
	ingestActor *pactor.PID
	logger      *zap.Logger
}

func NewReporter(interval time.Duration, rootContext *pactor.RootContext, ingestActor *pactor.PID, logger *zap.Logger) (*Reporter, error) {
	scheduler, err := quartz.NewStdScheduler()
	if err != nil {
		return nil, err
	}
	return &Reporter{
		scheduler:   scheduler,
		interval:    interval,
		rootContext: rootContext,
		ingestActor: ingestActor,
		logger:      logger.With(zap.String("component", "stats")),
	}, nil
}

// Start schedules the summary job. Cancelling ctx stops the scheduler.
func (r *Reporter) Start(ctx context.Context) error {
	r.scheduler.Start(ctx)

	reportJob := job.NewFunctionJob(func(context.Context) (bool, error) {
		r.report()
		return true, nil
	})
	detail := quartz.NewJobDetail(reportJob, quartz.NewJobKey("ingest_stats"))
	return r.scheduler.ScheduleJob(detail, quartz.NewSimpleTrigger(r.interval))
}

func (r *Reporter) Stop() {
	r.scheduler.Stop()
}

func (r *Reporter) report() {
	res, err := r.rootContext.RequestFuture(r.ingestActor, domain.IngestStatsRequest{}, 5*time.Second).Result()
	if err != nil {
		r.logger.Warn("stats request failed", zap.Error(err))
		return
	}
	if stats, ok := res.(domain.IngestStatsResponse); ok {
		r.logger.Info("ingestion summary",
			zap.Uint64("packets", stats.PacketsTotal),
			zap.Int("devices", stats.DevicesSeen))
	}
}
