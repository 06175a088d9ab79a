// Package scheduler polls report schedules and dispatches the ones due.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gitrag-ai/gitrag/server/metrics"
	"github.com/gitrag-ai/gitrag/server/queue"
	"github.com/gitrag-ai/gitrag/server/service/report"
	"github.com/gitrag-ai/gitrag/store"
)

// Reporter is the delivery surface the poller drives.
type Reporter interface {
	SendOnce(ctx context.Context, userEmail, repoRef, prompt, destination string, window *report.Window) (*report.Report, error)
}

// Poller matches active schedules against the current UTC clock once a
// minute and enqueues delivery jobs for the ones due.
type Poller struct {
	store    *store.Store
	queues   *queue.Manager
	reporter Reporter
	cron     *cron.Cron
	now      func() time.Time
}

func NewPoller(st *store.Store, queues *queue.Manager, reporter Reporter) *Poller {
	return &Poller{
		store:    st,
		queues:   queues,
		reporter: reporter,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		now:      time.Now,
	}
}

// Start begins the minute tick and blocks until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	if _, err := p.cron.AddFunc("* * * * *", func() { p.Tick(ctx) }); err != nil {
		return err
	}
	p.cron.Start()
	slog.Info("schedule poller started")

	<-ctx.Done()
	stopped := p.cron.Stop()
	<-stopped.Done()
	slog.Info("schedule poller stopped")
	return nil
}

// Tick runs one poll pass. Exposed for the CLI trigger and tests.
//
// A schedule is due when it is active, its stored UTC clock equals the
// current UTC minute and nothing was sent for it today. The date guard makes
// a delayed or repeated tick within the same minute idempotent.
//
// TODO: enforce weekly and monthly cadence; today those frequencies fire
// daily at the scheduled time, suppressed only within the same day.
func (p *Poller) Tick(ctx context.Context) {
	now := p.now().UTC()
	clock := now.Format("15:04")
	today := now.Format("2006-01-02")

	active := true
	due, err := p.store.ListSchedules(ctx, &store.FindSchedule{Active: &active, TimeUTC: &clock})
	if err != nil {
		slog.Error("schedule poll failed", "error", err)
		return
	}

	for _, sc := range due {
		if sc.LastSentDate == today {
			continue
		}
		p.enqueueDelivery(sc, today)
	}
}

func (p *Poller) enqueueDelivery(sc *store.Schedule, today string) {
	scheduleID := sc.ID
	userEmail, repo, prompt, destination := sc.UserEmail, sc.Repo, sc.Prompt, sc.DestinationEmail

	job, err := p.queues.Enqueue("reports", "scheduled_report", func(jobCtx context.Context) (any, error) {
		rep, err := p.reporter.SendOnce(jobCtx, userEmail, repo, prompt, destination, nil)
		if err != nil {
			return nil, err
		}
		// Recorded only after delivery so a failed attempt is retried on
		// the next tick.
		if _, err := p.store.UpdateSchedule(jobCtx, &store.UpdateSchedule{
			ID:           scheduleID,
			LastSentDate: &today,
		}); err != nil {
			return nil, err
		}
		metrics.ScheduledReportsSent.Inc()
		return rep, nil
	})
	if err != nil {
		slog.Error("failed to enqueue scheduled report", "schedule", sc.UID, "error", err)
		return
	}
	slog.Info("scheduled report enqueued", "schedule", sc.UID, "job", job.ID, "repo", repo)
}
