// Package server assembles the HTTP API, job queues and schedule poller.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/gitrag-ai/gitrag/internal/profile"
	"github.com/gitrag-ai/gitrag/plugin/ai"
	"github.com/gitrag-ai/gitrag/plugin/ai/router"
	"github.com/gitrag-ai/gitrag/plugin/github"
	"github.com/gitrag-ai/gitrag/plugin/mail"
	"github.com/gitrag-ai/gitrag/server/dispatch"
	"github.com/gitrag-ai/gitrag/server/queue"
	apiv1 "github.com/gitrag-ai/gitrag/server/router/api/v1"
	"github.com/gitrag-ai/gitrag/server/scheduler"
	"github.com/gitrag-ai/gitrag/server/service/ingest"
	"github.com/gitrag-ai/gitrag/server/service/rag"
	"github.com/gitrag-ai/gitrag/server/service/report"
	"github.com/gitrag-ai/gitrag/server/service/schedule"
	"github.com/gitrag-ai/gitrag/store"
)

// Server is the assembled application.
type Server struct {
	profile *profile.Profile
	echo    *echo.Echo
	queues  *queue.Manager
	poller  *scheduler.Poller
}

// New wires the services against the store and provider.
func New(p *profile.Profile, st *store.Store) (*Server, error) {
	provider, err := ai.NewProvider(ai.ConfigFromProfile(p))
	if err != nil {
		return nil, err
	}

	var notifier mail.Notifier = mail.Disabled{}
	if p.SMTPHost != "" {
		notifier, err = mail.NewSMTPNotifier(mail.Config{
			Host:     p.SMTPHost,
			Port:     p.SMTPPort,
			Username: p.SMTPUsername,
			Password: p.SMTPPassword,
			From:     p.SMTPFrom,
		})
		if err != nil {
			return nil, err
		}
	} else {
		slog.Warn("SMTP not configured, email delivery disabled")
	}

	collector := github.NewClient(p.GitHubToken, github.Limits{
		Issues:  p.IngestIssuesLimit,
		PRs:     p.IngestPRsLimit,
		Commits: p.IngestCommitsLimit,
	})

	queues := queue.NewManager(
		queue.Config{Name: dispatch.QueueIngest, Workers: 2, JobTimeout: 10 * time.Minute},
		queue.Config{Name: dispatch.QueueReports, Workers: 2, JobTimeout: 5 * time.Minute},
	)

	ragService := rag.NewService(st, provider)
	ingestService := ingest.NewService(st, collector, provider)
	reportService := report.NewService(st, provider, notifier, filepath.Join(p.Data, "reports"))
	scheduleService := schedule.NewService(st, notifier, p.InstanceURL)

	dispatcher := dispatch.New(queues, ragService, ingestService, reportService, scheduleService)
	rt := router.New(provider, router.NewCatalog())

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI: true, LogStatus: true, LogMethod: true, LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds())
			return nil
		},
	}))

	api := apiv1.NewAPIV1Service(p, rt, dispatcher, queues, ragService, reportService, scheduleService)
	api.RegisterRoutes(e)

	return &Server{
		profile: p,
		echo:    e,
		queues:  queues,
		poller:  scheduler.NewPoller(st, queues, reportService),
	}, nil
}

// Start runs the HTTP listener, workers and poller until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.queues.Start(ctx) })
	g.Go(func() error { return s.poller.Start(ctx) })
	g.Go(func() error {
		slog.Info("server listening", "addr", s.profile.ListenAddr(), "version", s.profile.Version)
		if err := s.echo.Start(s.profile.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// CheckSchedules runs one poller pass and waits for the dispatched jobs to
// drain. Used by the CLI trigger.
func (s *Server) CheckSchedules(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = s.queues.Start(workerCtx)
		close(done)
	}()

	s.poller.Tick(ctx)
	for s.queues.PendingJobs() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	cancel()
	<-done
	return nil
}
