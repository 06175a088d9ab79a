// Package v1 exposes the HTTP API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gitrag-ai/gitrag/internal/profile"
	"github.com/gitrag-ai/gitrag/plugin/ai/router"
	"github.com/gitrag-ai/gitrag/server/dispatch"
	"github.com/gitrag-ai/gitrag/server/queue"
	"github.com/gitrag-ai/gitrag/server/service/rag"
	"github.com/gitrag-ai/gitrag/server/service/report"
	"github.com/gitrag-ai/gitrag/server/service/schedule"
)

// APIV1Service wires the HTTP handlers to the services.
type APIV1Service struct {
	Profile    *profile.Profile
	Router     *router.Router
	Dispatcher *dispatch.Dispatcher
	Queues     *queue.Manager
	RAG        *rag.Service
	Reports    *report.Service
	Schedules  *schedule.Service
}

func NewAPIV1Service(
	p *profile.Profile,
	rt *router.Router,
	dispatcher *dispatch.Dispatcher,
	queues *queue.Manager,
	ragService *rag.Service,
	reportService *report.Service,
	scheduleService *schedule.Service,
) *APIV1Service {
	return &APIV1Service{
		Profile:    p,
		Router:     rt,
		Dispatcher: dispatcher,
		Queues:     queues,
		RAG:        ragService,
		Reports:    reportService,
		Schedules:  scheduleService,
	}
}

// RegisterRoutes mounts the API on the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/api/v1")
	g.POST("/chat", s.chat)
	g.POST("/chat/stream", s.chatStream)
	g.GET("/jobs/:id", s.getJob)
	g.GET("/reports/:filename", s.downloadReport)
	g.GET("/email/verify", s.verifyEmail)
}

func (s *APIV1Service) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Profile.Version,
	})
}
