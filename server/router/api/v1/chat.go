package v1

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gitrag-ai/gitrag/plugin/ai"
	"github.com/gitrag-ai/gitrag/plugin/ai/router"
	"github.com/gitrag-ai/gitrag/server/dispatch"
	"github.com/gitrag-ai/gitrag/server/metrics"
)

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the conversational entry point payload.
type ChatRequest struct {
	UserEmail string        `json:"user_email"`
	Message   string        `json:"message"`
	History   []ChatMessage `json:"history,omitempty"`
	// Confirmed executes side-effecting plans without the confirmation
	// round trip.
	Confirmed bool `json:"confirmed,omitempty"`
}

// ChatResponse reports what the message resolved to.
//
// Kind is "answer", "clarification", "confirmation" or "plan". For plans,
// Outcomes carries one entry per step: inline text for conversational steps
// and a job id for queued ones.
type ChatResponse struct {
	Kind     string                 `json:"kind"`
	Text     string                 `json:"text,omitempty"`
	Steps    []router.Step          `json:"steps,omitempty"`
	Outcomes []dispatch.StepOutcome `json:"outcomes,omitempty"`
}

func (s *APIV1Service) chat(c echo.Context) error {
	req, err := bindChatRequest(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	result := s.Router.Route(ctx, &router.IntentRequest{
		Message: req.Message,
		History: toRouterMessages(req.History),
	})
	metrics.RoutingOutcomes.WithLabelValues(string(result.Kind)).Inc()

	switch result.Kind {
	case router.KindAnswer:
		return c.JSON(http.StatusOK, ChatResponse{Kind: "answer", Text: result.Text})
	case router.KindClarification:
		return c.JSON(http.StatusOK, ChatResponse{Kind: "clarification", Text: result.Text})
	}

	for _, step := range result.Steps {
		metrics.PlannedSteps.WithLabelValues(string(step.Action)).Inc()
	}

	// Side-effecting plans are echoed back for confirmation unless the
	// client already confirmed.
	if router.NeedsConfirmation(result.Steps) && !req.Confirmed {
		return c.JSON(http.StatusOK, ChatResponse{
			Kind:  "confirmation",
			Text:  router.Summarize(result.Steps),
			Steps: result.Steps,
		})
	}

	outcomes := s.Dispatcher.Dispatch(ctx, dispatch.Request{
		UserEmail: req.UserEmail,
		Message:   req.Message,
		History:   toAIMessages(req.History),
	}, result.Steps)

	return c.JSON(http.StatusOK, ChatResponse{
		Kind:     "plan",
		Steps:    result.Steps,
		Outcomes: outcomes,
	})
}

// chatStream answers a repository question over server-sent events. Routing
// outcomes other than a single question step are delivered as one event.
func (s *APIV1Service) chatStream(c echo.Context) error {
	req, err := bindChatRequest(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	send := func(data string) error {
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", data); err != nil {
			return err
		}
		resp.Flush()
		return nil
	}

	result := s.Router.Route(ctx, &router.IntentRequest{
		Message: req.Message,
		History: toRouterMessages(req.History),
	})
	metrics.RoutingOutcomes.WithLabelValues(string(result.Kind)).Inc()

	if step, ok := singleQueryStep(result); ok {
		err := s.RAG.AnswerStream(ctx, req.UserEmail, step.Args["repository"], step.Args["user_question"], send)
		if err != nil {
			return send("[error] " + err.Error())
		}
		return send("[done]")
	}

	// Fall back to the non-streaming flow for everything else.
	switch result.Kind {
	case router.KindAnswer, router.KindClarification:
		if err := send(result.Text); err != nil {
			return err
		}
	default:
		if err := send(router.Summarize(result.Steps)); err != nil {
			return err
		}
	}
	return send("[done]")
}

func bindChatRequest(c echo.Context) (*ChatRequest, error) {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.UserEmail == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "user_email is required")
	}
	if req.Message == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	return &req, nil
}

func singleQueryStep(result *router.RoutingResult) (router.Step, bool) {
	if result.Kind == router.KindPlan && len(result.Steps) == 1 && result.Steps[0].Action == router.ActionQuery {
		return result.Steps[0], true
	}
	return router.Step{}, false
}

func toRouterMessages(history []ChatMessage) []router.Message {
	out := make([]router.Message, len(history))
	for i, m := range history {
		out[i] = router.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func toAIMessages(history []ChatMessage) []ai.Message {
	out := make([]ai.Message, len(history))
	for i, m := range history {
		out[i] = ai.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
