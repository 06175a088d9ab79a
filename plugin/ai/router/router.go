package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Generator is the structured text-generation capability the router depends
// on. Given a system instruction, the conversation and the advertised tool
// specs, it returns free text, one or more tool calls, or both.
//
// The router treats the generator as a black box and owns all recovery: any
// error from it degrades to a clarification, never a hard failure.
type Generator interface {
	GenerateWithTools(ctx context.Context, system string, messages []Message, tools []ToolSpec) (*Generation, error)
}

// User-facing fallback texts. Every router-level failure becomes actionable
// text; raw errors never reach the caller.
const (
	clarifyGenerationFailed = "Sorry, I couldn't process that request right now. Please try again in a moment."
	clarifyMalformed        = "I understood what you want, but I couldn't extract the details. Could you rephrase, including the repository and any other specifics?"
	clarifyUnknownAction    = "Sorry, I didn't understand what you'd like me to do. Could you rephrase?"
	clarifyEmptyReply       = "Sorry, I didn't catch that. Could you rephrase?"
)

// Option configures a Router.
type Option func(*Router)

// WithClock overrides the clock used to date the system prompt. Tests use
// this to pin the prompt.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithLocation overrides the timezone the prompt date is rendered in.
func WithLocation(loc *time.Location) Option {
	return func(r *Router) { r.loc = loc }
}

// Router turns raw user text into a RoutingResult. It is stateless per
// request and safe for concurrent use; the only blocking operation is the
// single generator call, bounded by the caller's context.
type Router struct {
	generator Generator
	catalog   *Catalog
	now       func() time.Time
	loc       *time.Location
}

// New creates a Router over the given generator and catalog.
func New(generator Generator, catalog *Catalog, opts ...Option) *Router {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	r := &Router{
		generator: generator,
		catalog:   catalog,
		now:       time.Now,
		loc:       loc,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route classifies the request. It always returns a usable result: a direct
// answer, a validated plan, or a clarification, including when the
// generation backend fails. Validation is all-or-nothing: the first invalid
// step discards the entire plan.
func (r *Router) Route(ctx context.Context, req *IntentRequest) *RoutingResult {
	messages := make([]Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: "user", Content: req.Message})

	gen, err := r.generator.GenerateWithTools(ctx, systemPrompt(r.now(), r.loc), messages, r.catalog.Specs())
	if err != nil {
		slog.Warn("intent generation failed, degrading to clarification",
			"error", err)
		return Clarify(clarifyGenerationFailed)
	}

	// No structured invocation: terminal casual-chat path.
	if len(gen.Calls) == 0 {
		if gen.Text == "" {
			return Clarify(clarifyEmptyReply)
		}
		return SimpleAnswer(gen.Text)
	}

	steps := make([]Step, 0, len(gen.Calls))
	for _, call := range gen.Calls {
		step, clarify, err := r.decodeCall(call)
		if err != nil {
			slog.Warn("routing aborted",
				"tool", call.Name,
				"error", err)
			return Clarify(clarify)
		}
		steps = append(steps, step)
	}

	// Step order is significant: later steps may depend on earlier ones'
	// side effects (ingest then report). Preserve the backend's order.
	return PlanOf(steps...)
}

// decodeCall turns one invocation into a validated Step. On failure it
// returns the error (for logging) and the clarification text to surface.
func (r *Router) decodeCall(call ToolCall) (Step, string, error) {
	def, err := r.catalog.Get(call.Name)
	if err != nil {
		return Step{}, clarifyUnknownAction, err
	}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return Step{}, clarifyMalformed, err
	}

	args = Normalize(def.Action, args)

	if def.Action != ActionChat {
		for _, p := range def.Params {
			if p.Required && args[p.Name] == "" {
				return Step{}, missingArgumentText(p.Name),
					fmt.Errorf("%w: %s.%s", ErrMissingRequiredArgument, def.Action, p.Name)
			}
		}
	}

	if err := validateDates(args); err != nil {
		return Step{}, invalidDateText(err), err
	}

	return Step{Action: def.Action, Args: args}, "", nil
}

// parseArguments decodes the raw JSON argument object into a string map.
// Non-string scalar values are stringified; nested payloads are rejected as
// malformed.
func parseArguments(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}

	args := make(map[string]string, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			args[k] = val
		case float64:
			args[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			args[k] = strconv.FormatBool(val)
		case nil:
			args[k] = ""
		default:
			return nil, fmt.Errorf("%w: argument %q has unsupported type", ErrMalformedArguments, k)
		}
	}
	return args, nil
}

// dateArgs are the argument names whose values must be calendar dates.
var dateArgs = []string{"start_date", "end_date"}

// validateDates enforces YYYY-MM-DD on date-valued arguments. The prompt
// instructs the backend to emit that form, but a malformed date would
// otherwise propagate uncaught into retrieval filters, so it is re-parsed
// locally and rejected.
func validateDates(args map[string]string) error {
	for _, name := range dateArgs {
		v := args[name]
		if v == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidDate, name, v)
		}
	}
	return nil
}

func missingArgumentText(param string) string {
	return fmt.Sprintf("I'm missing the %s for that. Could you provide it?", humanName(param))
}

func invalidDateText(err error) string {
	return fmt.Sprintf("I couldn't understand one of the dates in your request (%v). Could you state it as YYYY-MM-DD?", err)
}

// humanName renders a parameter name for user-facing text.
func humanName(param string) string {
	switch param {
	case "repository":
		return "repository"
	case "user_question":
		return "question"
	case "user_prompt", "report_prompt":
		return "report description"
	case "destination_email":
		return "destination email address"
	case "frequency":
		return "frequency (daily, weekly or monthly)"
	case "time_of_day":
		return "time of day"
	case "instruction_text":
		return "instruction text"
	default:
		return param
	}
}
