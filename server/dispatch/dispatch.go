// Package dispatch executes routed plans: conversational steps run inline,
// side-effecting steps become queued jobs.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gitrag-ai/gitrag/plugin/ai"
	"github.com/gitrag-ai/gitrag/plugin/ai/router"
	"github.com/gitrag-ai/gitrag/server/queue"
	"github.com/gitrag-ai/gitrag/server/service/ingest"
	"github.com/gitrag-ai/gitrag/server/service/report"
	"github.com/gitrag-ai/gitrag/server/service/schedule"
	"github.com/gitrag-ai/gitrag/store"
)

// Queue names for asynchronous steps.
const (
	QueueIngest  = "ingest"
	QueueReports = "reports"
)

// Answerer runs retrieval-grounded answers and casual chat.
type Answerer interface {
	Answer(ctx context.Context, userEmail, repo, question string) (string, error)
	Chat(ctx context.Context, history []ai.Message, message string) (string, error)
}

// Ingestor pulls and indexes a repository.
type Ingestor interface {
	Run(ctx context.Context, userEmail, repoRef string) (*ingest.Result, error)
}

// Reporter generates, delivers and parameterizes reports.
type Reporter interface {
	Generate(ctx context.Context, userEmail, repoRef, prompt string, window *report.Window) (*report.Report, error)
	SendOnce(ctx context.Context, userEmail, repoRef, prompt, destination string, window *report.Window) (*report.Report, error)
	SaveInstruction(ctx context.Context, userEmail, repoRef, text string) (*store.Instruction, error)
}

// Scheduler creates recurring report subscriptions.
type Scheduler interface {
	Create(ctx context.Context, req schedule.CreateRequest) (*schedule.CreateResult, error)
}

// Dispatcher maps plan steps onto services and queues.
type Dispatcher struct {
	queues    *queue.Manager
	answerer  Answerer
	ingestor  Ingestor
	reporter  Reporter
	scheduler Scheduler
}

func New(queues *queue.Manager, answerer Answerer, ingestor Ingestor, reporter Reporter, scheduler Scheduler) *Dispatcher {
	return &Dispatcher{
		queues:    queues,
		answerer:  answerer,
		ingestor:  ingestor,
		reporter:  reporter,
		scheduler: scheduler,
	}
}

// StepOutcome is the per-step dispatch result.
type StepOutcome struct {
	Action router.Action `json:"action"`
	Sync   bool          `json:"sync"`
	Text   string        `json:"text,omitempty"`
	JobID  string        `json:"job_id,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Request carries the conversational context a plan executes in.
type Request struct {
	UserEmail string
	Message   string
	History   []ai.Message
}

// Dispatch executes the steps in order. A failing step is reported in its
// outcome and never blocks the steps after it.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, steps []router.Step) []StepOutcome {
	outcomes := make([]StepOutcome, 0, len(steps))
	for _, step := range steps {
		outcome := d.dispatchStep(ctx, req, step)
		if outcome.Error != "" {
			slog.Warn("step dispatch failed", "action", step.Action, "error", outcome.Error)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (d *Dispatcher) dispatchStep(ctx context.Context, req Request, step router.Step) StepOutcome {
	outcome := StepOutcome{Action: step.Action, Sync: !step.Action.SideEffecting()}

	switch step.Action {
	case router.ActionQuery:
		text, err := d.answerer.Answer(ctx, req.UserEmail, step.Args["repository"], step.Args["user_question"])
		return syncOutcome(outcome, text, err)

	case router.ActionChat:
		text, err := d.answerer.Chat(ctx, req.History, req.Message)
		return syncOutcome(outcome, text, err)

	case router.ActionIngest:
		repo := step.Args["repository"]
		return d.enqueue(outcome, QueueIngest, "pull_repository", func(jobCtx context.Context) (any, error) {
			return d.ingestor.Run(jobCtx, req.UserEmail, repo)
		})

	case router.ActionReportDownload:
		repo, prompt := step.Args["repository"], step.Args["user_prompt"]
		window := windowFromArgs(step.Args)
		return d.enqueue(outcome, QueueReports, "generate_report", func(jobCtx context.Context) (any, error) {
			return d.reporter.Generate(jobCtx, req.UserEmail, repo, prompt, window)
		})

	case router.ActionReportOnetimeEmail:
		repo, prompt := step.Args["repository"], step.Args["report_prompt"]
		destination := step.Args["destination_email"]
		window := windowFromArgs(step.Args)
		return d.enqueue(outcome, QueueReports, "email_report", func(jobCtx context.Context) (any, error) {
			return d.reporter.SendOnce(jobCtx, req.UserEmail, repo, prompt, destination, window)
		})

	case router.ActionScheduleReport:
		// Reports go to the caller unless the plan names another address.
		destination := step.Args["destination_email"]
		if destination == "" {
			destination = req.UserEmail
		}
		create := schedule.CreateRequest{
			UserEmail:        req.UserEmail,
			Repo:             step.Args["repository"],
			Prompt:           step.Args["report_prompt"],
			Frequency:        step.Args["frequency"],
			TimeLocal:        step.Args["time_of_day"],
			Timezone:         step.Args["timezone"],
			DestinationEmail: destination,
		}
		return d.enqueue(outcome, QueueReports, "create_schedule", func(jobCtx context.Context) (any, error) {
			return d.scheduler.Create(jobCtx, create)
		})

	case router.ActionSaveInstruction:
		repo, text := step.Args["repository"], step.Args["instruction_text"]
		return d.enqueue(outcome, QueueReports, "save_instruction", func(jobCtx context.Context) (any, error) {
			return d.reporter.SaveInstruction(jobCtx, req.UserEmail, repo, text)
		})

	default:
		// Every action the catalog can produce is handled above.
		panic(fmt.Sprintf("unhandled action %q", step.Action))
	}
}

func syncOutcome(outcome StepOutcome, text string, err error) StepOutcome {
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Text = text
	return outcome
}

func (d *Dispatcher) enqueue(outcome StepOutcome, queueName, kind string, fn queue.Handler) StepOutcome {
	job, err := d.queues.Enqueue(queueName, kind, fn)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.JobID = job.ID
	return outcome
}

// windowFromArgs builds the optional report window. The arguments were
// validated as YYYY-MM-DD upstream.
func windowFromArgs(args map[string]string) *report.Window {
	start, end := args["start_date"], args["end_date"]
	if start == "" && end == "" {
		return nil
	}
	window := &report.Window{}
	if start != "" {
		window.Start, _ = time.Parse("2006-01-02", start)
	}
	if end != "" {
		window.End, _ = time.Parse("2006-01-02", end)
	}
	return window
}
