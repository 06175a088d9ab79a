// Package router implements the intent routing engine: it classifies a raw
// chat message into either a direct conversational answer, a clarification
// request, or an ordered plan of tool steps with validated arguments.
package router

// Action identifies one operation the router can select. The set is closed:
// adding an action means extending the catalog table, the dispatcher switch,
// and the prompt rules together.
type Action string

const (
	// ActionIngest (re)indexes a repository's issues, pull requests and commits.
	ActionIngest Action = "ingest"
	// ActionQuery answers a question using retrieved repository context.
	ActionQuery Action = "query"
	// ActionReportDownload produces a downloadable report artifact.
	ActionReportDownload Action = "report_download"
	// ActionReportOnetimeEmail generates and immediately emails a report.
	ActionReportOnetimeEmail Action = "report_onetime_email"
	// ActionScheduleReport creates a recurring report job.
	ActionScheduleReport Action = "schedule_report"
	// ActionSaveInstruction persists a standing instruction for future reports.
	ActionSaveInstruction Action = "save_instruction"
	// ActionChat is a casual conversational reply with no repository context.
	ActionChat Action = "chat"
)

// SideEffecting reports whether executing the action changes state outside
// the conversation (indexes, emails, schedules). Side-effecting plans are the
// ones a calling surface may want to confirm before dispatch.
func (a Action) SideEffecting() bool {
	switch a {
	case ActionQuery, ActionChat:
		return false
	default:
		return true
	}
}

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamEnum   ParamType = "enum"
	ParamNumber ParamType = "number"
)

// Param describes one named parameter of a tool.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
	// Enum lists the allowed values when Type is ParamEnum.
	Enum []string
}

// ToolDefinition declares one action: its name, a natural-language
// description advertised to the generation backend, and its parameter schema.
// Definitions are built once at startup and immutable afterwards.
type ToolDefinition struct {
	Action      Action
	Description string
	Params      []Param
}

// RequiredParams returns the names of all required parameters, in declaration
// order.
func (d *ToolDefinition) RequiredParams() []string {
	var names []string
	for _, p := range d.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Message is one turn of conversation history.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// IntentRequest is the raw routing input: the latest user message plus
// optional prior turns. It is read-only and discarded after routing.
type IntentRequest struct {
	Message string
	History []Message
}

// Step pairs an action with its argument mapping. Arguments are strings,
// already normalized; a validated step is immutable and consumed exactly once
// by the dispatcher.
type Step struct {
	Action Action            `json:"action"`
	Args   map[string]string `json:"args"`
}

// ResultKind tags the populated variant of a RoutingResult.
type ResultKind string

const (
	// KindAnswer is a direct conversational reply with no side effects.
	KindAnswer ResultKind = "answer"
	// KindClarification means the request cannot be executed as-is; the
	// caller must re-prompt the user with Text.
	KindClarification ResultKind = "clarification"
	// KindPlan is an ordered list of validated steps, ready for dispatch.
	KindPlan ResultKind = "plan"
)

// RoutingResult is the outcome of one routing decision. Exactly one variant
// is populated: Text for answers and clarifications, Steps for plans.
type RoutingResult struct {
	Kind  ResultKind
	Text  string
	Steps []Step
}

// SimpleAnswer builds a direct-reply result.
func SimpleAnswer(text string) *RoutingResult {
	return &RoutingResult{Kind: KindAnswer, Text: text}
}

// Clarify builds a clarification result.
func Clarify(text string) *RoutingResult {
	return &RoutingResult{Kind: KindClarification, Text: text}
}

// PlanOf builds a plan result. Steps keep the order they were produced in;
// later steps may depend on earlier ones' side effects.
func PlanOf(steps ...Step) *RoutingResult {
	return &RoutingResult{Kind: KindPlan, Steps: steps}
}

// ToolSpec is the backend-neutral description of one callable tool, handed to
// the generation capability.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object describing the argument payload.
	Parameters map[string]any
}

// ToolCall is one structured invocation returned by the generation backend.
type ToolCall struct {
	Name string
	// Arguments is the raw JSON argument object, exactly as returned.
	Arguments string
}

// Generation is the backend's reply: free text, structured tool calls, or
// both. No calls means the terminal casual-chat path.
type Generation struct {
	Text  string
	Calls []ToolCall
}
