package router

import (
	"fmt"
)

// Catalog is the static registry of available actions. It is populated once
// from a fixed literal table at startup and read-only afterwards, so
// concurrent readers need no synchronization.
type Catalog struct {
	defs   []ToolDefinition
	byName map[Action]*ToolDefinition
}

// NewCatalog builds the catalog from the fixed action table.
func NewCatalog() *Catalog {
	defs := []ToolDefinition{
		{
			Action:      ActionIngest,
			Description: "Ingest, re-ingest or index a GitHub repository's issues, pull requests and commits.",
			Params: []Param{
				{Name: "repository", Type: ParamString, Required: true, Description: "The repository, either a full GitHub URL or 'owner/name' shorthand, passed through exactly as the user wrote it."},
			},
		},
		{
			Action:      ActionQuery,
			Description: "Answer a question about a repository's code, issues, pull requests or commits using retrieved context.",
			Params: []Param{
				{Name: "repository", Type: ParamString, Required: true, Description: "The repository, either a full GitHub URL or 'owner/name' shorthand, passed through exactly as the user wrote it."},
				{Name: "user_question", Type: ParamString, Required: true, Description: "The user's question, verbatim."},
			},
		},
		{
			Action:      ActionReportDownload,
			Description: "Produce a downloadable report artifact about a repository. Used for 'report' or 'chart' requests that should be saved as a file, NOT emailed.",
			Params: []Param{
				{Name: "repository", Type: ParamString, Required: true, Description: "The repository, either a full GitHub URL or 'owner/name' shorthand, passed through exactly as the user wrote it."},
				{Name: "user_prompt", Type: ParamString, Required: true, Description: "What the report should contain."},
				{Name: "start_date", Type: ParamString, Required: false, Description: "Optional start of the reporting window, YYYY-MM-DD."},
				{Name: "end_date", Type: ParamString, Required: false, Description: "Optional end of the reporting window, YYYY-MM-DD."},
			},
		},
		{
			Action:      ActionReportOnetimeEmail,
			Description: "Generate a report and email it immediately, once. Used when the user wants a report by email now, without a recurring schedule.",
			Params: []Param{
				{Name: "repository", Type: ParamString, Required: true, Description: "The repository, either a full GitHub URL or 'owner/name' shorthand, passed through exactly as the user wrote it."},
				{Name: "report_prompt", Type: ParamString, Required: true, Description: "What the report should contain."},
				{Name: "destination_email", Type: ParamString, Required: true, Description: "The email address to deliver the report to."},
				{Name: "start_date", Type: ParamString, Required: false, Description: "Optional start of the reporting window, YYYY-MM-DD."},
				{Name: "end_date", Type: ParamString, Required: false, Description: "Optional end of the reporting window, YYYY-MM-DD."},
			},
		},
		{
			Action:      ActionScheduleReport,
			Description: "Create a recurring report job that emails a report on a schedule (daily, weekly or monthly).",
			Params: []Param{
				{Name: "repository", Type: ParamString, Required: true, Description: "The repository, either a full GitHub URL or 'owner/name' shorthand, passed through exactly as the user wrote it."},
				{Name: "report_prompt", Type: ParamString, Required: true, Description: "What each report should contain."},
				{Name: "frequency", Type: ParamEnum, Required: true, Description: "How often to send the report.", Enum: []string{"daily", "weekly", "monthly"}},
				{Name: "time_of_day", Type: ParamString, Required: true, Description: "The local time to send at, HH:MM (24h)."},
				{Name: "timezone", Type: ParamString, Required: false, Description: "IANA timezone the time_of_day refers to (e.g. 'America/Sao_Paulo')."},
				{Name: "destination_email", Type: ParamString, Required: false, Description: "Where to deliver the reports. Defaults to the requesting user's own email."},
			},
		},
		{
			Action:      ActionSaveInstruction,
			Description: "Persist a standing instruction or template the user wants applied to future reports for a repository.",
			Params: []Param{
				{Name: "repository", Type: ParamString, Required: true, Description: "The repository this instruction applies to."},
				{Name: "instruction_text", Type: ParamString, Required: true, Description: "The instruction to save, verbatim."},
			},
		},
		{
			Action:      ActionChat,
			Description: "Reply conversationally to greetings, thanks or small talk that needs no repository data.",
		},
	}

	byName := make(map[Action]*ToolDefinition, len(defs))
	for i := range defs {
		byName[defs[i].Action] = &defs[i]
	}
	return &Catalog{defs: defs, byName: byName}
}

// Get returns the definition for the named action, or ErrUnknownTool.
func (c *Catalog) Get(name string) (*ToolDefinition, error) {
	def, ok := c.byName[Action(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return def, nil
}

// All returns the catalog's definitions in declaration order.
func (c *Catalog) All() []ToolDefinition {
	out := make([]ToolDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Specs converts the catalog into backend-neutral tool specifications used to
// advertise capabilities to the generation backend.
func (c *Catalog) Specs() []ToolSpec {
	specs := make([]ToolSpec, 0, len(c.defs))
	for _, def := range c.defs {
		specs = append(specs, ToolSpec{
			Name:        string(def.Action),
			Description: def.Description,
			Parameters:  paramSchema(def.Params),
		})
	}
	return specs
}

// paramSchema builds the JSON-schema object for a parameter list.
func paramSchema(params []Param) map[string]any {
	properties := map[string]any{}
	var required []string
	for _, p := range params {
		prop := map[string]any{
			"type":        schemaType(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func schemaType(t ParamType) string {
	switch t {
	case ParamNumber:
		return "number"
	default:
		return "string"
	}
}
