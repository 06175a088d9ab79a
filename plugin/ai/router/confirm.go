package router

import (
	"fmt"
	"strings"
)

// ConfirmationPrompt is appended to every plan summary.
const ConfirmationPrompt = "Reply 'yes' to run this plan, or 'no' to cancel."

// NeedsConfirmation reports whether a plan contains at least one
// side-effecting step. Read-only plans (query, chat) never require
// confirmation.
func NeedsConfirmation(steps []Step) bool {
	for _, s := range steps {
		if s.Action.SideEffecting() {
			return true
		}
	}
	return false
}

// Summarize renders a proposed plan as human-readable text for confirmation
// before execution. One line per step, followed by the confirmation prompt.
// Pure formatting: no validation, no side effects.
func Summarize(steps []Step) string {
	var b strings.Builder
	b.WriteString("Here's what I'm about to do:\n")
	for i, s := range steps {
		repo := s.Args["repository"]
		if repo == "" {
			fmt.Fprintf(&b, "%d. %s\n", i+1, stepVerb(s.Action))
		} else {
			fmt.Fprintf(&b, "%d. %s on %s\n", i+1, stepVerb(s.Action), repo)
		}
	}
	b.WriteString(ConfirmationPrompt)
	return b.String()
}

// stepVerb derives the display verb from the action name, stripping the
// catalog's report_ prefixes and _report suffixes.
func stepVerb(a Action) string {
	verb := string(a)
	verb = strings.TrimPrefix(verb, "report_")
	verb = strings.TrimSuffix(verb, "_report")
	if verb == "onetime_email" {
		verb = "email"
	}
	return verb
}
