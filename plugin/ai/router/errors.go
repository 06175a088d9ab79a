package router

import "errors"

// Routing failure conditions. All of them are recovered locally by the
// router: Route never surfaces them to the caller as hard errors, it degrades
// to a clarification the user can act on.
var (
	// ErrGenerationUnavailable indicates the text-generation backend is
	// unreachable or returned an error.
	ErrGenerationUnavailable = errors.New("generation backend unavailable")

	// ErrMalformedArguments indicates an invocation's argument payload could
	// not be parsed.
	ErrMalformedArguments = errors.New("malformed tool arguments")

	// ErrMissingRequiredArgument indicates a required parameter is absent or
	// empty. The whole plan is discarded; partial plans are never returned.
	ErrMissingRequiredArgument = errors.New("missing required argument")

	// ErrUnknownTool indicates an invocation named an action absent from the
	// catalog. At runtime this signals catalog/prompt drift and degrades to a
	// clarification instead of crashing the request.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidDate indicates a date-valued argument is not in YYYY-MM-DD
	// form.
	ErrInvalidDate = errors.New("invalid date argument")
)
