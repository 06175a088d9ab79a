package router

// DefaultTimezone is assumed for scheduling steps when the user did not state
// one. It is the deployment's canonical local timezone.
const DefaultTimezone = "America/Sao_Paulo"

// Normalize post-processes extracted arguments for one action. It is pure and
// deterministic: it never performs I/O, and applying it twice yields the same
// mapping.
//
// Rules:
//   - schedule_report always carries a timezone; absent or empty defaults to
//     DefaultTimezone.
//   - repository identifiers pass through byte-for-byte. Downstream
//     collaborators parse owner/name/branch; the router never rewrites them.
//   - date arguments are expected already in YYYY-MM-DD form; normalization
//     does not reformat them (the router validates them separately).
//
// The input map is not mutated; a copy is returned.
func Normalize(action Action, args map[string]string) map[string]string {
	out := make(map[string]string, len(args)+1)
	for k, v := range args {
		out[k] = v
	}

	if action == ActionScheduleReport && out["timezone"] == "" {
		out["timezone"] = DefaultTimezone
	}

	return out
}
