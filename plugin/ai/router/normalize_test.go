package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_ScheduleTimezoneDefault(t *testing.T) {
	tests := []struct {
		name string
		args map[string]string
		want string
	}{
		{"absent", map[string]string{"repository": "acme/widgets"}, DefaultTimezone},
		{"empty", map[string]string{"timezone": ""}, DefaultTimezone},
		{"explicit wins", map[string]string{"timezone": "Europe/Lisbon"}, "Europe/Lisbon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(ActionScheduleReport, tt.args)
			assert.Equal(t, tt.want, got["timezone"])
		})
	}
}

func TestNormalize_OnlySchedulingGetsTimezone(t *testing.T) {
	got := Normalize(ActionQuery, map[string]string{"repository": "acme/widgets"})
	_, ok := got["timezone"]
	assert.False(t, ok)
}

func TestNormalize_Idempotent(t *testing.T) {
	once := Normalize(ActionScheduleReport, map[string]string{
		"repository":  "acme/widgets",
		"time_of_day": "09:00",
	})
	twice := Normalize(ActionScheduleReport, once)
	assert.Equal(t, once, twice)
}

func TestNormalize_RepositoryPassesThroughByteForByte(t *testing.T) {
	repos := []string{
		"acme/widgets",
		"https://github.com/acme/widgets",
		"https://github.com/acme/widgets/tree/dev",
		"  acme/widgets  ", // not even whitespace is trimmed
	}
	for _, repo := range repos {
		got := Normalize(ActionIngest, map[string]string{"repository": repo})
		assert.Equal(t, repo, got["repository"])
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := map[string]string{"repository": "acme/widgets"}
	Normalize(ActionScheduleReport, in)
	_, ok := in["timezone"]
	assert.False(t, ok)
}
