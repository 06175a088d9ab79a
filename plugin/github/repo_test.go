package github

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRepo(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    Repo
		wantErr bool
	}{
		{
			name: "bare owner and name",
			ref:  "acme/widgets",
			want: Repo{Owner: "acme", Name: "widgets"},
		},
		{
			name: "https url",
			ref:  "https://github.com/acme/widgets",
			want: Repo{Owner: "acme", Name: "widgets"},
		},
		{
			name: "url with git suffix",
			ref:  "https://github.com/acme/widgets.git",
			want: Repo{Owner: "acme", Name: "widgets"},
		},
		{
			name: "url pointing at a branch",
			ref:  "https://github.com/acme/widgets/tree/develop",
			want: Repo{Owner: "acme", Name: "widgets"},
		},
		{
			name: "trailing slash",
			ref:  "github.com/acme/widgets/",
			want: Repo{Owner: "acme", Name: "widgets"},
		},
		{
			name:    "missing name",
			ref:     "acme",
			wantErr: true,
		},
		{
			name:    "empty",
			ref:     "  ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepo(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestItemText(t *testing.T) {
	issue := Item{Kind: "issue", SourceID: "42", Title: "Crash on startup", Body: "Stacktrace attached", Author: "alice", State: "open"}
	require.Contains(t, issue.Text(), "Issue #42 (open) by alice: Crash on startup")
	require.Contains(t, issue.Text(), "Stacktrace attached")

	commit := Item{Kind: "commit", SourceID: "abc1234", Author: "bob", Body: "fix: tighten validation"}
	require.Contains(t, commit.Text(), "Commit abc1234 by bob")
}
