package github

import (
	"fmt"
	"strings"
)

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo resolves a user-supplied repository reference into owner and
// name. It accepts bare "owner/name" pairs as well as github.com URLs,
// including URLs pointing at a branch or subtree.
func ParseRepo(ref string) (Repo, error) {
	s := strings.TrimSpace(ref)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	parts := strings.Split(s, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("invalid repository reference %q", ref)
	}
	return Repo{Owner: parts[0], Name: parts[1]}, nil
}
