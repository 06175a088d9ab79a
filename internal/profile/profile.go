// Package profile holds the process configuration for the GitRAG server.
package profile

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Profile is the configuration to start the main server. All collaborators
// receive it explicitly at construction time; there are no package-level
// singletons.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for the server
	Addr string
	// Port is the binding port for the server
	Port int
	// Data is the data directory (report artifacts live here)
	Data string
	// DSN points to where gitrag stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// InstanceURL is the public URL of this instance, used in verification links
	InstanceURL string
	// Version is the current server version
	Version string

	// OpenAI configuration
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	RoutingModel    string // fast, cheap model for intent routing
	GenerationModel string // stronger model for answers and reports
	EmbeddingModel  string

	// GitHub configuration
	GitHubToken string

	// Ingestion limits per entity kind
	IngestIssuesLimit  int
	IngestPRsLimit     int
	IngestCommitsLimit int

	// SMTP configuration for report and verification email
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// IsDev returns true when the server runs in development mode.
func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Validate checks the profile for required values.
func (p *Profile) Validate() error {
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}
	if p.DSN == "" {
		return errors.New("database DSN is required")
	}
	if p.OpenAIAPIKey == "" {
		return errors.New("OpenAI API key is required, set GITRAG_OPENAI_API_KEY")
	}
	return nil
}

// ListenAddr returns the address the HTTP server binds to.
func (p *Profile) ListenAddr() string {
	return fmt.Sprintf("%s:%d", p.Addr, p.Port)
}

// FromEnv populates a profile from GITRAG_* environment variables, applying
// defaults for anything unset.
func FromEnv(version string) *Profile {
	v := viper.New()
	v.SetEnvPrefix("gitrag")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8081)
	v.SetDefault("data", "./data")
	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", "file:gitrag.db")
	v.SetDefault("instance_url", "http://localhost:8081")
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("routing_model", "gpt-4o-mini")
	v.SetDefault("generation_model", "gpt-4o")
	v.SetDefault("embedding_model", "text-embedding-3-small")
	v.SetDefault("ingest_issues_limit", 20)
	v.SetDefault("ingest_prs_limit", 10)
	v.SetDefault("ingest_commits_limit", 15)
	v.SetDefault("smtp_port", 587)

	return &Profile{
		Mode:               v.GetString("mode"),
		Addr:               v.GetString("addr"),
		Port:               v.GetInt("port"),
		Data:               v.GetString("data"),
		DSN:                v.GetString("dsn"),
		Driver:             v.GetString("driver"),
		InstanceURL:        v.GetString("instance_url"),
		Version:            version,
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		OpenAIBaseURL:      v.GetString("openai_base_url"),
		RoutingModel:       v.GetString("routing_model"),
		GenerationModel:    v.GetString("generation_model"),
		EmbeddingModel:     v.GetString("embedding_model"),
		GitHubToken:        v.GetString("github_token"),
		IngestIssuesLimit:  v.GetInt("ingest_issues_limit"),
		IngestPRsLimit:     v.GetInt("ingest_prs_limit"),
		IngestCommitsLimit: v.GetInt("ingest_commits_limit"),
		SMTPHost:           v.GetString("smtp_host"),
		SMTPPort:           v.GetInt("smtp_port"),
		SMTPUsername:       v.GetString("smtp_username"),
		SMTPPassword:       v.GetString("smtp_password"),
		SMTPFrom:           v.GetString("smtp_from"),
	}
}
