// Package report generates analytics reports over ingested repository
// activity and delivers them as files or email.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/gitrag-ai/gitrag/plugin/ai"
	"github.com/gitrag-ai/gitrag/plugin/mail"
	"github.com/gitrag-ai/gitrag/store"
)

const retrievalLimit = 30

// AI is the slice of the provider the report service depends on.
type AI interface {
	ChatJSON(ctx context.Context, messages []ai.Message) (string, error)
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Window restricts a report to upstream activity inside a date range.
// Either bound may be zero.
type Window struct {
	Start time.Time
	End   time.Time
}

// Report is one generated report with its on-disk artifact.
type Report struct {
	Filename  string `json:"filename"`
	Title     string `json:"title"`
	Markdown  string `json:"analysis_markdown"`
	ChartJSON string `json:"chart_json"`
}

// Service builds reports and writes their HTML artifacts.
type Service struct {
	store    *store.Store
	ai       AI
	notifier mail.Notifier
	dir      string
	markdown goldmark.Markdown
	now      func() time.Time
}

// NewService creates the report service. Artifacts are written under dir.
func NewService(st *store.Store, provider AI, notifier mail.Notifier, dir string) *Service {
	return &Service{
		store:    st,
		ai:       provider,
		notifier: notifier,
		dir:      dir,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		now:      time.Now,
	}
}

const reportSystemPrompt = `You are a software analytics writer. Using the
repository activity provided, write the report the user asked for.
Reply with a JSON object with exactly two keys:
  "analysis_markdown": the report body in Markdown
  "chart_json": a JSON string describing one chart (labels and values) that
  supports the analysis, or an empty string when no chart applies.`

// Generate builds the report and writes its HTML artifact to disk.
func (s *Service) Generate(ctx context.Context, userEmail, repoRef, prompt string, window *Window) (*Report, error) {
	// One embedding serves both document retrieval and instruction lookup.
	embedding, err := s.ai.Embedding(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to embed report prompt: %w", err)
	}

	docs, err := s.collectContext(ctx, userEmail, repoRef, embedding, window)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no ingested data for %s: ingest the repository first", repoRef)
	}

	system := reportSystemPrompt
	if instructions := s.relevantInstructions(ctx, userEmail, repoRef, embedding); len(instructions) > 0 {
		system += "\n\nThe user has standing preferences for reports:\n- " +
			strings.Join(instructions, "\n- ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\nRequest: %s\n\nActivity:\n", repoRef, prompt)
	for _, doc := range docs {
		fmt.Fprintf(&b, "- (%s, %s) %s\n", doc.Kind,
			time.Unix(doc.ItemCreatedTs, 0).UTC().Format("2006-01-02"), doc.Content)
	}

	reply, err := s.ai.ChatJSON(ctx, []ai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("report generation failed: %w", err)
	}

	var parsed struct {
		AnalysisMarkdown string          `json:"analysis_markdown"`
		ChartJSON        json.RawMessage `json:"chart_json"`
	}
	if err := ai.DecodeJSONReply(reply, &parsed); err != nil {
		return nil, err
	}
	if parsed.AnalysisMarkdown == "" {
		return nil, fmt.Errorf("report generation returned no analysis")
	}

	report := &Report{
		Filename:  fmt.Sprintf("report-%s.html", strings.ToLower(shortuuid.New())),
		Title:     fmt.Sprintf("Report for %s", repoRef),
		Markdown:  parsed.AnalysisMarkdown,
		ChartJSON: chartString(parsed.ChartJSON),
	}
	if err := s.writeArtifact(report); err != nil {
		return nil, err
	}

	slog.Info("report generated", "repo", repoRef, "user", userEmail, "file", report.Filename)
	return report, nil
}

// SendOnce generates the report and emails it to the destination.
func (s *Service) SendOnce(ctx context.Context, userEmail, repoRef, prompt, destination string, window *Window) (*Report, error) {
	report, err := s.Generate(ctx, userEmail, repoRef, prompt, window)
	if err != nil {
		return nil, err
	}

	html, err := s.renderHTML(report)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.Send(ctx, mail.Email{
		To:       destination,
		Subject:  report.Title,
		HTMLBody: html,
		TextBody: report.Markdown,
	}); err != nil {
		return nil, err
	}
	return report, nil
}

// ArtifactPath resolves a report filename inside the artifact directory.
// Path escapes are rejected.
func (s *Service) ArtifactPath(filename string) (string, error) {
	if filename != filepath.Base(filename) || filename == "." {
		return "", fmt.Errorf("invalid report filename %q", filename)
	}
	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("report %q not found", filename)
	}
	return path, nil
}

func (s *Service) collectContext(ctx context.Context, userEmail, repoRef string, embedding []float32, window *Window) ([]*store.Document, error) {
	scored, err := s.store.SearchDocumentsByVector(ctx, &store.VectorSearchOptions{
		UserEmail: userEmail,
		Repo:      repoRef,
		Embedding: embedding,
		Limit:     retrievalLimit,
	})
	if err != nil {
		return nil, err
	}

	docs := make([]*store.Document, 0, len(scored))
	for _, sc := range scored {
		if window != nil && !window.contains(time.Unix(sc.Document.ItemCreatedTs, 0)) {
			continue
		}
		docs = append(docs, sc.Document)
	}
	return docs, nil
}

func (w *Window) contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End.Add(24*time.Hour)) {
		return false
	}
	return true
}

// SaveInstruction stores a standing user preference for future reports on
// the given repository.
func (s *Service) SaveInstruction(ctx context.Context, userEmail, repoRef, text string) (*store.Instruction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("instruction text is empty")
	}
	embedding, err := s.ai.Embedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed instruction: %w", err)
	}
	return s.store.CreateInstruction(ctx, &store.Instruction{
		UserEmail: userEmail,
		Repo:      repoRef,
		Content:   text,
		CreatedTs: s.now().Unix(),
		Embedding: embedding,
	})
}

// relevantInstructions looks up the user's standing preferences for this
// repository. Retrieval failures degrade to an unenriched prompt.
func (s *Service) relevantInstructions(ctx context.Context, userEmail, repoRef string, embedding []float32) []string {
	scored, err := s.store.SearchInstructionsByVector(ctx, &store.InstructionSearchOptions{
		UserEmail: userEmail,
		Repo:      repoRef,
		Embedding: embedding,
		Limit:     5,
	})
	if err != nil {
		slog.Warn("instruction enrichment skipped", "error", err)
		return nil
	}
	out := make([]string, 0, len(scored))
	for _, sc := range scored {
		out = append(out, sc.Instruction.Content)
	}
	return out
}

func (s *Service) writeArtifact(report *Report) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	html, err := s.renderHTML(report)
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, report.Filename)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write report artifact: %w", err)
	}
	return nil
}

func (s *Service) renderHTML(report *Report) (string, error) {
	var body bytes.Buffer
	if err := s.markdown.Convert([]byte(report.Markdown), &body); err != nil {
		return "", fmt.Errorf("failed to render report markdown: %w", err)
	}
	return fmt.Sprintf("<!DOCTYPE html>\n<html><head><meta charset=%q><title>%s</title></head>\n<body>\n%s</body></html>\n",
		"utf-8", report.Title, body.String()), nil
}

// chartString normalizes the model's chart output: it may arrive as a JSON
// string or as an inline object.
func chartString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	return string(raw)
}
