package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gitrag-ai/gitrag/internal/profile"
	"github.com/gitrag-ai/gitrag/plugin/ai"
	"github.com/gitrag-ai/gitrag/plugin/mail"
	"github.com/gitrag-ai/gitrag/store"
	"github.com/gitrag-ai/gitrag/store/db"
)

type fakeAI struct {
	reply      string
	err        error
	lastSystem string
	embedCalls int
}

func (f *fakeAI) ChatJSON(_ context.Context, messages []ai.Message) (string, error) {
	f.lastSystem = messages[0].Content
	return f.reply, f.err
}

func (f *fakeAI) Embedding(context.Context, string) ([]float32, error) {
	f.embedCalls++
	return []float32{1, 0}, nil
}

type fakeNotifier struct {
	sent []mail.Email
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg mail.Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{Mode: "dev", Driver: "sqlite", DSN: "file:" + t.TempDir() + "/report.db"}
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func seedDocs(t *testing.T, st *store.Store) {
	t.Helper()
	for i, ts := range []time.Time{
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	} {
		_, err := st.UpsertDocument(context.Background(), &store.Document{
			UserEmail:     "alice@example.com",
			Repo:          "acme/widgets",
			Kind:          "issue",
			SourceID:      fmt.Sprintf("%d", i+1),
			Content:       fmt.Sprintf("activity %d", i+1),
			ItemCreatedTs: ts.Unix(),
			CreatedTs:     time.Now().Unix(),
			Embedding:     []float32{1, 0},
		})
		require.NoError(t, err)
	}
}

const goodReply = `{"analysis_markdown": "# Monthly Summary\n\nTwo issues closed.", "chart_json": "{\"labels\":[\"issues\"],\"values\":[2]}"}`

func TestGenerateWritesArtifact(t *testing.T) {
	st := newTestStore(t)
	seedDocs(t, st)
	dir := t.TempDir()
	svc := NewService(st, &fakeAI{reply: goodReply}, &fakeNotifier{}, dir)

	report, err := svc.Generate(context.Background(), "alice@example.com", "acme/widgets", "monthly summary", nil)
	require.NoError(t, err)
	require.Contains(t, report.Markdown, "Monthly Summary")
	require.Contains(t, report.ChartJSON, "issues")

	buf, err := os.ReadFile(filepath.Join(dir, report.Filename))
	require.NoError(t, err)
	require.Contains(t, string(buf), "<h1")
	require.Contains(t, string(buf), "Two issues closed")
}

func TestGenerateEnrichesWithInstructions(t *testing.T) {
	st := newTestStore(t)
	seedDocs(t, st)
	for repo, text := range map[string]string{
		"acme/widgets": "always highlight security issues",
		"acme/gadgets": "focus on release notes",
	} {
		_, err := st.CreateInstruction(context.Background(), &store.Instruction{
			UserEmail: "alice@example.com",
			Repo:      repo,
			Content:   text,
			CreatedTs: time.Now().Unix(),
			Embedding: []float32{1, 0},
		})
		require.NoError(t, err)
	}

	provider := &fakeAI{reply: goodReply}
	svc := NewService(st, provider, &fakeNotifier{}, t.TempDir())

	_, err := svc.Generate(context.Background(), "alice@example.com", "acme/widgets", "monthly summary", nil)
	require.NoError(t, err)
	require.Contains(t, provider.lastSystem, "always highlight security issues")
	// Instructions saved for other repositories stay out of the prompt.
	require.NotContains(t, provider.lastSystem, "focus on release notes")
	// Retrieval and instruction lookup share one prompt embedding.
	require.Equal(t, 1, provider.embedCalls)
}

func TestGenerateWindowFiltersActivity(t *testing.T) {
	st := newTestStore(t)
	seedDocs(t, st)
	svc := NewService(st, &fakeAI{reply: goodReply}, &fakeNotifier{}, t.TempDir())

	// Only February activity is inside the window; March must be excluded
	// but the report still generates.
	window := &Window{
		Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	}
	_, err := svc.Generate(context.Background(), "alice@example.com", "acme/widgets", "feb summary", window)
	require.NoError(t, err)

	// A window with no matching activity is an error.
	window = &Window{
		Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	_, err = svc.Generate(context.Background(), "alice@example.com", "acme/widgets", "old summary", window)
	require.Error(t, err)
}

func TestGenerateNoData(t *testing.T) {
	svc := NewService(newTestStore(t), &fakeAI{reply: goodReply}, &fakeNotifier{}, t.TempDir())
	_, err := svc.Generate(context.Background(), "alice@example.com", "acme/empty", "summary", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ingest the repository first")
}

func TestGenerateMalformedReply(t *testing.T) {
	st := newTestStore(t)
	seedDocs(t, st)
	svc := NewService(st, &fakeAI{reply: "not json"}, &fakeNotifier{}, t.TempDir())

	_, err := svc.Generate(context.Background(), "alice@example.com", "acme/widgets", "summary", nil)
	require.Error(t, err)
}

func TestSendOnce(t *testing.T) {
	st := newTestStore(t)
	seedDocs(t, st)
	notifier := &fakeNotifier{}
	svc := NewService(st, &fakeAI{reply: goodReply}, notifier, t.TempDir())

	report, err := svc.SendOnce(context.Background(), "alice@example.com", "acme/widgets", "summary", "dev@acme.com", nil)
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	require.Equal(t, "dev@acme.com", notifier.sent[0].To)
	require.Contains(t, notifier.sent[0].HTMLBody, "Two issues closed")
	require.NotEmpty(t, report.Filename)
}

func TestSaveInstruction(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(st, &fakeAI{}, &fakeNotifier{}, t.TempDir())

	in, err := svc.SaveInstruction(context.Background(), "alice@example.com", "acme/widgets", "prefer short summaries")
	require.NoError(t, err)
	require.NotZero(t, in.ID)
	require.Equal(t, "acme/widgets", in.Repo)

	_, err = svc.SaveInstruction(context.Background(), "alice@example.com", "acme/widgets", "   ")
	require.Error(t, err)
}

func TestArtifactPathRejectsTraversal(t *testing.T) {
	svc := NewService(newTestStore(t), &fakeAI{}, &fakeNotifier{}, t.TempDir())
	_, err := svc.ArtifactPath("../../etc/passwd")
	require.Error(t, err)
	_, err = svc.ArtifactPath("missing.html")
	require.Error(t, err)
}
