package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gitrag-ai/gitrag/internal/profile"
	"github.com/gitrag-ai/gitrag/plugin/github"
	"github.com/gitrag-ai/gitrag/store"
	"github.com/gitrag-ai/gitrag/store/db"
)

type fakeCollector struct {
	items     []github.Item
	lastSince time.Time
	err       error
}

func (f *fakeCollector) Pull(_ context.Context, _ github.Repo, since time.Time) ([]github.Item, error) {
	f.lastSince = since
	return f.items, f.err
}

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) EmbeddingBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{Mode: "dev", Driver: "sqlite", DSN: "file:" + t.TempDir() + "/ingest.db"}
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func items(n int) []github.Item {
	out := make([]github.Item, n)
	for i := range out {
		out[i] = github.Item{
			Kind:      "issue",
			SourceID:  fmt.Sprintf("%d", i+1),
			Title:     fmt.Sprintf("issue %d", i+1),
			CreatedAt: time.Unix(int64(1000+i), 0),
			UpdatedAt: time.Unix(int64(2000+i), 0),
		}
	}
	return out
}

func TestRunFirstIngestion(t *testing.T) {
	st := newTestStore(t)
	collector := &fakeCollector{items: items(3)}
	embedder := &fakeEmbedder{}
	svc := NewService(st, collector, embedder)

	result, err := svc.Run(context.Background(), "alice@example.com", "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 3, result.Documents)
	require.False(t, result.Incremental)
	require.True(t, collector.lastSince.IsZero())

	state, err := st.GetIngestState(context.Background(), "alice@example.com", "acme/widgets")
	require.NoError(t, err)
	require.NotNil(t, state)
}

func TestRunSecondIngestionIsIncremental(t *testing.T) {
	st := newTestStore(t)
	collector := &fakeCollector{items: items(3)}
	svc := NewService(st, collector, &fakeEmbedder{})

	_, err := svc.Run(context.Background(), "alice@example.com", "acme/widgets")
	require.NoError(t, err)

	// Second run passes the previous pull time and upserts, it never
	// duplicates documents that came back again.
	collector.items = items(2)
	result, err := svc.Run(context.Background(), "alice@example.com", "acme/widgets")
	require.NoError(t, err)
	require.True(t, result.Incremental)
	require.False(t, collector.lastSince.IsZero())

	userEmail, repo := "alice@example.com", "acme/widgets"
	docs, err := st.ListDocuments(context.Background(), &store.FindDocument{UserEmail: &userEmail, Repo: &repo})
	require.NoError(t, err)
	require.Len(t, docs, 3)
}

func TestRunEmbedsInBatches(t *testing.T) {
	st := newTestStore(t)
	embedder := &fakeEmbedder{}
	svc := NewService(st, &fakeCollector{items: items(embeddingBatchSize + 1)}, embedder)

	result, err := svc.Run(context.Background(), "alice@example.com", "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, embeddingBatchSize+1, result.Documents)
	require.Equal(t, 2, embedder.calls)
}

func TestRunInvalidRepo(t *testing.T) {
	svc := NewService(newTestStore(t), &fakeCollector{}, &fakeEmbedder{})
	_, err := svc.Run(context.Background(), "alice@example.com", "not-a-repo")
	require.Error(t, err)
}

func TestRunCollectorFailure(t *testing.T) {
	st := newTestStore(t)
	collector := &fakeCollector{err: fmt.Errorf("api quota exhausted")}
	svc := NewService(st, collector, &fakeEmbedder{})

	_, err := svc.Run(context.Background(), "alice@example.com", "acme/widgets")
	require.Error(t, err)

	// A failed pull must not record a pull timestamp.
	state, err := st.GetIngestState(context.Background(), "alice@example.com", "acme/widgets")
	require.NoError(t, err)
	require.Nil(t, state)
}
