// Package ingest pulls repository activity and indexes it for retrieval.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gitrag-ai/gitrag/plugin/github"
	"github.com/gitrag-ai/gitrag/store"
)

const embeddingBatchSize = 16

// Collector fetches repository activity.
type Collector interface {
	Pull(ctx context.Context, repo github.Repo, since time.Time) ([]github.Item, error)
}

// Embedder turns document texts into vectors.
type Embedder interface {
	EmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Service ingests repository activity into the document store.
type Service struct {
	store     *store.Store
	collector Collector
	embedder  Embedder
	now       func() time.Time
}

func NewService(st *store.Store, collector Collector, embedder Embedder) *Service {
	return &Service{store: st, collector: collector, embedder: embedder, now: time.Now}
}

// Result summarizes one ingestion run.
type Result struct {
	Repo        string `json:"repo"`
	Documents   int    `json:"documents"`
	Replaced    int64  `json:"replaced"`
	Incremental bool   `json:"incremental"`
}

// Run ingests the repository for the user. The first run replaces any
// leftover documents and indexes everything; later runs only pull items
// updated since the previous pull. Both paths upsert by source item, so
// re-running after a partial failure converges instead of duplicating.
func (s *Service) Run(ctx context.Context, userEmail, repoRef string) (*Result, error) {
	repo, err := github.ParseRepo(repoRef)
	if err != nil {
		return nil, err
	}

	state, err := s.store.GetIngestState(ctx, userEmail, repoRef)
	if err != nil {
		return nil, err
	}

	var since time.Time
	result := &Result{Repo: repoRef, Incremental: state != nil}
	if state != nil {
		since = time.Unix(state.LastPulledTs, 0)
	}

	pulledAt := s.now()
	items, err := s.collector.Pull(ctx, repo, since)
	if err != nil {
		return nil, fmt.Errorf("failed to pull %s: %w", repoRef, err)
	}

	if state == nil {
		// Full reindex: drop whatever an earlier aborted run left behind.
		replaced, err := s.store.DeleteDocuments(ctx, userEmail, repoRef)
		if err != nil {
			return nil, err
		}
		result.Replaced = replaced
	}

	for start := 0; start < len(items); start += embeddingBatchSize {
		end := min(start+embeddingBatchSize, len(items))
		batch := items[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text()
		}
		vectors, err := s.embedder.EmbeddingBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}

		for i := range batch {
			item := batch[i]
			_, err := s.store.UpsertDocument(ctx, &store.Document{
				UserEmail:     userEmail,
				Repo:          repoRef,
				Kind:          item.Kind,
				SourceID:      item.SourceID,
				Title:         item.Title,
				Content:       texts[i],
				Author:        item.Author,
				State:         item.State,
				URL:           item.URL,
				ItemCreatedTs: item.CreatedAt.Unix(),
				ItemUpdatedTs: item.UpdatedAt.Unix(),
				CreatedTs:     pulledAt.Unix(),
				Embedding:     vectors[i],
			})
			if err != nil {
				return nil, err
			}
			result.Documents++
		}
	}

	if err := s.store.UpsertIngestState(ctx, &store.IngestState{
		UserEmail:    userEmail,
		Repo:         repoRef,
		LastPulledTs: pulledAt.Unix(),
	}); err != nil {
		return nil, err
	}

	slog.Info("ingestion finished",
		"repo", repoRef,
		"user", userEmail,
		"documents", result.Documents,
		"incremental", result.Incremental)
	return result, nil
}
