package store

import "context"

// Document is one embedded unit of repository activity (an issue, a pull
// request or a commit) scoped to the user that ingested it.
type Document struct {
	ID        int32
	UserEmail string
	Repo      string
	Kind      string // issue, pull_request, commit
	SourceID  string
	Title     string
	Content   string
	Author    string
	State     string
	URL       string
	// ItemCreatedTs and ItemUpdatedTs carry the upstream timestamps, not
	// the ingestion time.
	ItemCreatedTs int64
	ItemUpdatedTs int64
	CreatedTs     int64

	Embedding []float32
}

// FindDocument filters document listings.
type FindDocument struct {
	UserEmail *string
	Repo      *string
	Kind      *string
	Limit     *int
	// OrderByItemCreatedDesc returns newest upstream activity first, used
	// for chronological questions.
	OrderByItemCreatedDesc bool
}

// DocumentWithScore pairs a document with its similarity score.
type DocumentWithScore struct {
	Document *Document
	Score    float32
}

// VectorSearchOptions filters semantic retrieval.
type VectorSearchOptions struct {
	UserEmail string
	Repo      string
	Embedding []float32
	Limit     int
}

// IngestState records when a repository was last pulled for a user.
type IngestState struct {
	UserEmail    string
	Repo         string
	LastPulledTs int64
}

func (s *Store) UpsertDocument(ctx context.Context, create *Document) (*Document, error) {
	return s.driver.UpsertDocument(ctx, create)
}

func (s *Store) ListDocuments(ctx context.Context, find *FindDocument) ([]*Document, error) {
	return s.driver.ListDocuments(ctx, find)
}

func (s *Store) DeleteDocuments(ctx context.Context, userEmail, repo string) (int64, error) {
	return s.driver.DeleteDocuments(ctx, userEmail, repo)
}

func (s *Store) SearchDocumentsByVector(ctx context.Context, opts *VectorSearchOptions) ([]*DocumentWithScore, error) {
	return s.driver.SearchDocumentsByVector(ctx, opts)
}

func (s *Store) GetIngestState(ctx context.Context, userEmail, repo string) (*IngestState, error) {
	return s.driver.GetIngestState(ctx, userEmail, repo)
}

func (s *Store) UpsertIngestState(ctx context.Context, state *IngestState) error {
	return s.driver.UpsertIngestState(ctx, state)
}
