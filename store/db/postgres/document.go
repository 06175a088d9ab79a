package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/gitrag-ai/gitrag/store"
)

// UpsertDocument inserts a document or refreshes it when the same source
// item was ingested before.
func (d *DB) UpsertDocument(ctx context.Context, create *store.Document) (*store.Document, error) {
	stmt := `
		INSERT INTO document (
			user_email, repo, kind, source_id, title, content, author, state, url,
			item_created_ts, item_updated_ts, created_ts, embedding
		)
		VALUES (` + placeholders(13) + `)
		ON CONFLICT (user_email, repo, kind, source_id)
		DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			author = EXCLUDED.author,
			state = EXCLUDED.state,
			url = EXCLUDED.url,
			item_updated_ts = EXCLUDED.item_updated_ts,
			embedding = EXCLUDED.embedding
		RETURNING id
	`
	err := d.db.QueryRowContext(ctx, stmt,
		create.UserEmail,
		create.Repo,
		create.Kind,
		create.SourceID,
		create.Title,
		create.Content,
		create.Author,
		create.State,
		create.URL,
		create.ItemCreatedTs,
		create.ItemUpdatedTs,
		create.CreatedTs,
		pgvector.NewVector(create.Embedding),
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert document")
	}
	return create, nil
}

// ListDocuments lists documents matching the filter.
func (d *DB) ListDocuments(ctx context.Context, find *store.FindDocument) ([]*store.Document, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UserEmail != nil {
		where, args = append(where, "user_email = "+placeholder(len(args)+1)), append(args, *find.UserEmail)
	}
	if find.Repo != nil {
		where, args = append(where, "repo = "+placeholder(len(args)+1)), append(args, *find.Repo)
	}
	if find.Kind != nil {
		where, args = append(where, "kind = "+placeholder(len(args)+1)), append(args, *find.Kind)
	}

	order := "id ASC"
	if find.OrderByItemCreatedDesc {
		order = "item_created_ts DESC"
	}
	query := `
		SELECT id, user_email, repo, kind, source_id, title, content, author, state, url,
			item_created_ts, item_updated_ts, created_ts
		FROM document
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + order
	if find.Limit != nil {
		args = append(args, *find.Limit)
		query += " LIMIT " + placeholder(len(args))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list documents")
	}
	defer rows.Close()

	list := []*store.Document{}
	for rows.Next() {
		var doc store.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.UserEmail,
			&doc.Repo,
			&doc.Kind,
			&doc.SourceID,
			&doc.Title,
			&doc.Content,
			&doc.Author,
			&doc.State,
			&doc.URL,
			&doc.ItemCreatedTs,
			&doc.ItemUpdatedTs,
			&doc.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		list = append(list, &doc)
	}
	return list, rows.Err()
}

// DeleteDocuments removes every document for the user and repository pair.
func (d *DB) DeleteDocuments(ctx context.Context, userEmail, repo string) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM document WHERE user_email = $1 AND repo = $2`,
		userEmail, repo)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete documents")
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// SearchDocumentsByVector runs cosine similarity retrieval scoped to the
// user and repository. The <=> operator computes cosine distance.
func (d *DB) SearchDocumentsByVector(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.DocumentWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, user_email, repo, kind, source_id, title, content, author, state, url,
			item_created_ts, item_updated_ts, created_ts,
			1 - (embedding <=> $1) AS score
		FROM document
		WHERE user_email = $2 AND repo = $3 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $4
	`
	rows, err := d.db.QueryContext(ctx, query,
		pgvector.NewVector(opts.Embedding), opts.UserEmail, opts.Repo, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search documents by vector")
	}
	defer rows.Close()

	list := []*store.DocumentWithScore{}
	for rows.Next() {
		var doc store.Document
		var score float32
		if err := rows.Scan(
			&doc.ID,
			&doc.UserEmail,
			&doc.Repo,
			&doc.Kind,
			&doc.SourceID,
			&doc.Title,
			&doc.Content,
			&doc.Author,
			&doc.State,
			&doc.URL,
			&doc.ItemCreatedTs,
			&doc.ItemUpdatedTs,
			&doc.CreatedTs,
			&score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan document with score")
		}
		list = append(list, &store.DocumentWithScore{Document: &doc, Score: score})
	}
	return list, rows.Err()
}

// GetIngestState returns the last pull timestamp, or nil when the pair was
// never ingested.
func (d *DB) GetIngestState(ctx context.Context, userEmail, repo string) (*store.IngestState, error) {
	state := store.IngestState{UserEmail: userEmail, Repo: repo}
	err := d.db.QueryRowContext(ctx,
		`SELECT last_pulled_ts FROM ingest_state WHERE user_email = $1 AND repo = $2`,
		userEmail, repo).Scan(&state.LastPulledTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get ingest state")
	}
	return &state, nil
}

// UpsertIngestState records the pull timestamp for the pair.
func (d *DB) UpsertIngestState(ctx context.Context, state *store.IngestState) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO ingest_state (user_email, repo, last_pulled_ts)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_email, repo)
		DO UPDATE SET last_pulled_ts = EXCLUDED.last_pulled_ts
	`, state.UserEmail, state.Repo, state.LastPulledTs)
	if err != nil {
		return errors.Wrap(err, "failed to upsert ingest state")
	}
	return nil
}
