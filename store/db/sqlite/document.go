package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitrag-ai/gitrag/store"
)

func (d *DB) UpsertDocument(ctx context.Context, create *store.Document) (*store.Document, error) {
	vector, err := encodeVector(create.Embedding)
	if err != nil {
		return nil, err
	}

	stmt := `
		INSERT INTO document (
			user_email, repo, kind, source_id, title, content, author, state, url,
			item_created_ts, item_updated_ts, created_ts, embedding
		)
		VALUES (` + placeholders(13) + `)
		ON CONFLICT (user_email, repo, kind, source_id)
		DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			author = excluded.author,
			state = excluded.state,
			url = excluded.url,
			item_updated_ts = excluded.item_updated_ts,
			embedding = excluded.embedding
		RETURNING id
	`
	err = d.db.QueryRowContext(ctx, stmt,
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
		vector,
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert document")
	}
	return create, nil
}

func (d *DB) ListDocuments(ctx context.Context, find *store.FindDocument) ([]*store.Document, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UserEmail != nil {
		where, args = append(where, "user_email = ?"), append(args, *find.UserEmail)
	}
	if find.Repo != nil {
		where, args = append(where, "repo = ?"), append(args, *find.Repo)
	}
	if find.Kind != nil {
		where, args = append(where, "kind = ?"), append(args, *find.Kind)
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
		query += " LIMIT ?"
		args = append(args, *find.Limit)
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

func (d *DB) DeleteDocuments(ctx context.Context, userEmail, repo string) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM document WHERE user_email = ? AND repo = ?`,
		userEmail, repo)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete documents")
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// SearchDocumentsByVector loads the candidate set and ranks it in process.
func (d *DB) SearchDocumentsByVector(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.DocumentWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_email, repo, kind, source_id, title, content, author, state, url,
			item_created_ts, item_updated_ts, created_ts, embedding
		FROM document
		WHERE user_email = ? AND repo = ? AND embedding != ''
	`, opts.UserEmail, opts.Repo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load documents for vector search")
	}
	defer rows.Close()

	list := []*store.DocumentWithScore{}
	for rows.Next() {
		var doc store.Document
		var vector string
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
			&vector,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		embedding, err := decodeVector(vector)
		if err != nil {
			return nil, err
		}
		list = append(list, &store.DocumentWithScore{
			Document: &doc,
			Score:    cosineSimilarity(opts.Embedding, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(list, func(i, j int) bool { return list[i].Score > list[j].Score })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (d *DB) GetIngestState(ctx context.Context, userEmail, repo string) (*store.IngestState, error) {
	state := store.IngestState{UserEmail: userEmail, Repo: repo}
	err := d.db.QueryRowContext(ctx,
		`SELECT last_pulled_ts FROM ingest_state WHERE user_email = ? AND repo = ?`,
		userEmail, repo).Scan(&state.LastPulledTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get ingest state")
	}
	return &state, nil
}

func (d *DB) UpsertIngestState(ctx context.Context, state *store.IngestState) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO ingest_state (user_email, repo, last_pulled_ts)
		VALUES (?, ?, ?)
		ON CONFLICT (user_email, repo)
		DO UPDATE SET last_pulled_ts = excluded.last_pulled_ts
	`, state.UserEmail, state.Repo, state.LastPulledTs)
	if err != nil {
		return errors.Wrap(err, "failed to upsert ingest state")
	}
	return nil
}
