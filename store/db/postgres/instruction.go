package postgres

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/gitrag-ai/gitrag/store"
)

// CreateInstruction stores a user instruction with its embedding.
func (d *DB) CreateInstruction(ctx context.Context, create *store.Instruction) (*store.Instruction, error) {
	stmt := `
		INSERT INTO instruction (user_email, repo, content, created_ts, embedding)
		VALUES (` + placeholders(5) + `)
		RETURNING id
	`
	err := d.db.QueryRowContext(ctx, stmt,
		create.UserEmail,
		create.Repo,
		create.Content,
		create.CreatedTs,
		pgvector.NewVector(create.Embedding),
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create instruction")
	}
	return create, nil
}

// ListInstructions lists instructions matching the filter, newest first.
func (d *DB) ListInstructions(ctx context.Context, find *store.FindInstruction) ([]*store.Instruction, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UserEmail != nil {
		where, args = append(where, "user_email = "+placeholder(len(args)+1)), append(args, *find.UserEmail)
	}
	if find.Repo != nil {
		where, args = append(where, "repo = "+placeholder(len(args)+1)), append(args, *find.Repo)
	}

	query := `
		SELECT id, user_email, repo, content, created_ts
		FROM instruction
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC
	`
	if find.Limit != nil {
		args = append(args, *find.Limit)
		query += " LIMIT " + placeholder(len(args))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list instructions")
	}
	defer rows.Close()

	list := []*store.Instruction{}
	for rows.Next() {
		var in store.Instruction
		if err := rows.Scan(&in.ID, &in.UserEmail, &in.Repo, &in.Content, &in.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan instruction")
		}
		list = append(list, &in)
	}
	return list, rows.Err()
}

// SearchInstructionsByVector retrieves the user's most relevant instructions
// for the report prompt being assembled.
func (d *DB) SearchInstructionsByVector(ctx context.Context, opts *store.InstructionSearchOptions) ([]*store.InstructionWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT id, user_email, repo, content, created_ts, 1 - (embedding <=> $1) AS score
		FROM instruction
		WHERE user_email = $2 AND repo = $3 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $4
	`
	rows, err := d.db.QueryContext(ctx, query,
		pgvector.NewVector(opts.Embedding), opts.UserEmail, opts.Repo, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search instructions by vector")
	}
	defer rows.Close()

	list := []*store.InstructionWithScore{}
	for rows.Next() {
		var in store.Instruction
		var score float32
		if err := rows.Scan(&in.ID, &in.UserEmail, &in.Repo, &in.Content, &in.CreatedTs, &score); err != nil {
			return nil, errors.Wrap(err, "failed to scan instruction with score")
		}
		list = append(list, &store.InstructionWithScore{Instruction: &in, Score: score})
	}
	return list, rows.Err()
}
