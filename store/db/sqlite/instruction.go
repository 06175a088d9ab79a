package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitrag-ai/gitrag/store"
)

func (d *DB) CreateInstruction(ctx context.Context, create *store.Instruction) (*store.Instruction, error) {
	vector, err := encodeVector(create.Embedding)
	if err != nil {
		return nil, err
	}

	err = d.db.QueryRowContext(ctx, `
		INSERT INTO instruction (user_email, repo, content, created_ts, embedding)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, create.UserEmail, create.Repo, create.Content, create.CreatedTs, vector).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create instruction")
	}
	return create, nil
}

func (d *DB) ListInstructions(ctx context.Context, find *store.FindInstruction) ([]*store.Instruction, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UserEmail != nil {
		where, args = append(where, "user_email = ?"), append(args, *find.UserEmail)
	}
	if find.Repo != nil {
		where, args = append(where, "repo = ?"), append(args, *find.Repo)
	}

	query := `
		SELECT id, user_email, repo, content, created_ts
		FROM instruction
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC
	`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
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

func (d *DB) SearchInstructionsByVector(ctx context.Context, opts *store.InstructionSearchOptions) ([]*store.InstructionWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_email, repo, content, created_ts, embedding
		FROM instruction
		WHERE user_email = ? AND repo = ? AND embedding != ''
	`, opts.UserEmail, opts.Repo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load instructions for vector search")
	}
	defer rows.Close()

	list := []*store.InstructionWithScore{}
	for rows.Next() {
		var in store.Instruction
		var vector string
		if err := rows.Scan(&in.ID, &in.UserEmail, &in.Repo, &in.Content, &in.CreatedTs, &vector); err != nil {
			return nil, errors.Wrap(err, "failed to scan instruction")
		}
		embedding, err := decodeVector(vector)
		if err != nil {
			return nil, err
		}
		list = append(list, &store.InstructionWithScore{
			Instruction: &in,
			Score:       cosineSimilarity(opts.Embedding, embedding),
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
