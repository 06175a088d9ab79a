package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitrag-ai/gitrag/store"
)

func (d *DB) UpsertVerifiedEmail(ctx context.Context, upsert *store.VerifiedEmail) (*store.VerifiedEmail, error) {
	var ve store.VerifiedEmail
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO verified_email (email, token, verified, created_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET email = excluded.email
		RETURNING id, email, token, verified, created_ts
	`, upsert.Email, upsert.Token, upsert.Verified, upsert.CreatedTs,
	).Scan(&ve.ID, &ve.Email, &ve.Token, &ve.Verified, &ve.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert verified email")
	}
	return &ve, nil
}

func (d *DB) GetVerifiedEmail(ctx context.Context, find *store.FindVerifiedEmail) (*store.VerifiedEmail, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.Email != nil {
		where, args = append(where, "email = ?"), append(args, *find.Email)
	}
	if find.Token != nil {
		where, args = append(where, "token = ?"), append(args, *find.Token)
	}

	var ve store.VerifiedEmail
	err := d.db.QueryRowContext(ctx, `
		SELECT id, email, token, verified, created_ts
		FROM verified_email
		WHERE `+strings.Join(where, " AND ")+`
	`, args...).Scan(&ve.ID, &ve.Email, &ve.Token, &ve.Verified, &ve.CreatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get verified email")
	}
	return &ve, nil
}

func (d *DB) MarkEmailVerified(ctx context.Context, token string) (*store.VerifiedEmail, error) {
	var ve store.VerifiedEmail
	err := d.db.QueryRowContext(ctx, `
		UPDATE verified_email SET verified = TRUE
		WHERE token = ?
		RETURNING id, email, token, verified, created_ts
	`, token).Scan(&ve.ID, &ve.Email, &ve.Token, &ve.Verified, &ve.CreatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to mark email verified")
	}
	return &ve, nil
}
