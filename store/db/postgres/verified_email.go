package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitrag-ai/gitrag/store"
)

// UpsertVerifiedEmail inserts the address or returns the existing row. A
// fresh token is only written for previously unknown addresses so pending
// verification links stay valid.
func (d *DB) UpsertVerifiedEmail(ctx context.Context, upsert *store.VerifiedEmail) (*store.VerifiedEmail, error) {
	stmt := `
		INSERT INTO verified_email (email, token, verified, created_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, token, verified, created_ts
	`
	var ve store.VerifiedEmail
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.Email,
		upsert.Token,
		upsert.Verified,
		upsert.CreatedTs,
	).Scan(&ve.ID, &ve.Email, &ve.Token, &ve.Verified, &ve.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert verified email")
	}
	return &ve, nil
}

// GetVerifiedEmail fetches a row by address or token.
func (d *DB) GetVerifiedEmail(ctx context.Context, find *store.FindVerifiedEmail) (*store.VerifiedEmail, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.Email != nil {
		where, args = append(where, "email = "+placeholder(len(args)+1)), append(args, *find.Email)
	}
	if find.Token != nil {
		where, args = append(where, "token = "+placeholder(len(args)+1)), append(args, *find.Token)
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

// MarkEmailVerified redeems a verification token.
func (d *DB) MarkEmailVerified(ctx context.Context, token string) (*store.VerifiedEmail, error) {
	var ve store.VerifiedEmail
	err := d.db.QueryRowContext(ctx, `
		UPDATE verified_email SET verified = TRUE
		WHERE token = $1
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
