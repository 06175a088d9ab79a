package store

import "context"

// VerifiedEmail tracks whether a destination address has confirmed
// ownership. Schedules targeting an unverified address stay inactive until
// the token in the confirmation email is redeemed.
type VerifiedEmail struct {
	ID        int32
	Email     string
	Token     string
	Verified  bool
	CreatedTs int64
}

// FindVerifiedEmail filters verified email lookups.
type FindVerifiedEmail struct {
	Email *string
	Token *string
}

func (s *Store) UpsertVerifiedEmail(ctx context.Context, upsert *VerifiedEmail) (*VerifiedEmail, error) {
	return s.driver.UpsertVerifiedEmail(ctx, upsert)
}

func (s *Store) GetVerifiedEmail(ctx context.Context, find *FindVerifiedEmail) (*VerifiedEmail, error) {
	return s.driver.GetVerifiedEmail(ctx, find)
}

func (s *Store) MarkEmailVerified(ctx context.Context, token string) (*VerifiedEmail, error) {
	return s.driver.MarkEmailVerified(ctx, token)
}
