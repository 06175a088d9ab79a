// Package schedule manages recurring report subscriptions and the email
// verification that gates their activation.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	"github.com/gitrag-ai/gitrag/plugin/mail"
	"github.com/gitrag-ai/gitrag/server/timezone"
	"github.com/gitrag-ai/gitrag/store"
)

// Service creates and activates report schedules.
type Service struct {
	store       *store.Store
	notifier    mail.Notifier
	instanceURL string
	now         func() time.Time
}

func NewService(st *store.Store, notifier mail.Notifier, instanceURL string) *Service {
	return &Service{store: st, notifier: notifier, instanceURL: instanceURL, now: time.Now}
}

// CreateRequest carries the normalized arguments of a schedule step.
type CreateRequest struct {
	UserEmail        string
	Repo             string
	Prompt           string
	Frequency        string
	TimeLocal        string // HH:MM
	Timezone         string // IANA, already defaulted by the caller
	DestinationEmail string
}

// CreateResult reports whether the schedule went live immediately or is
// waiting on email verification.
type CreateResult struct {
	Schedule            *store.Schedule `json:"schedule"`
	PendingVerification bool            `json:"pending_verification"`
}

// Create stores the schedule. Schedules to an unverified destination are
// created inactive and a verification email is sent; already verified
// destinations activate immediately.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	switch req.Frequency {
	case store.FrequencyDaily, store.FrequencyWeekly, store.FrequencyMonthly:
	default:
		return nil, fmt.Errorf("invalid frequency %q: expected daily, weekly or monthly", req.Frequency)
	}

	tz := req.Timezone
	if tz == "" {
		tz = timezone.DefaultName
	}
	timeUTC, err := timezone.LocalClockToUTC(req.TimeLocal, tz, s.now())
	if err != nil {
		return nil, err
	}

	verified, err := s.ensureVerification(ctx, req.DestinationEmail)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreateSchedule(ctx, &store.Schedule{
		UID:              shortuuid.New(),
		UserEmail:        req.UserEmail,
		Repo:             req.Repo,
		Prompt:           req.Prompt,
		Frequency:        req.Frequency,
		TimeLocal:        req.TimeLocal,
		Timezone:         tz,
		TimeUTC:          timeUTC,
		DestinationEmail: req.DestinationEmail,
		Active:           verified,
		CreatedTs:        s.now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	slog.Info("schedule created",
		"uid", created.UID,
		"repo", created.Repo,
		"frequency", created.Frequency,
		"time_utc", created.TimeUTC,
		"active", created.Active)
	return &CreateResult{Schedule: created, PendingVerification: !verified}, nil
}

// ensureVerification returns whether the destination is verified, sending
// the confirmation email for addresses seen for the first time.
func (s *Service) ensureVerification(ctx context.Context, email string) (bool, error) {
	existing, err := s.store.GetVerifiedEmail(ctx, &store.FindVerifiedEmail{Email: &email})
	if err != nil {
		return false, err
	}
	if existing != nil {
		return existing.Verified, nil
	}

	token := uuid.NewString()
	if _, err := s.store.UpsertVerifiedEmail(ctx, &store.VerifiedEmail{
		Email:     email,
		Token:     token,
		CreatedTs: s.now().Unix(),
	}); err != nil {
		return false, err
	}

	link := fmt.Sprintf("%s/api/v1/email/verify?token=%s", s.instanceURL, token)
	if err := s.notifier.Send(ctx, mail.Email{
		To:      email,
		Subject: "Confirm your report subscription",
		HTMLBody: fmt.Sprintf(
			"<p>A report schedule was created for this address.</p><p><a href=%q>Confirm</a> to start receiving reports.</p>", link),
		TextBody: "Confirm your report subscription: " + link,
	}); err != nil {
		return false, fmt.Errorf("failed to send verification email: %w", err)
	}
	return false, nil
}

// VerifyEmail redeems a verification token and activates every schedule
// waiting on that destination. Returns the number of activated schedules.
func (s *Service) VerifyEmail(ctx context.Context, token string) (int, error) {
	ve, err := s.store.MarkEmailVerified(ctx, token)
	if err != nil {
		return 0, err
	}
	if ve == nil {
		return 0, fmt.Errorf("unknown verification token")
	}

	inactive := false
	pending, err := s.store.ListSchedules(ctx, &store.FindSchedule{
		DestinationEmail: &ve.Email,
		Active:           &inactive,
	})
	if err != nil {
		return 0, err
	}

	active := true
	activated := 0
	for _, sc := range pending {
		if _, err := s.store.UpdateSchedule(ctx, &store.UpdateSchedule{ID: sc.ID, Active: &active}); err != nil {
			return activated, err
		}
		activated++
	}

	slog.Info("email verified", "email", ve.Email, "activated_schedules", activated)
	return activated, nil
}
