package store

import "context"

// Schedule frequency values.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Schedule is a recurring report subscription. TimeUTC is derived from
// TimeLocal and Timezone at creation and is what the poller matches on.
type Schedule struct {
	ID               int32
	UID              string
	UserEmail        string
	Repo             string
	Prompt           string
	Frequency        string
	TimeLocal        string // HH:MM in Timezone
	Timezone         string // IANA name
	TimeUTC          string // HH:MM
	DestinationEmail string
	Active           bool
	// LastSentDate is the UTC date (YYYY-MM-DD) of the most recent
	// delivery, used to suppress duplicate sends within a poller tick.
	LastSentDate string
	CreatedTs    int64
}

// FindSchedule filters schedule listings.
type FindSchedule struct {
	ID               *int32
	UID              *string
	UserEmail        *string
	DestinationEmail *string
	Active           *bool
	TimeUTC          *string
}

// UpdateSchedule applies a partial update. Nil fields are left untouched.
type UpdateSchedule struct {
	ID           int32
	Active       *bool
	LastSentDate *string
}

// DeleteSchedule removes a schedule.
type DeleteSchedule struct {
	ID int32
}

func (s *Store) CreateSchedule(ctx context.Context, create *Schedule) (*Schedule, error) {
	return s.driver.CreateSchedule(ctx, create)
}

func (s *Store) ListSchedules(ctx context.Context, find *FindSchedule) ([]*Schedule, error) {
	return s.driver.ListSchedules(ctx, find)
}

func (s *Store) GetSchedule(ctx context.Context, find *FindSchedule) (*Schedule, error) {
	list, err := s.driver.ListSchedules(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateSchedule(ctx context.Context, update *UpdateSchedule) (*Schedule, error) {
	return s.driver.UpdateSchedule(ctx, update)
}

func (s *Store) DeleteSchedule(ctx context.Context, delete *DeleteSchedule) error {
	return s.driver.DeleteSchedule(ctx, delete)
}
