package postgres

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitrag-ai/gitrag/store"
)

// CreateSchedule inserts a schedule.
func (d *DB) CreateSchedule(ctx context.Context, create *store.Schedule) (*store.Schedule, error) {
	stmt := `
		INSERT INTO schedule (
			uid, user_email, repo, prompt, frequency, time_local, timezone,
			time_utc, destination_email, active, last_sent_date, created_ts
		)
		VALUES (` + placeholders(12) + `)
		RETURNING id
	`
	err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.UserEmail,
		create.Repo,
		create.Prompt,
		create.Frequency,
		create.TimeLocal,
		create.Timezone,
		create.TimeUTC,
		create.DestinationEmail,
		create.Active,
		create.LastSentDate,
		create.CreatedTs,
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schedule")
	}
	return create, nil
}

// ListSchedules lists schedules matching the filter.
func (d *DB) ListSchedules(ctx context.Context, find *store.FindSchedule) ([]*store.Schedule, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.UserEmail != nil {
		where, args = append(where, "user_email = "+placeholder(len(args)+1)), append(args, *find.UserEmail)
	}
	if find.DestinationEmail != nil {
		where, args = append(where, "destination_email = "+placeholder(len(args)+1)), append(args, *find.DestinationEmail)
	}
	if find.Active != nil {
		where, args = append(where, "active = "+placeholder(len(args)+1)), append(args, *find.Active)
	}
	if find.TimeUTC != nil {
		where, args = append(where, "time_utc = "+placeholder(len(args)+1)), append(args, *find.TimeUTC)
	}

	query := `
		SELECT id, uid, user_email, repo, prompt, frequency, time_local, timezone,
			time_utc, destination_email, active, last_sent_date, created_ts
		FROM schedule
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list schedules")
	}
	defer rows.Close()

	list := []*store.Schedule{}
	for rows.Next() {
		var sc store.Schedule
		if err := rows.Scan(
			&sc.ID,
			&sc.UID,
			&sc.UserEmail,
			&sc.Repo,
			&sc.Prompt,
			&sc.Frequency,
			&sc.TimeLocal,
			&sc.Timezone,
			&sc.TimeUTC,
			&sc.DestinationEmail,
			&sc.Active,
			&sc.LastSentDate,
			&sc.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan schedule")
		}
		list = append(list, &sc)
	}
	return list, rows.Err()
}

// UpdateSchedule applies a partial update and returns the updated row.
func (d *DB) UpdateSchedule(ctx context.Context, update *store.UpdateSchedule) (*store.Schedule, error) {
	set, args := []string{}, []any{}

	if update.Active != nil {
		set, args = append(set, "active = "+placeholder(len(args)+1)), append(args, *update.Active)
	}
	if update.LastSentDate != nil {
		set, args = append(set, "last_sent_date = "+placeholder(len(args)+1)), append(args, *update.LastSentDate)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	args = append(args, update.ID)

	stmt := `
		UPDATE schedule SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, uid, user_email, repo, prompt, frequency, time_local, timezone,
			time_utc, destination_email, active, last_sent_date, created_ts
	`
	var sc store.Schedule
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&sc.ID,
		&sc.UID,
		&sc.UserEmail,
		&sc.Repo,
		&sc.Prompt,
		&sc.Frequency,
		&sc.TimeLocal,
		&sc.Timezone,
		&sc.TimeUTC,
		&sc.DestinationEmail,
		&sc.Active,
		&sc.LastSentDate,
		&sc.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update schedule")
	}
	return &sc, nil
}

// DeleteSchedule removes a schedule.
func (d *DB) DeleteSchedule(ctx context.Context, delete *store.DeleteSchedule) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM schedule WHERE id = $1`, delete.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete schedule")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.Errorf("schedule %d not found", delete.ID)
	}
	return nil
}
