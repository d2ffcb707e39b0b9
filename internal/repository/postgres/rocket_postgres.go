package postgres

import (
	"context"
	"database/sql"
	"time"

	"rocketapi/internal/model"
	"rocketapi/internal/repository"
)

// RocketPostgres is a PostgreSQL implementation of repository.SnapshotRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type RocketPostgres struct {
	db *sql.DB
}

// NewRocketPostgres creates a new RocketPostgres repository.
func NewRocketPostgres(db *sql.DB) *RocketPostgres {
	return &RocketPostgres{db: db}
}

var _ repository.SnapshotRepository = (*RocketPostgres)(nil)

// Save upserts the rocket row, keeping whichever snapshot has seen more messages.
func (r *RocketPostgres) Save(ctx context.Context, rocket model.Rocket) error {
	const q = `
		INSERT INTO rockets (id, type, speed, mission, launch_time, last_message_number, status, mission_end_time, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			speed = EXCLUDED.speed,
			mission = EXCLUDED.mission,
			launch_time = EXCLUDED.launch_time,
			last_message_number = EXCLUDED.last_message_number,
			status = EXCLUDED.status,
			mission_end_time = EXCLUDED.mission_end_time,
			updated_at = EXCLUDED.updated_at
		WHERE rockets.last_message_number <= EXCLUDED.last_message_number
	`
	_, err := r.db.ExecContext(ctx, q,
		rocket.ID,
		rocket.Type,
		rocket.Speed,
		rocket.Mission,
		nullTime(rocket.LaunchTime),
		rocket.LastMessageNumber,
		rocket.Status,
		nullTime(rocket.MissionEndTime),
		time.Now().UTC(),
	)
	return err
}

// LoadAll fetches every stored rocket.
func (r *RocketPostgres) LoadAll(ctx context.Context) ([]model.Rocket, error) {
	const q = `
		SELECT id, type, speed, mission, launch_time, last_message_number, status, mission_end_time
		FROM rockets
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Rocket, 0)
	for rows.Next() {
		var (
			rk         model.Rocket
			launchTime sql.NullTime
			endTime    sql.NullTime
		)
		if err := rows.Scan(
			&rk.ID,
			&rk.Type,
			&rk.Speed,
			&rk.Mission,
			&launchTime,
			&rk.LastMessageNumber,
			&rk.Status,
			&endTime,
		); err != nil {
			return nil, err
		}
		rk.LaunchTime = timePtr(launchTime)
		rk.MissionEndTime = timePtr(endTime)
		items = append(items, rk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Ping verifies the database connection.
func (r *RocketPostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
