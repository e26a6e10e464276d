package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
)

const timeLogColumns = "id, user_id, entity_type, entity_id, entity_title, date, duration_minutes, description, created_at, updated_at"

type timeLogRow struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	EntityType      string    `db:"entity_type"`
	EntityID        string    `db:"entity_id"`
	EntityTitle     string    `db:"entity_title"`
	Date            core.Date `db:"date"`
	DurationMinutes int       `db:"duration_minutes"`
	Description     string    `db:"description"`
	CreatedAt       null.Time `db:"created_at"`
	UpdatedAt       null.Time `db:"updated_at"`
}

func timeLogToRow(tl timelog.TimeLog) timeLogRow {
	return timeLogRow{
		ID:              tl.ID,
		UserID:          tl.UserID,
		EntityType:      tl.EntityType,
		EntityID:        tl.EntityID,
		EntityTitle:     tl.EntityTitle,
		Date:            tl.Date,
		DurationMinutes: tl.DurationMinutes,
		Description:     tl.Description,
		CreatedAt:       null.TimeFrom(tl.CreatedAt.UTC()),
		UpdatedAt:       null.TimeFrom(tl.UpdatedAt.UTC()),
	}
}

func (row timeLogRow) toTimeLog() timelog.TimeLog {
	return timelog.TimeLog{
		ID:              row.ID,
		UserID:          row.UserID,
		EntityType:      row.EntityType,
		EntityID:        row.EntityID,
		EntityTitle:     row.EntityTitle,
		Date:            row.Date,
		DurationMinutes: row.DurationMinutes,
		Description:     row.Description,
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}
}

type timeLogRepository struct {
	db *sqlx.DB
}

var _ timelog.Repository = (*timeLogRepository)(nil) // interface compliance check

func NewTimeLogRepository(db *sqlx.DB) timelog.Repository {
	return &timeLogRepository{db: db}
}

func (repo *timeLogRepository) CreateTimeLog(ctx context.Context, tl timelog.TimeLog) (timelog.TimeLog, error) {
	row := timeLogToRow(tl)
	q := `INSERT INTO time_logs (` + timeLogColumns + `)
		VALUES (:id, :user_id, :entity_type, :entity_id, :entity_title, :date, :duration_minutes, :description, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return timelog.TimeLog{}, errors.Wrap(err, "inserting time log")
	}
	return row.toTimeLog(), nil
}

func (repo *timeLogRepository) QueryTimeLogs(ctx context.Context, filter *timelog.QueryFilter, ordering []core.DBOrdering) ([]timelog.TimeLog, error) {
	var w where
	if filter != nil {
		if len(filter.UserIDs) > 0 {
			w.add("user_id::text = ANY(?)", pq.StringArray(filter.UserIDs))
		}
		if filter.EntityType != "" {
			w.add("entity_type = ?", filter.EntityType)
		}
		if filter.EntityID != "" {
			w.add("entity_id::text = ?", filter.EntityID)
		}
		if !filter.From.IsZero() {
			w.add("date >= ?", filter.From)
		}
		if !filter.To.IsZero() {
			w.add("date <= ?", filter.To)
		}
		if filter.Search != "" {
			val := likeValue(filter.Search)
			w.add("description ILIKE ? OR entity_title ILIKE ?", val, val)
		}
	}

	q := "SELECT " + timeLogColumns + " FROM time_logs" + w.String() + orderBy(ordering, nil, "date DESC, created_at DESC")
	var rows []timeLogRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying time logs")
	}
	logs := make([]timelog.TimeLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, row.toTimeLog())
	}
	return logs, nil
}

func (repo *timeLogRepository) GetTimeLog(ctx context.Context, id string) (timelog.TimeLog, error) {
	if !validID(id) {
		return timelog.TimeLog{}, timelog.ErrNotFound
	}
	var row timeLogRow
	q := "SELECT " + timeLogColumns + " FROM time_logs WHERE id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), id); err != nil {
		return timelog.TimeLog{}, trapNoRowsErr(err, timelog.ErrNotFound, "finding time log")
	}
	return row.toTimeLog(), nil
}

func (repo *timeLogRepository) UpdateTimeLog(ctx context.Context, tl timelog.TimeLog) (timelog.TimeLog, error) {
	row := timeLogToRow(tl)
	q := `UPDATE time_logs SET entity_title = :entity_title, date = :date, duration_minutes = :duration_minutes,
		description = :description, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return timelog.TimeLog{}, errors.Wrap(err, "updating time log")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return timelog.TimeLog{}, timelog.ErrNotFound
	}
	return row.toTimeLog(), nil
}

func (repo *timeLogRepository) DeleteTimeLog(ctx context.Context, id string) error {
	if !validID(id) {
		return timelog.ErrNotFound
	}
	res, err := exec(ctx, repo.db, "DELETE FROM time_logs WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting time log")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return timelog.ErrNotFound
	}
	return nil
}
