package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/meeting"
)

const meetingColumns = "id, title, description, start_time, end_time, location, organizer_id, attendee_ids, created_at, updated_at"

var meetingOrderings = map[string]string{
	"title": "LOWER(title)",
}

type meetingRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	StartTime   null.Time      `db:"start_time"`
	EndTime     null.Time      `db:"end_time"`
	Location    string         `db:"location"`
	OrganizerID null.String    `db:"organizer_id"`
	AttendeeIDs pq.StringArray `db:"attendee_ids"`
	CreatedAt   null.Time      `db:"created_at"`
	UpdatedAt   null.Time      `db:"updated_at"`
}

func meetingToRow(m meeting.Meeting) meetingRow {
	attendees := m.AttendeeIDs
	if attendees == nil {
		attendees = []string{}
	}
	return meetingRow{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		StartTime:   null.TimeFrom(m.StartTime.UTC()),
		EndTime:     null.TimeFrom(m.EndTime.UTC()),
		Location:    m.Location,
		OrganizerID: nullUUID(m.OrganizerID),
		AttendeeIDs: attendees,
		CreatedAt:   null.TimeFrom(m.CreatedAt.UTC()),
		UpdatedAt:   null.TimeFrom(m.UpdatedAt.UTC()),
	}
}

func (row meetingRow) toMeeting() meeting.Meeting {
	m := meeting.Meeting{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		StartTime:   row.StartTime.Time.UTC(),
		EndTime:     row.EndTime.Time.UTC(),
		Location:    row.Location,
		OrganizerID: row.OrganizerID.String,
		AttendeeIDs: []string(row.AttendeeIDs),
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
	if m.AttendeeIDs == nil {
		m.AttendeeIDs = []string{}
	}
	return m
}

type meetingRepository struct {
	db *sqlx.DB
}

var _ meeting.Repository = (*meetingRepository)(nil) // interface compliance check

func NewMeetingRepository(db *sqlx.DB) meeting.Repository {
	return &meetingRepository{db: db}
}

func (repo *meetingRepository) CreateMeeting(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	row := meetingToRow(m)
	q := `INSERT INTO meetings (` + meetingColumns + `)
		VALUES (:id, :title, :description, :start_time, :end_time, :location, :organizer_id, :attendee_ids, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "inserting meeting")
	}
	return row.toMeeting(), nil
}

func (repo *meetingRepository) QueryMeetings(ctx context.Context, filter *meeting.QueryFilter, ordering []core.DBOrdering) ([]meeting.Meeting, error) {
	var w where
	if filter != nil {
		if !filter.From.IsZero() {
			w.add("start_time >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			w.add("start_time <= ?", filter.To.UTC())
		}
		if filter.AttendeeID != "" {
			w.add("? = ANY(attendee_ids)", filter.AttendeeID)
		}
		if filter.OrganizerID != "" {
			w.add("organizer_id::text = ?", filter.OrganizerID)
		}
		if filter.Search != "" {
			val := likeValue(filter.Search)
			w.add("title ILIKE ? OR description ILIKE ? OR location ILIKE ?", val, val, val)
		}
		if filter.Upcoming != nil {
			if *filter.Upcoming {
				w.add("end_time > ?", filter.Now.UTC())
			} else {
				w.add("end_time <= ?", filter.Now.UTC())
			}
		}
		if filter.VisibleTo != "" {
			w.add("organizer_id::text = ? OR ? = ANY(attendee_ids)", filter.VisibleTo, filter.VisibleTo)
		}
	}

	q := "SELECT " + meetingColumns + " FROM meetings" + w.String() + orderBy(ordering, meetingOrderings, "start_time ASC")
	var rows []meetingRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	meetings := make([]meeting.Meeting, 0, len(rows))
	for _, row := range rows {
		meetings = append(meetings, row.toMeeting())
	}
	return meetings, nil
}

func (repo *meetingRepository) GetMeeting(ctx context.Context, id string) (meeting.Meeting, error) {
	if !validID(id) {
		return meeting.Meeting{}, meeting.ErrNotFound
	}
	var row meetingRow
	q := "SELECT " + meetingColumns + " FROM meetings WHERE id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), id); err != nil {
		return meeting.Meeting{}, trapNoRowsErr(err, meeting.ErrNotFound, "finding meeting")
	}
	return row.toMeeting(), nil
}

func (repo *meetingRepository) UpdateMeeting(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	row := meetingToRow(m)
	q := `UPDATE meetings SET title = :title, description = :description, start_time = :start_time, end_time = :end_time,
		location = :location, organizer_id = :organizer_id, attendee_ids = :attendee_ids, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "updating meeting")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return meeting.Meeting{}, meeting.ErrNotFound
	}
	return row.toMeeting(), nil
}

func (repo *meetingRepository) DeleteMeeting(ctx context.Context, id string) error {
	if !validID(id) {
		return meeting.ErrNotFound
	}
	res, err := exec(ctx, repo.db, "DELETE FROM meetings WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting meeting")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return meeting.ErrNotFound
	}
	return nil
}
