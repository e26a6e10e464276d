package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/meeting"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
)

func TestTimeLogRepository_QueryTimeLogs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTimeLogRepository(db)
	usrID, entityID := uuid.New().String(), uuid.New().String()
	from, _ := core.ParseDate("2024-02-05")
	to, _ := core.ParseDate("2024-02-11")
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM time_logs WHERE (user_id::text = ANY($1)) AND (entity_type = $2) AND (date >= $3) AND (date <= $4) " +
			"ORDER BY date DESC, created_at DESC")).
		WithArgs(sqlmock.AnyArg(), timelog.EntityProject, from, to).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "entity_type", "entity_id", "entity_title", "date", "duration_minutes", "description", "created_at", "updated_at",
		}).AddRow(uuid.New().String(), usrID, "project", entityID, "Website", time.Date(2024, 2, 6, 0, 0, 0, 0, time.UTC), 90, "", now, now))

	logs, err := repo.QueryTimeLogs(context.Background(), &timelog.QueryFilter{
		UserIDs:    []string{usrID},
		EntityType: timelog.EntityProject,
		From:       from,
		To:         to,
	}, nil)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "2024-02-06", logs[0].Date.String())
	assert.Equal(t, 90, logs[0].DurationMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeLogRepository_DeleteTimeLog(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTimeLogRepository(db)
	id := uuid.New().String()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM time_logs WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Equal(t, timelog.ErrNotFound, repo.DeleteTimeLog(context.Background(), id))
	assert.Equal(t, timelog.ErrNotFound, repo.DeleteTimeLog(context.Background(), "x"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepository_QueryMeetings(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMeetingRepository(db)
	usrID := uuid.New().String()
	now := time.Date(2024, 2, 6, 9, 0, 0, 0, time.UTC)
	upcoming := true

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM meetings WHERE (end_time > $1) AND (organizer_id::text = $2 OR $3 = ANY(attendee_ids)) ORDER BY start_time ASC")).
		WithArgs(now, usrID, usrID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "description", "start_time", "end_time", "location", "organizer_id", "attendee_ids", "created_at", "updated_at",
		}).AddRow(uuid.New().String(), "Standup", "", now.Add(time.Hour), now.Add(90*time.Minute), "Room 1", usrID, "{}", now, now))

	meetings, err := repo.QueryMeetings(context.Background(), &meeting.QueryFilter{
		Upcoming:  &upcoming,
		Now:       now,
		VisibleTo: usrID,
	}, nil)
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, 30*time.Minute, meetings[0].Duration())
	assert.Equal(t, []string{}, meetings[0].AttendeeIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepository_GetMeeting_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMeetingRepository(db)
	id := uuid.New().String()

	mock.ExpectQuery(regexp.QuoteMeta("FROM meetings WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetMeeting(context.Background(), id)
	assert.Equal(t, meeting.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
