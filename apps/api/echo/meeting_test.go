package echoapi_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cherif0104/EcosystIA-sub000/core/meeting"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
	"github.com/Cherif0104/EcosystIA-sub000/testutil"
)

func Test_meetingApi(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	trainer := testutil.CreateUserWithRole(t, app.usrRepo, "trainer", user.RoleTrainer)
	staff := testutil.CreateUserWithRole(t, app.usrRepo, "staff", user.RoleStaff)
	student := testutil.CreateUserWithRole(t, app.usrRepo, "student", user.RoleStudent)
	manager := testutil.CreateUserWithRole(t, app.usrRepo, "manager", user.RoleManager)
	trainerToken := app.getToken(t, trainer)
	staffToken := app.getToken(t, staff)

	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	weekly, err := app.meetings.Create(ctx, trainer, meeting.NewMeeting{
		Title: "Weekly sync", StartTime: start, EndTime: start.Add(time.Hour), AttendeeIDs: []string{staff.ID},
	})
	require.NoError(t, err)
	past, err := app.meetings.Create(ctx, trainer, meeting.NewMeeting{
		Title: "Retro", StartTime: start.Add(-72 * time.Hour), EndTime: start.Add(-71 * time.Hour),
	})
	require.NoError(t, err)

	app.run(t, []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: "/v1/meetings", token: trainerToken,
			body: marchallObj(t, meeting.NewMeeting{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "end before start", method: http.MethodPost, path: "/v1/meetings", token: trainerToken,
			body:     marchallObj(t, meeting.NewMeeting{Title: "Demo day", StartTime: start, EndTime: start.Add(-time.Minute)}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"end_time": "end time must be after start time"}),
		},
		{
			name: "unknown attendee", method: http.MethodPost, path: "/v1/meetings", token: trainerToken,
			body: marchallObj(t, meeting.NewMeeting{
				Title: "Demo day", StartTime: start, EndTime: start.Add(time.Hour), AttendeeIDs: []string{"lol"},
			}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"attendee_ids": "unknown users"}),
		},
		{name: "organizer", path: "/v1/meetings", token: trainerToken, wantData: marchallList(t, past, weekly)},
		{name: "attendee", path: "/v1/meetings", token: staffToken, wantData: marchallList(t, weekly)},
		{name: "outsider", path: "/v1/meetings", token: app.getToken(t, student), wantData: marchallList(t)},
		{name: "upcoming", path: "/v1/meetings?upcoming=true", token: app.getToken(t, manager), wantData: marchallList(t, weekly)},
		{
			name: "from", path: "/v1/meetings?" + url.Values{"from": {start.Add(-time.Hour).Format(time.RFC3339)}}.Encode(),
			token: trainerToken, wantData: marchallList(t, weekly),
		},
		{
			name: "to (date)", path: "/v1/meetings?to=" + start.Add(-48*time.Hour).Format("2006-01-02"),
			token: trainerToken, wantData: marchallList(t, past),
		},
		{
			name: "invalid from", path: "/v1/meetings?from=tomorrow", token: trainerToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"from": "must be an RFC 3339 time or a YYYY-MM-DD date"}),
		},
		{
			name: "hidden", path: "/v1/meetings/" + weekly.ID, token: app.getToken(t, student),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "meeting not found"}),
		},
		{name: "detail", path: "/v1/meetings/" + weekly.ID, token: staffToken, wantData: marchallObj(t, weekly)},
		{
			name: "attendees cannot edit", method: http.MethodPut, path: "/v1/meetings/" + weekly.ID, token: staffToken,
			body: []byte(`{"title": "Mine"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "end before the current start", method: http.MethodPut, path: "/v1/meetings/" + weekly.ID, token: trainerToken,
			body:     marchallObj(t, map[string]time.Time{"end_time": start.Add(-time.Hour)}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"end_time": "end time must be after start time"}),
		},
	})

	t.Run("invitations", func(t *testing.T) {
		app.mailSvc.Reset()
		body := marchallObj(t, meeting.NewMeeting{
			Title: "Demo day", Location: "Dakar", StartTime: start, EndTime: start.Add(2 * time.Hour),
			AttendeeIDs: []string{staff.ID, trainer.ID, student.ID},
		})
		rec := app.do(http.MethodPost, "/v1/meetings", trainerToken, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var m meeting.Meeting
		unmarshal(t, rec, &m)
		assert.Equal(t, trainer.ID, m.OrganizerID)
		assert.Equal(t, []string{staff.ID, student.ID}, m.AttendeeIDs, "the organizer is not an attendee")

		sent := app.mailSvc.SentMessages()
		require.Len(t, sent, 2)
		assert.Equal(t, staff.Email, sent[0].To[0].Address)
		require.Len(t, sent[0].Attachments, 1)
		assert.Equal(t, "invite.ics", sent[0].Attachments[0].Filename)

		// only the new attendees are invited
		app.mailSvc.Reset()
		rec = app.do(http.MethodPut, "/v1/meetings/"+m.ID, trainerToken, marchallObj(t, meeting.UpdateMeeting{AttendeeIDs: []string{staff.ID, manager.ID}}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &m)
		assert.Equal(t, []string{staff.ID, manager.ID}, m.AttendeeIDs)
		sent = app.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, manager.Email, sent[0].To[0].Address)

		rec = app.do(http.MethodDelete, "/v1/meetings/"+m.ID, staffToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = app.do(http.MethodDelete, "/v1/meetings/"+m.ID, trainerToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
