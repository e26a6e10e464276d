package meeting_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/meeting"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
	emailsvc "github.com/Cherif0104/EcosystIA-sub000/services/email"
	inmemdb "github.com/Cherif0104/EcosystIA-sub000/storage/database/inmem"
	"github.com/Cherif0104/EcosystIA-sub000/testutil"
)

type fixture struct {
	svc     meeting.Service
	mailSvc *emailsvc.ConsoleServiceMock

	admin, manager, staff, trainer, student user.User
}

func setup(t *testing.T) *fixture {
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	mailSvc := testutil.NewMailService(t, conf)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)

	return &fixture{
		svc:     meeting.NewService(inmemdb.NewMeetingRepository(db), usrSvc, mailSvc),
		mailSvc: mailSvc,
		admin:   testutil.CreateUserWithRole(t, usrRepo, "admin", user.RoleAdmin),
		manager: testutil.CreateUserWithRole(t, usrRepo, "manager", user.RoleManager),
		staff:   testutil.CreateUserWithRole(t, usrRepo, "staff", user.RoleStaff),
		trainer: testutil.CreateUserWithRole(t, usrRepo, "trainer", user.RoleTrainer),
		student: testutil.CreateUserWithRole(t, usrRepo, "student", user.RoleStudent),
	}
}

func newMeeting(start time.Time, attendees ...string) meeting.NewMeeting {
	return meeting.NewMeeting{
		Title:       "Weekly sync",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Location:    "Dakar, room 2",
		AttendeeIDs: attendees,
	}
}

func newValidator() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	return validate
}

func decodeAttachment(t *testing.T, at core.Attachment) string {
	t.Helper()
	content, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	return string(content)
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Minute)

	_, err := f.svc.Create(ctx, f.staff, newMeeting(start, f.trainer.ID, "unknown"))
	require.Error(t, err)
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "attendee_ids", vErr.Fields[0].Field)
	assert.Empty(t, f.mailSvc.SentMessages())

	m, err := f.svc.Create(ctx, f.staff, newMeeting(start, f.trainer.ID, f.staff.ID, f.student.ID))
	require.NoError(t, err)
	assert.Equal(t, f.staff.ID, m.OrganizerID)
	assert.Equal(t, []string{f.trainer.ID, f.student.ID}, m.AttendeeIDs, "the organizer is not an attendee")
	assert.Equal(t, time.Hour, m.Duration())

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 2)
	recipients := []string{sent[0].To[0].Address, sent[1].To[0].Address}
	assert.ElementsMatch(t, []string{f.trainer.Email, f.student.Email}, recipients)

	msg := sent[0]
	assert.Equal(t, "Invitation: Weekly sync", msg.Subject)
	assert.Contains(t, msg.TextContent, `staff invited you to "Weekly sync"`)
	assert.Contains(t, msg.TextContent, "Where: Dakar, room 2")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "invite.ics", msg.Attachments[0].Filename)
	assert.Equal(t, "text/calendar", msg.Attachments[0].ContentType)
	ics := decodeAttachment(t, msg.Attachments[0])
	assert.Contains(t, ics, "UID:"+m.ID+"@ecosystia\r\n")
	assert.Contains(t, ics, "ORGANIZER;CN=staff:mailto:staff@test.test\r\n")
}

func TestService_Visibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past, err := f.svc.Create(ctx, f.staff, newMeeting(now.Add(-48*time.Hour), f.trainer.ID))
	require.NoError(t, err)
	next, err := f.svc.Create(ctx, f.staff, newMeeting(now.Add(2*time.Hour), f.trainer.ID))
	require.NoError(t, err)
	later, err := f.svc.Create(ctx, f.manager, newMeeting(now.Add(time.Hour)))
	require.NoError(t, err)

	upcoming := true
	tests := []struct {
		name   string
		usr    user.User
		filter *meeting.QueryFilter
		want   []string
	}{
		{name: "organizer", usr: f.staff, want: []string{past.ID, next.ID}},
		{name: "attendee", usr: f.trainer, want: []string{past.ID, next.ID}},
		{name: "upcoming", usr: f.trainer, filter: &meeting.QueryFilter{Upcoming: &upcoming}, want: []string{next.ID}},
		{name: "not invited", usr: f.student, want: []string{}},
		{name: "manager sees everything", usr: f.manager, want: []string{past.ID, later.ID, next.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meetings, err := f.svc.Query(ctx, tt.usr, tt.filter, nil)
			require.NoError(t, err)
			ids := make([]string, 0, len(meetings))
			for _, m := range meetings {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.want, ids, "meetings are ordered by start time")
		})
	}

	_, err = f.svc.Get(ctx, f.student, next.ID)
	assert.Equal(t, meeting.ErrNotFound, err)
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	start := time.Now().UTC().Add(24 * time.Hour)

	m, err := f.svc.Create(ctx, f.staff, newMeeting(start, f.trainer.ID))
	require.NoError(t, err)
	f.mailSvc.Reset()

	_, err = f.svc.Update(ctx, f.trainer, m.ID, meeting.UpdateMeeting{Title: "Mine"})
	assert.Equal(t, core.ErrPermissionDenied, err, "attendees cannot edit the meeting")

	m, err = f.svc.Update(ctx, f.staff, m.ID, meeting.UpdateMeeting{Title: "Planning"})
	require.NoError(t, err)
	assert.Equal(t, "Planning", m.Title)
	assert.Equal(t, []string{f.trainer.ID}, m.AttendeeIDs)
	assert.Empty(t, f.mailSvc.SentMessages())

	m, err = f.svc.Update(ctx, f.admin, m.ID, meeting.UpdateMeeting{AttendeeIDs: []string{f.trainer.ID, f.student.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{f.trainer.ID, f.student.ID}, m.AttendeeIDs)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1, "only the new attendees are invited")
	assert.Equal(t, f.student.Email, sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "staff invited you", "the invitation comes from the organizer")

	assert.Equal(t, core.ErrPermissionDenied, f.svc.Delete(ctx, f.trainer, m.ID))
	require.NoError(t, f.svc.Delete(ctx, f.staff, m.ID))
	_, err = f.svc.Get(ctx, f.staff, m.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestUpdateMeeting_Validate(t *testing.T) {
	validate := newValidator()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	orig := meeting.Meeting{StartTime: start, EndTime: start.Add(time.Hour)}

	before := start.Add(-time.Minute)
	um := meeting.UpdateMeeting{EndTime: &before}
	err := um.Validate(orig, validate)
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "end_time", vErr.Fields[0].Field)

	later := start.Add(30 * time.Minute)
	um = meeting.UpdateMeeting{StartTime: &later}
	assert.NoError(t, um.Validate(orig, validate))
}

func TestICalendar(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := meeting.Meeting{
		ID:          "m1",
		Title:       "Review; budget, Q1",
		Description: "Line 1\nLine 2",
		StartTime:   start,
		EndTime:     start.Add(90 * time.Minute),
		UpdatedAt:   start.Add(-time.Hour),
	}

	ics := meeting.ICalendar(m, "Awa Diop", "awa@test.test", "EcosystIA")
	want := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//EcosystIA//EN",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"UID:m1@ecosystia",
		"DTSTAMP:20240301T090000Z",
		"DTSTART:20240301T100000Z",
		"DTEND:20240301T113000Z",
		`SUMMARY:Review\; budget\, Q1`,
		`DESCRIPTION:Line 1\nLine 2`,
		"ORGANIZER;CN=Awa Diop:mailto:awa@test.test",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	assert.Equal(t, want, ics)
}
