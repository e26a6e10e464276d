package meeting

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("meeting")

	errUnknownUsers = "unknown users"

	icsProdID = "EcosystIA"
)

type (
	Repository interface {
		CreateMeeting(ctx context.Context, m Meeting) (Meeting, error)
		// QueryMeetings applies AND operation on available QueryFilter fields.
		QueryMeetings(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Meeting, error)
		GetMeeting(ctx context.Context, id string) (Meeting, error)
		UpdateMeeting(ctx context.Context, m Meeting) (Meeting, error)
		DeleteMeeting(ctx context.Context, id string) error
	}

	// UserLookup is the part of user.Service the meeting service relies on.
	UserLookup interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		GetMany(ctx context.Context, ids []string) ([]user.User, error)
	}

	Service interface {
		// Create sends invitations to the attendees.
		Create(ctx context.Context, usr user.User, nm NewMeeting) (Meeting, error)
		Query(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Meeting, error)
		Get(ctx context.Context, usr user.User, id string) (Meeting, error)
		// Update sends invitations to the newly added attendees.
		Update(ctx context.Context, usr user.User, id string, um UpdateMeeting) (Meeting, error)
		Delete(ctx context.Context, usr user.User, id string) error
	}

	service struct {
		repo    Repository
		users   UserLookup
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, users UserLookup, mailSvc core.EmailService) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(mailSvc, "mailSvc"),
	).CheckAndPanic()

	return &service{repo: repo, users: users, mailSvc: mailSvc}
}

func (svc *service) Create(ctx context.Context, usr user.User, nm NewMeeting) (Meeting, error) {
	attendees, err := svc.attendees(ctx, usr.ID, nm.AttendeeIDs)
	if err != nil {
		return Meeting{}, err
	}

	now := time.Now().UTC()
	m := Meeting{
		ID:          uuid.New().String(),
		Title:       nm.Title,
		Description: nm.Description,
		StartTime:   nm.StartTime.UTC(),
		EndTime:     nm.EndTime.UTC(),
		Location:    nm.Location,
		OrganizerID: usr.ID,
		AttendeeIDs: userIDs(attendees),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m, err = svc.repo.CreateMeeting(ctx, m); err != nil {
		return Meeting{}, errors.Wrap(err, "creating meeting")
	}
	svc.sendInvitations(m, usr, attendees)
	return m, nil
}

func (svc *service) Query(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Meeting, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !usr.SeesEverything() {
		filter.VisibleTo = usr.ID
	}
	if filter.Now.IsZero() {
		filter.Now = time.Now().UTC()
	}
	meetings, err := svc.repo.QueryMeetings(ctx, filter, core.CleanOrderings(ordering, OrderingFields))
	return meetings, errors.Wrap(err, "querying meetings")
}

// Get returns ErrNotFound for meetings the user cannot see.
func (svc *service) Get(ctx context.Context, usr user.User, id string) (Meeting, error) {
	m, err := svc.repo.GetMeeting(ctx, id)
	if err != nil {
		return Meeting{}, err
	}
	if !m.VisibleTo(usr) {
		return Meeting{}, ErrNotFound
	}
	return m, nil
}

func (svc *service) Update(ctx context.Context, usr user.User, id string, um UpdateMeeting) (Meeting, error) {
	m, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Meeting{}, err
	}
	if !m.EditableBy(usr) {
		return Meeting{}, core.ErrPermissionDenied
	}

	var added []user.User
	if um.AttendeeIDs != nil {
		attendees, err := svc.attendees(ctx, m.OrganizerID, um.AttendeeIDs)
		if err != nil {
			return Meeting{}, err
		}
		for _, a := range attendees {
			if !core.StringInSlice(a.ID, m.AttendeeIDs) {
				added = append(added, a)
			}
		}
		m.AttendeeIDs = userIDs(attendees)
	}
	m = um.apply(m)
	m.UpdatedAt = time.Now().UTC()
	if m, err = svc.repo.UpdateMeeting(ctx, m); err != nil {
		return Meeting{}, errors.Wrap(err, "updating meeting")
	}

	if len(added) > 0 {
		organizer := usr
		if m.OrganizerID != usr.ID {
			if organizer, err = svc.users.GetByID(ctx, m.OrganizerID); err != nil {
				organizer = usr
			}
		}
		svc.sendInvitations(m, organizer, added)
	}
	return m, nil
}

func (svc *service) Delete(ctx context.Context, usr user.User, id string) error {
	m, err := svc.Get(ctx, usr, id)
	if err != nil {
		return err
	}
	if !m.EditableBy(usr) {
		return core.ErrPermissionDenied
	}
	return errors.Wrap(svc.repo.DeleteMeeting(ctx, m.ID), "deleting meeting")
}

// attendees returns the existing users among ids, the organizer excluded, in the given order.
func (svc *service) attendees(ctx context.Context, organizerID string, ids []string) ([]user.User, error) {
	ids = core.CleanStrings(ids)
	filtered := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != organizerID {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == 0 {
		return []user.User{}, nil
	}

	users, err := svc.users.GetMany(ctx, filtered)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, core.NewFieldError("attendee_ids", errUnknownUsers)
		}
		return nil, errors.Wrap(err, "getting attendees")
	}
	byID := make(map[string]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	ordered := make([]user.User, 0, len(filtered))
	for _, id := range filtered {
		ordered = append(ordered, byID[id])
	}
	return ordered, nil
}

func (svc *service) sendInvitations(m Meeting, organizer user.User, attendees []user.User) {
	ics := ICalendar(m, organizer.DisplayName(), organizer.Email, icsProdID)
	data := map[string]string{
		"ID":          m.ID,
		"Title":       m.Title,
		"Organizer":   organizer.DisplayName(),
		"Start":       formatWhen(m.StartTime),
		"End":         formatWhen(m.EndTime),
		"Location":    m.Location,
		"Description": m.Description,
	}

	messages := make([]*core.EmailMessage, 0, len(attendees))
	for _, a := range attendees {
		if a.Email == "" {
			continue
		}
		msg := &core.EmailMessage{
			To:           []mail.Address{{Name: a.Name, Address: a.Email}},
			Subject:      "Invitation: " + m.Title,
			TemplateName: "meeting_invitation",
			TemplateData: data,
		}
		_ = msg.Attach(strings.NewReader(ics), "invite.ics", "text/calendar")
		messages = append(messages, msg)
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
}

func userIDs(users []user.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}
