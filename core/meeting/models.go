package meeting

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
)

var (
	errEndBeforeStart = "end time must be after start time"
	errTimeRequired   = "this field is required"
)

type Meeting struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"` // UTC
	EndTime     time.Time `json:"end_time"`   // UTC
	Location    string    `json:"location"`
	OrganizerID string    `json:"organizer_id"`
	AttendeeIDs []string  `json:"attendee_ids"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (m Meeting) IsParticipant(userID string) bool {
	return userID != "" && (m.OrganizerID == userID || core.StringInSlice(userID, m.AttendeeIDs))
}

func (m Meeting) VisibleTo(usr user.User) bool {
	return usr.SeesEverything() || m.IsParticipant(usr.ID)
}

func (m Meeting) EditableBy(usr user.User) bool {
	return m.OrganizerID == usr.ID || usr.IsAdmin()
}

func (m Meeting) Duration() time.Duration { return m.EndTime.Sub(m.StartTime) }

// NewMeeting contains information needed to create a new Meeting.
type NewMeeting struct {
	Title       string    `json:"title" validate:"required,notblank,max=255"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Location    string    `json:"location" validate:"max=255"`
	AttendeeIDs []string  `json:"attendee_ids"`
}

func (nm *NewMeeting) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	nm.Location = core.CleanString(nm.Location)
	nm.AttendeeIDs = core.CleanStrings(nm.AttendeeIDs)
	nm.StartTime = nm.StartTime.UTC()
	nm.EndTime = nm.EndTime.UTC()

	if err := validate.Struct(nm); err != nil {
		return err
	}
	return validateTimes(nm.StartTime, nm.EndTime)
}

// UpdateMeeting defines what information may be provided to modify an existing Meeting.
// A non-nil AttendeeIDs replaces the attendee list.
type UpdateMeeting struct {
	Title       string     `json:"title" validate:"max=255"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Location    *string    `json:"location" validate:"omitempty,max=255"`
	AttendeeIDs []string   `json:"attendee_ids"`
}

func (um *UpdateMeeting) Validate(orig Meeting, validate *validator.Validate) error {
	um.Title = core.CleanString(um.Title)
	if um.Description != nil {
		desc := core.CleanString(*um.Description)
		um.Description = &desc
	}
	if um.Location != nil {
		loc := core.CleanString(*um.Location)
		um.Location = &loc
	}
	if um.AttendeeIDs != nil {
		um.AttendeeIDs = core.CleanStrings(um.AttendeeIDs)
	}

	if err := validate.Struct(um); err != nil {
		return err
	}
	start, end := orig.StartTime, orig.EndTime
	if um.StartTime != nil {
		start = um.StartTime.UTC()
	}
	if um.EndTime != nil {
		end = um.EndTime.UTC()
	}
	return validateTimes(start, end)
}

func (um UpdateMeeting) apply(m Meeting) Meeting {
	if um.Title != "" {
		m.Title = um.Title
	}
	if um.Description != nil {
		m.Description = *um.Description
	}
	if um.StartTime != nil {
		m.StartTime = um.StartTime.UTC()
	}
	if um.EndTime != nil {
		m.EndTime = um.EndTime.UTC()
	}
	if um.Location != nil {
		m.Location = *um.Location
	}
	return m
}

func validateTimes(start, end time.Time) error {
	switch {
	case start.IsZero():
		return core.NewFieldError("start_time", errTimeRequired)
	case end.IsZero():
		return core.NewFieldError("end_time", errTimeRequired)
	case !end.After(start):
		return core.NewFieldError("end_time", errEndBeforeStart)
	}
	return nil
}

// QueryFilter filters meetings; From & To bound the meetings start time.
type QueryFilter struct {
	From        time.Time `query:"-"` // `from` & `to` are parsed by the API
	To          time.Time `query:"-"`
	AttendeeID  string    `query:"attendee"`
	OrganizerID string    `query:"organizer"`
	Search      string    `query:"search"`
	Upcoming    *bool     `query:"upcoming"` // not ended yet
	VisibleTo   string    `query:"-"`        // organized or attended by this user ID
	Now         time.Time `query:"-"`        // reference time for Upcoming
}

func (qf *QueryFilter) Clean() {
	qf.AttendeeID = core.CleanString(qf.AttendeeID)
	qf.OrganizerID = core.CleanString(qf.OrganizerID)
	qf.Search = core.CleanString(qf.Search)
}

func (qf *QueryFilter) Matches(m Meeting) bool {
	if qf == nil {
		return true
	}
	if !qf.From.IsZero() && m.StartTime.Before(qf.From) {
		return false
	}
	if !qf.To.IsZero() && m.StartTime.After(qf.To) {
		return false
	}
	if qf.AttendeeID != "" && !core.StringInSlice(qf.AttendeeID, m.AttendeeIDs) {
		return false
	}
	if qf.OrganizerID != "" && m.OrganizerID != qf.OrganizerID {
		return false
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(m.Title), s) ||
			strings.Contains(strings.ToLower(m.Description), s) ||
			strings.Contains(strings.ToLower(m.Location), s)) {
			return false
		}
	}
	if qf.Upcoming != nil && m.EndTime.After(qf.Now) != *qf.Upcoming {
		return false
	}
	if qf.VisibleTo != "" && !m.IsParticipant(qf.VisibleTo) {
		return false
	}
	return true
}

// OrderingFields are the fields meetings can be ordered by.
var OrderingFields = []string{"title", "start_time", "end_time", "created_at", "updated_at"}

// SortMeetings sorts in place; the default order is `start_time`.
func SortMeetings(meetings []Meeting, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "start_time", Ascending: true}}
	}
	sort.SliceStable(meetings, func(i, j int) bool {
		a, b := meetings[i], meetings[j]
		for _, ord := range ordering {
			var c int
			switch ord.Field {
			case "title":
				c = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
			case "start_time":
				c = core.CompareTimes(a.StartTime, b.StartTime)
			case "end_time":
				c = core.CompareTimes(a.EndTime, b.EndTime)
			case "created_at":
				c = core.CompareTimes(a.CreatedAt, b.CreatedAt)
			case "updated_at":
				c = core.CompareTimes(a.UpdatedAt, b.UpdatedAt)
			}
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}
