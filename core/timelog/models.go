package timelog

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
)

// Entity types
const (
	EntityProject = "project"
	EntityCourse  = "course"
	EntityTask    = "task"
)

// Summary groupings
const (
	GroupByDay    = "day"
	GroupByEntity = "entity"
	GroupByUser   = "user"
)

const (
	MinDuration = 1
	MaxDuration = 24 * 60
)

var (
	EntityTypes = []string{EntityProject, EntityCourse, EntityTask}
	GroupBys    = []string{GroupByDay, GroupByEntity, GroupByUser}

	errDateRequired = "this field is required"
	errFutureDate   = "date cannot be in the future"
)

type TimeLog struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	EntityType      string    `json:"entity_type"`
	EntityID        string    `json:"entity_id"`
	EntityTitle     string    `json:"entity_title"`
	Date            core.Date `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC
}

func (tl TimeLog) VisibleTo(usr user.User) bool {
	return tl.UserID == usr.ID || usr.SeesEverything()
}

func (tl TimeLog) EditableBy(usr user.User) bool {
	return tl.UserID == usr.ID || usr.IsAdmin()
}

// NewTimeLog contains information needed to create a new TimeLog.
type NewTimeLog struct {
	EntityType      string    `json:"entity_type" validate:"required,oneof=project course task"`
	EntityID        string    `json:"entity_id" validate:"required"`
	Date            core.Date `json:"date"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gte=1,lte=1440"`
	Description     string    `json:"description" validate:"max=1000"`
}

func (nt *NewTimeLog) Validate(validate *validator.Validate) error {
	nt.EntityType = core.CleanString(nt.EntityType, true /* lower */)
	nt.EntityID = core.CleanString(nt.EntityID)
	nt.Description = core.CleanString(nt.Description)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return validateDate(nt.Date)
}

// UpdateTimeLog defines what information may be provided to modify an existing TimeLog.
type UpdateTimeLog struct {
	Date            *core.Date `json:"date"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gte=1,lte=1440"`
	Description     *string    `json:"description" validate:"omitempty,max=1000"`
}

func (ut *UpdateTimeLog) Validate(validate *validator.Validate) error {
	if ut.Description != nil {
		desc := core.CleanString(*ut.Description)
		ut.Description = &desc
	}
	if err := validate.Struct(ut); err != nil {
		return err
	}
	if ut.Date != nil {
		return validateDate(*ut.Date)
	}
	return nil
}

func (ut UpdateTimeLog) apply(tl TimeLog) TimeLog {
	if ut.Date != nil {
		tl.Date = *ut.Date
	}
	if ut.DurationMinutes != nil {
		tl.DurationMinutes = *ut.DurationMinutes
	}
	if ut.Description != nil {
		tl.Description = *ut.Description
	}
	return tl
}

func validateDate(d core.Date) error {
	if d.IsZero() {
		return core.NewFieldError("date", errDateRequired)
	}
	if d.After(core.Today()) {
		return core.NewFieldError("date", errFutureDate)
	}
	return nil
}

// QueryFilter filters time logs; From & To are inclusive.
type QueryFilter struct {
	UserIDs    []string  `query:"user"`
	EntityType string    `query:"entity_type"`
	EntityID   string    `query:"entity_id"`
	From       core.Date `query:"from"`
	To         core.Date `query:"to"`
	Search     string    `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.UserIDs = core.CleanStrings(qf.UserIDs)
	qf.EntityType = core.CleanString(qf.EntityType, true /* lower */)
	qf.EntityID = core.CleanString(qf.EntityID)
	qf.Search = core.CleanString(qf.Search)
}

func (qf *QueryFilter) Matches(tl TimeLog) bool {
	if qf == nil {
		return true
	}
	if len(qf.UserIDs) > 0 && !core.StringInSlice(tl.UserID, qf.UserIDs) {
		return false
	}
	if qf.EntityType != "" && tl.EntityType != qf.EntityType {
		return false
	}
	if qf.EntityID != "" && tl.EntityID != qf.EntityID {
		return false
	}
	if !qf.From.IsZero() && tl.Date.Before(qf.From) {
		return false
	}
	if !qf.To.IsZero() && tl.Date.After(qf.To) {
		return false
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(tl.Description), s) ||
			strings.Contains(strings.ToLower(tl.EntityTitle), s)) {
			return false
		}
	}
	return true
}

// SummaryRow aggregates the logs of a group.
type SummaryRow struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	EntityType   string `json:"entity_type,omitempty"`
	TotalMinutes int    `json:"total_minutes"`
	Count        int    `json:"count"`
}

type Summary struct {
	GroupBy      string       `json:"group_by"`
	Rows         []SummaryRow `json:"rows"`
	TotalMinutes int          `json:"total_minutes"`
	Count        int          `json:"count"`
}

// Summarize groups logs by day (chronological), entity or user (most minutes first).
// userNames maps user IDs to display names, used as labels when grouping by user.
func Summarize(logs []TimeLog, groupBy string, userNames map[string]string) Summary {
	sum := Summary{GroupBy: groupBy, Rows: []SummaryRow{}}
	idx := make(map[string]int)
	for _, tl := range logs {
		var row SummaryRow
		switch groupBy {
		case GroupByEntity:
			row = SummaryRow{Key: tl.EntityType + ":" + tl.EntityID, Label: tl.EntityTitle, EntityType: tl.EntityType}
		case GroupByUser:
			label, ok := userNames[tl.UserID]
			if !ok {
				label = tl.UserID
			}
			row = SummaryRow{Key: tl.UserID, Label: label}
		default:
			row = SummaryRow{Key: tl.Date.String(), Label: tl.Date.String()}
		}

		i, ok := idx[row.Key]
		if !ok {
			i = len(sum.Rows)
			idx[row.Key] = i
			sum.Rows = append(sum.Rows, row)
		}
		sum.Rows[i].TotalMinutes += tl.DurationMinutes
		sum.Rows[i].Count++
		sum.TotalMinutes += tl.DurationMinutes
		sum.Count++
	}

	sort.SliceStable(sum.Rows, func(i, j int) bool {
		a, b := sum.Rows[i], sum.Rows[j]
		if groupBy == GroupByDay || groupBy == "" {
			return a.Key < b.Key
		}
		if a.TotalMinutes != b.TotalMinutes {
			return a.TotalMinutes > b.TotalMinutes
		}
		return strings.ToLower(a.Label) < strings.ToLower(b.Label)
	})
	if sum.GroupBy == "" {
		sum.GroupBy = GroupByDay
	}
	return sum
}

// OrderingFields are the fields time logs can be ordered by.
var OrderingFields = []string{"date", "duration_minutes", "entity_type", "created_at", "updated_at"}

// SortTimeLogs sorts in place; the default order is `-date,-created_at`.
func SortTimeLogs(logs []TimeLog, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "date"}, {Field: "created_at"}}
	}
	sort.SliceStable(logs, func(i, j int) bool {
		a, b := logs[i], logs[j]
		for _, ord := range ordering {
			var c int
			switch ord.Field {
			case "date":
				c = core.CompareTimes(a.Date.Time, b.Date.Time)
			case "duration_minutes":
				c = core.CompareInts(a.DurationMinutes, b.DurationMinutes)
			case "entity_type":
				c = strings.Compare(a.EntityType, b.EntityType)
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
