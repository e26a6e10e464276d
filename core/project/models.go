package project

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
)

// Project statuses
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusOnHold     = "on_hold"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Priorities (projects & tasks)
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Task statuses
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskReview     = "review"
	TaskDone       = "done"
)

// Risk levels & statuses
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"

	RiskOpen      = "open"
	RiskMitigated = "mitigated"
	RiskClosed    = "closed"
)

var (
	Statuses     = []string{StatusNotStarted, StatusInProgress, StatusOnHold, StatusCompleted, StatusCancelled}
	Priorities   = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
	TaskStatuses = []string{TaskTodo, TaskInProgress, TaskReview, TaskDone}
	RiskLevels   = []string{LevelLow, LevelMedium, LevelHigh}
	RiskStatuses = []string{RiskOpen, RiskMitigated, RiskClosed}

	priorityRanks = map[string]int{PriorityLow: 1, PriorityMedium: 2, PriorityHigh: 3, PriorityCritical: 4}
	levelRanks    = map[string]int{LevelLow: 1, LevelMedium: 2, LevelHigh: 3}
)

func PriorityRank(priority string) int { return priorityRanks[priority] }
func LevelRank(level string) int       { return levelRanks[level] }

type Project struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	StartDate     *core.Date `json:"start_date"`
	DueDate       *core.Date `json:"due_date"`
	OwnerID       string     `json:"owner_id"`
	TeamMemberIDs []string   `json:"team_member_ids"`
	CreatedAt     time.Time  `json:"created_at"` // UTC
	UpdatedAt     time.Time  `json:"updated_at"` // UTC
}

// IsMember reports whether the user owns the project or is part of its team.
func (p Project) IsMember(userID string) bool {
	return userID != "" && (p.OwnerID == userID || core.StringInSlice(userID, p.TeamMemberIDs))
}

func (p Project) VisibleTo(usr user.User) bool {
	return usr.SeesEverything() || p.IsMember(usr.ID)
}

func (p Project) EditableBy(usr user.User) bool {
	return usr.SeesEverything() || p.OwnerID == usr.ID
}

func (p Project) DeletableBy(usr user.User) bool {
	return usr.IsAdmin() || p.OwnerID == usr.ID
}

// CanCreateProject: admins, managers & trainers.
func CanCreateProject(usr user.User) bool {
	return usr.SeesEverything() || usr.IsTrainer()
}

type Task struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssigneeID     string     `json:"assignee_id"`
	DueDate        *core.Date `json:"due_date"`
	EstimatedHours float64    `json:"estimated_hours"`
	CreatedAt      time.Time  `json:"created_at"` // UTC
	UpdatedAt      time.Time  `json:"updated_at"` // UTC
}

func (t Task) IsDone() bool { return t.Status == TaskDone }

// IsOverdue: not done and due strictly before `today`.
func (t Task) IsOverdue(today core.Date) bool {
	return !t.IsDone() && t.DueDate != nil && !t.DueDate.IsZero() && t.DueDate.Before(today)
}

type Risk struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Likelihood     string    `json:"likelihood"`
	Impact         string    `json:"impact"`
	Status         string    `json:"status"`
	OwnerID        string    `json:"owner_id"`
	MitigationPlan string    `json:"mitigation_plan"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// Score is likelihood x impact, from 1 to 9.
func (r Risk) Score() int {
	return LevelRank(r.Likelihood) * LevelRank(r.Impact)
}

// RiskJSON adds the computed score to the Risk representation.
type RiskJSON struct {
	Risk
	Score int `json:"score"`
}

func (r Risk) JSON() RiskJSON { return RiskJSON{Risk: r, Score: r.Score()} }

func RisksJSON(risks []Risk) []RiskJSON {
	out := make([]RiskJSON, 0, len(risks))
	for _, r := range risks {
		out = append(out, r.JSON())
	}
	return out
}

// Detail is a Project along with its tasks, risks & computed stats.
type Detail struct {
	Project
	Tasks        []Task     `json:"tasks"`
	Risks        []RiskJSON `json:"risks"`
	Progress     int        `json:"progress"` // % of done tasks
	OverdueTasks int        `json:"overdue_tasks"`
}

// Progress returns the percentage (rounded down) of done tasks; 0 without tasks.
func Progress(tasks []Task) int {
	if len(tasks) == 0 {
		return 0
	}
	var done int
	for _, t := range tasks {
		if t.IsDone() {
			done++
		}
	}
	return done * 100 / len(tasks)
}

func CountOverdue(tasks []Task, today core.Date) int {
	var cnt int
	for _, t := range tasks {
		if t.IsOverdue(today) {
			cnt++
		}
	}
	return cnt
}

// NewProject contains information needed to create a new Project.
type NewProject struct {
	Name          string     `json:"name" validate:"required,notblank,max=255"`
	Description   string     `json:"description"`
	Status        string     `json:"status" validate:"omitempty,oneof=not_started in_progress on_hold completed cancelled"`
	Priority      string     `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	StartDate     *core.Date `json:"start_date"`
	DueDate       *core.Date `json:"due_date"`
	TeamMemberIDs []string   `json:"team_member_ids"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)
	np.Status = core.CleanString(np.Status, true /* lower */)
	np.Priority = core.CleanString(np.Priority, true /* lower */)
	np.TeamMemberIDs = core.CleanStrings(np.TeamMemberIDs)

	if err := validate.Struct(np); err != nil {
		return err
	}
	return validateDates(np.StartDate, np.DueDate)
}

// UpdateProject defines what information may be provided to modify an existing Project.
// Empty values keep the current ones.
type UpdateProject struct {
	Name          string     `json:"name" validate:"max=255"`
	Description   *string    `json:"description"`
	Status        string     `json:"status" validate:"omitempty,oneof=not_started in_progress on_hold completed cancelled"`
	Priority      string     `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	StartDate     *core.Date `json:"start_date"`
	DueDate       *core.Date `json:"due_date"`
	OwnerID       string     `json:"owner_id"`
	TeamMemberIDs []string   `json:"team_member_ids"`
}

func (up *UpdateProject) Validate(orig Project, validate *validator.Validate) error {
	up.Name = core.CleanString(up.Name)
	up.Status = core.CleanString(up.Status, true /* lower */)
	up.Priority = core.CleanString(up.Priority, true /* lower */)
	up.OwnerID = core.CleanString(up.OwnerID)
	if up.TeamMemberIDs != nil {
		up.TeamMemberIDs = core.CleanStrings(up.TeamMemberIDs)
	}
	if up.Description != nil {
		desc := core.CleanString(*up.Description)
		up.Description = &desc
	}

	if err := validate.Struct(up); err != nil {
		return err
	}
	start, due := orig.StartDate, orig.DueDate
	if up.StartDate != nil {
		start = up.StartDate
	}
	if up.DueDate != nil {
		due = up.DueDate
	}
	return validateDates(start, due)
}

func (up UpdateProject) apply(p Project) Project {
	if up.Name != "" {
		p.Name = up.Name
	}
	if up.Description != nil {
		p.Description = *up.Description
	}
	if up.Status != "" {
		p.Status = up.Status
	}
	if up.Priority != "" {
		p.Priority = up.Priority
	}
	if up.StartDate != nil {
		p.StartDate = nilIfZero(up.StartDate)
	}
	if up.DueDate != nil {
		p.DueDate = nilIfZero(up.DueDate)
	}
	if up.OwnerID != "" {
		p.OwnerID = up.OwnerID
	}
	if up.TeamMemberIDs != nil {
		p.TeamMemberIDs = up.TeamMemberIDs
	}
	return p
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	Title          string     `json:"title" validate:"required,notblank,max=255"`
	Description    string     `json:"description"`
	Status         string     `json:"status" validate:"omitempty,oneof=todo in_progress review done"`
	Priority       string     `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	AssigneeID     string     `json:"assignee_id"`
	DueDate        *core.Date `json:"due_date"`
	EstimatedHours float64    `json:"estimated_hours" validate:"gte=0,lte=10000"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.Status = core.CleanString(nt.Status, true /* lower */)
	nt.Priority = core.CleanString(nt.Priority, true /* lower */)
	nt.AssigneeID = core.CleanString(nt.AssigneeID)
	return validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an existing Task.
// Empty values keep the current ones; AssigneeID "-" unassigns the task.
type UpdateTask struct {
	Title          string     `json:"title" validate:"max=255"`
	Description    *string    `json:"description"`
	Status         string     `json:"status" validate:"omitempty,oneof=todo in_progress review done"`
	Priority       string     `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	AssigneeID     string     `json:"assignee_id"`
	DueDate        *core.Date `json:"due_date"`
	EstimatedHours *float64   `json:"estimated_hours" validate:"omitempty,gte=0,lte=10000"`
}

const unassign = "-"

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	ut.Title = core.CleanString(ut.Title)
	ut.Status = core.CleanString(ut.Status, true /* lower */)
	ut.Priority = core.CleanString(ut.Priority, true /* lower */)
	ut.AssigneeID = core.CleanString(ut.AssigneeID)
	if ut.Description != nil {
		desc := core.CleanString(*ut.Description)
		ut.Description = &desc
	}
	return validate.Struct(ut)
}

func (ut UpdateTask) apply(t Task) Task {
	if ut.Title != "" {
		t.Title = ut.Title
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.Status != "" {
		t.Status = ut.Status
	}
	if ut.Priority != "" {
		t.Priority = ut.Priority
	}
	switch ut.AssigneeID {
	case "":
	case unassign:
		t.AssigneeID = ""
	default:
		t.AssigneeID = ut.AssigneeID
	}
	if ut.DueDate != nil {
		t.DueDate = nilIfZero(ut.DueDate)
	}
	if ut.EstimatedHours != nil {
		t.EstimatedHours = *ut.EstimatedHours
	}
	return t
}

// NewRisk contains information needed to create a new Risk.
type NewRisk struct {
	Title          string `json:"title" validate:"required,notblank,max=255"`
	Description    string `json:"description"`
	Likelihood     string `json:"likelihood" validate:"required,oneof=low medium high"`
	Impact         string `json:"impact" validate:"required,oneof=low medium high"`
	Status         string `json:"status" validate:"omitempty,oneof=open mitigated closed"`
	OwnerID        string `json:"owner_id"`
	MitigationPlan string `json:"mitigation_plan"`
}

func (nr *NewRisk) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.Likelihood = core.CleanString(nr.Likelihood, true /* lower */)
	nr.Impact = core.CleanString(nr.Impact, true /* lower */)
	nr.Status = core.CleanString(nr.Status, true /* lower */)
	nr.OwnerID = core.CleanString(nr.OwnerID)
	nr.MitigationPlan = core.CleanString(nr.MitigationPlan)
	return validate.Struct(nr)
}

// UpdateRisk defines what information may be provided to modify an existing Risk.
type UpdateRisk struct {
	Title          string  `json:"title" validate:"max=255"`
	Description    *string `json:"description"`
	Likelihood     string  `json:"likelihood" validate:"omitempty,oneof=low medium high"`
	Impact         string  `json:"impact" validate:"omitempty,oneof=low medium high"`
	Status         string  `json:"status" validate:"omitempty,oneof=open mitigated closed"`
	OwnerID        string  `json:"owner_id"`
	MitigationPlan *string `json:"mitigation_plan"`
}

func (ur *UpdateRisk) Validate(validate *validator.Validate) error {
	ur.Title = core.CleanString(ur.Title)
	ur.Likelihood = core.CleanString(ur.Likelihood, true /* lower */)
	ur.Impact = core.CleanString(ur.Impact, true /* lower */)
	ur.Status = core.CleanString(ur.Status, true /* lower */)
	ur.OwnerID = core.CleanString(ur.OwnerID)
	return validate.Struct(ur)
}

func (ur UpdateRisk) apply(r Risk) Risk {
	if ur.Title != "" {
		r.Title = ur.Title
	}
	if ur.Description != nil {
		r.Description = core.CleanString(*ur.Description)
	}
	if ur.Likelihood != "" {
		r.Likelihood = ur.Likelihood
	}
	if ur.Impact != "" {
		r.Impact = ur.Impact
	}
	if ur.Status != "" {
		r.Status = ur.Status
	}
	if ur.OwnerID != "" {
		r.OwnerID = ur.OwnerID
	}
	if ur.MitigationPlan != nil {
		r.MitigationPlan = core.CleanString(*ur.MitigationPlan)
	}
	return r
}

func validateDates(start, due *core.Date) error {
	if start != nil && due != nil && !start.IsZero() && !due.IsZero() && due.Before(*start) {
		return core.NewFieldError("due_date", "due date cannot be before start date")
	}
	return nil
}

func nilIfZero(d *core.Date) *core.Date {
	if d == nil || d.IsZero() {
		return nil
	}
	return d
}

// QueryFilter filters projects. Multiple values of a field are OR'ed, fields are AND'ed.
type QueryFilter struct {
	Search     string    `query:"search"`
	Statuses   []string  `query:"status"`
	Priorities []string  `query:"priority"`
	OwnerID    string    `query:"owner"`
	MemberID   string    `query:"member"` // owner or team member
	DueFrom    core.Date `query:"due_from"`
	DueTo      core.Date `query:"due_to"`
	VisibleTo  string    `query:"-"` // restricts to projects owned by or shared with this user ID
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Statuses = core.CleanStrings(qf.Statuses, true /* lower */)
	qf.Priorities = core.CleanStrings(qf.Priorities, true /* lower */)
	qf.OwnerID = core.CleanString(qf.OwnerID)
	qf.MemberID = core.CleanString(qf.MemberID)
}

func (qf *QueryFilter) Matches(p Project) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" && !containsFold(qf.Search, p.Name, p.Description) {
		return false
	}
	if len(qf.Statuses) > 0 && !core.StringInSlice(p.Status, qf.Statuses) {
		return false
	}
	if len(qf.Priorities) > 0 && !core.StringInSlice(p.Priority, qf.Priorities) {
		return false
	}
	if qf.OwnerID != "" && p.OwnerID != qf.OwnerID {
		return false
	}
	if qf.MemberID != "" && !p.IsMember(qf.MemberID) {
		return false
	}
	if !dueInRange(p.DueDate, qf.DueFrom, qf.DueTo) {
		return false
	}
	if qf.VisibleTo != "" && !p.IsMember(qf.VisibleTo) {
		return false
	}
	return true
}

// TaskFilter filters tasks, across projects when ProjectID is empty.
type TaskFilter struct {
	ProjectID  string    `query:"-"`
	Search     string    `query:"search"`
	Statuses   []string  `query:"status"`
	Priorities []string  `query:"priority"`
	AssigneeID string    `query:"assignee"` // "me" is the acting user
	Overdue    *bool     `query:"overdue"`
	DueFrom    core.Date `query:"due_from"`
	DueTo      core.Date `query:"due_to"`
	VisibleTo  string    `query:"-"`
	Today      core.Date `query:"-"` // reference day for Overdue
}

func (tf *TaskFilter) Clean() {
	tf.Search = core.CleanString(tf.Search)
	tf.Statuses = core.CleanStrings(tf.Statuses, true /* lower */)
	tf.Priorities = core.CleanStrings(tf.Priorities, true /* lower */)
	tf.AssigneeID = core.CleanString(tf.AssigneeID)
}

// Matches applies the filter on a single Task; VisibleTo must be checked against the Task's project.
func (tf *TaskFilter) Matches(t Task) bool {
	if tf == nil {
		return true
	}
	if tf.ProjectID != "" && t.ProjectID != tf.ProjectID {
		return false
	}
	if tf.Search != "" && !containsFold(tf.Search, t.Title, t.Description) {
		return false
	}
	if len(tf.Statuses) > 0 && !core.StringInSlice(t.Status, tf.Statuses) {
		return false
	}
	if len(tf.Priorities) > 0 && !core.StringInSlice(t.Priority, tf.Priorities) {
		return false
	}
	if tf.AssigneeID != "" && t.AssigneeID != tf.AssigneeID {
		return false
	}
	if tf.Overdue != nil && t.IsOverdue(tf.Today) != *tf.Overdue {
		return false
	}
	return dueInRange(t.DueDate, tf.DueFrom, tf.DueTo)
}

type RiskFilter struct {
	ProjectID string   `query:"-"`
	Search    string   `query:"search"`
	Statuses  []string `query:"status"`
	MinScore  int      `query:"min_score"`
}

func (rf *RiskFilter) Clean() {
	rf.Search = core.CleanString(rf.Search)
	rf.Statuses = core.CleanStrings(rf.Statuses, true /* lower */)
}

func (rf *RiskFilter) Matches(r Risk) bool {
	if rf == nil {
		return true
	}
	if rf.ProjectID != "" && r.ProjectID != rf.ProjectID {
		return false
	}
	if rf.Search != "" && !containsFold(rf.Search, r.Title, r.Description) {
		return false
	}
	if len(rf.Statuses) > 0 && !core.StringInSlice(r.Status, rf.Statuses) {
		return false
	}
	return r.Score() >= rf.MinScore
}

func containsFold(search string, values ...string) bool {
	s := strings.ToLower(search)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), s) {
			return true
		}
	}
	return false
}

func dueInRange(due *core.Date, from, to core.Date) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	if due == nil || due.IsZero() {
		return false
	}
	if !from.IsZero() && due.Before(from) {
		return false
	}
	if !to.IsZero() && due.After(to) {
		return false
	}
	return true
}

// Orderings
var (
	OrderingFields     = []string{"name", "status", "priority", "start_date", "due_date", "created_at", "updated_at"}
	TaskOrderingFields = []string{"title", "status", "priority", "due_date", "estimated_hours", "created_at", "updated_at"}
	RiskOrderingFields = []string{"title", "status", "score", "likelihood", "impact", "created_at", "updated_at"}
)

// SortProjects sorts in place; the default order is `-created_at`.
func SortProjects(projects []Project, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(projects, func(i, j int) bool {
		a, b := projects[i], projects[j]
		return less(ordering, func(field string) int {
			switch field {
			case "name":
				return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
			case "status":
				return strings.Compare(a.Status, b.Status)
			case "priority":
				return core.CompareInts(PriorityRank(a.Priority), PriorityRank(b.Priority))
			case "start_date":
				return compareDates(a.StartDate, b.StartDate)
			case "due_date":
				return compareDates(a.DueDate, b.DueDate)
			case "created_at":
				return core.CompareTimes(a.CreatedAt, b.CreatedAt)
			case "updated_at":
				return core.CompareTimes(a.UpdatedAt, b.UpdatedAt)
			}
			return 0
		})
	})
}

// SortTasks sorts in place; the default order is `due_date,-priority`.
func SortTasks(tasks []Task, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "due_date", Ascending: true}, {Field: "priority"}}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		return less(ordering, func(field string) int {
			switch field {
			case "title":
				return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
			case "status":
				return strings.Compare(a.Status, b.Status)
			case "priority":
				return core.CompareInts(PriorityRank(a.Priority), PriorityRank(b.Priority))
			case "due_date":
				return compareDates(a.DueDate, b.DueDate)
			case "estimated_hours":
				return compareFloats(a.EstimatedHours, b.EstimatedHours)
			case "created_at":
				return core.CompareTimes(a.CreatedAt, b.CreatedAt)
			case "updated_at":
				return core.CompareTimes(a.UpdatedAt, b.UpdatedAt)
			}
			return 0
		})
	})
}

// SortRisks sorts in place; the default order is `-score`.
func SortRisks(risks []Risk, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "score"}, {Field: "created_at", Ascending: true}}
	}
	sort.SliceStable(risks, func(i, j int) bool {
		a, b := risks[i], risks[j]
		return less(ordering, func(field string) int {
			switch field {
			case "title":
				return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
			case "status":
				return strings.Compare(a.Status, b.Status)
			case "score":
				return core.CompareInts(a.Score(), b.Score())
			case "likelihood":
				return core.CompareInts(LevelRank(a.Likelihood), LevelRank(b.Likelihood))
			case "impact":
				return core.CompareInts(LevelRank(a.Impact), LevelRank(b.Impact))
			case "created_at":
				return core.CompareTimes(a.CreatedAt, b.CreatedAt)
			case "updated_at":
				return core.CompareTimes(a.UpdatedAt, b.UpdatedAt)
			}
			return 0
		})
	})
}

func less(ordering []core.DBOrdering, cmp func(field string) int) bool {
	for _, ord := range ordering {
		c := cmp(ord.Field)
		if c == 0 {
			continue
		}
		if ord.Ascending {
			return c < 0
		}
		return c > 0
	}
	return false
}

// compareDates sorts missing dates last in ascending order (like postgres NULLs).
func compareDates(a, b *core.Date) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return core.CompareTimes(a.Time, b.Time)
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// UserLookup is the part of user.Service the project service relies on.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	GetMany(ctx context.Context, ids []string) ([]user.User, error)
}
