// Package dashboard aggregates the other domains for the home page & the managers workload view.
package dashboard

import (
	"context"
	"sort"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/course"
	"github.com/Cherif0104/EcosystIA-sub000/core/meeting"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
)

const (
	upcomingMeetingsDays = 7
	myTasksLimit         = 5
	noRole               = ""
	noRoleName           = "No role"
)

var errPeriod = "the start of the period cannot be after its end"

type (
	Overview struct {
		ProjectCount     int               `json:"project_count"`
		ProjectsByStatus map[string]int    `json:"projects_by_status"`
		OpenTasks        int               `json:"open_tasks"`
		OverdueTasks     int               `json:"overdue_tasks"`
		NextTasks        []project.Task    `json:"next_tasks"`
		UpcomingMeetings []meeting.Meeting `json:"upcoming_meetings"`
		MinutesThisWeek  int               `json:"minutes_this_week"`
		Enrollments      []course.Progress `json:"enrollments"`
	}

	UserWorkload struct {
		UserID         string  `json:"user_id"`
		Name           string  `json:"name"`
		OpenTasks      int     `json:"open_tasks"`
		OverdueTasks   int     `json:"overdue_tasks"`
		EstimatedHours float64 `json:"estimated_hours"`
		LoggedMinutes  int     `json:"logged_minutes"`
	}

	RoleWorkload struct {
		Role     string         `json:"role"`
		RoleName string         `json:"role_name"`
		Users    []UserWorkload `json:"users"`
		Totals   UserWorkload   `json:"totals"`
	}

	Workload struct {
		From  core.Date      `json:"from"`
		To    core.Date      `json:"to"`
		Roles []RoleWorkload `json:"roles"`
	}

	Service interface {
		Overview(ctx context.Context, usr user.User) (Overview, error)
		// Workload is restricted to admins & managers. Zero dates default to the current week.
		Workload(ctx context.Context, usr user.User, from, to core.Date) (Workload, error)
	}

	service struct {
		users    user.Service
		projects project.Service
		courses  course.Service
		timelogs timelog.Service
		meetings meeting.Service
	}
)

var _ Service = (*service)(nil)

func NewService(
	users user.Service,
	projects project.Service,
	courses course.Service,
	timelogs timelog.Service,
	meetings meeting.Service,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(projects, "projects"),
		vala.IsNotNil(courses, "courses"),
		vala.IsNotNil(timelogs, "timelogs"),
		vala.IsNotNil(meetings, "meetings"),
	).CheckAndPanic()

	return &service{users: users, projects: projects, courses: courses, timelogs: timelogs, meetings: meetings}
}

// WeekStart returns the Monday of the week of d.
func WeekStart(d core.Date) core.Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

func (svc *service) Overview(ctx context.Context, usr user.User) (Overview, error) {
	today := core.Today()
	ov := Overview{ProjectsByStatus: make(map[string]int, len(project.Statuses))}
	for _, st := range project.Statuses {
		ov.ProjectsByStatus[st] = 0
	}

	projects, err := svc.projects.Query(ctx, usr, nil, nil)
	if err != nil {
		return Overview{}, errors.Wrap(err, "overview projects")
	}
	ov.ProjectCount = len(projects)
	for _, p := range projects {
		ov.ProjectsByStatus[p.Status]++
	}

	tasks, err := svc.projects.QueryTasks(ctx, usr, &project.TaskFilter{AssigneeID: usr.ID, Today: today}, nil)
	if err != nil {
		return Overview{}, errors.Wrap(err, "overview tasks")
	}
	ov.NextTasks = make([]project.Task, 0, myTasksLimit)
	for _, t := range tasks {
		if t.IsDone() {
			continue
		}
		ov.OpenTasks++
		if t.IsOverdue(today) {
			ov.OverdueTasks++
		}
		if len(ov.NextTasks) < myTasksLimit {
			ov.NextTasks = append(ov.NextTasks, t)
		}
	}

	now := core.NowFunc().UTC()
	upcoming := true
	ov.UpcomingMeetings, err = svc.meetings.Query(ctx, usr, &meeting.QueryFilter{
		To:        now.AddDate(0, 0, upcomingMeetingsDays),
		Upcoming:  &upcoming,
		VisibleTo: usr.ID,
		Now:       now,
	}, nil)
	if err != nil {
		return Overview{}, errors.Wrap(err, "overview meetings")
	}

	logs, err := svc.timelogs.Query(ctx, usr, &timelog.QueryFilter{
		UserIDs: []string{usr.ID},
		From:    WeekStart(today),
		To:      today,
	}, nil)
	if err != nil {
		return Overview{}, errors.Wrap(err, "overview time logs")
	}
	for _, tl := range logs {
		ov.MinutesThisWeek += tl.DurationMinutes
	}

	if ov.Enrollments, err = svc.courses.ListEnrollments(ctx, usr); err != nil {
		return Overview{}, errors.Wrap(err, "overview enrollments")
	}
	return ov, nil
}

func (svc *service) Workload(ctx context.Context, usr user.User, from, to core.Date) (Workload, error) {
	if !usr.SeesEverything() {
		return Workload{}, core.ErrPermissionDenied
	}
	today := core.Today()
	if from.IsZero() {
		from = WeekStart(today)
	}
	if to.IsZero() {
		to = today
	}
	if from.After(to) {
		return Workload{}, core.NewFieldError("from", errPeriod)
	}

	active := true
	users, err := svc.users.Query(ctx, &user.QueryFilter{IsActive: &active}, nil)
	if err != nil {
		return Workload{}, errors.Wrap(err, "workload users")
	}
	tasks, err := svc.projects.QueryTasks(ctx, usr, &project.TaskFilter{Today: today}, nil)
	if err != nil {
		return Workload{}, errors.Wrap(err, "workload tasks")
	}
	logs, err := svc.timelogs.Query(ctx, usr, &timelog.QueryFilter{From: from, To: to}, nil)
	if err != nil {
		return Workload{}, errors.Wrap(err, "workload time logs")
	}
	return Workload{From: from, To: to, Roles: aggregateWorkload(users, tasks, logs, today)}, nil
}

// aggregateWorkload groups users by primary role (highest priority first);
// users are sorted by logged minutes (descending) then by name.
func aggregateWorkload(users []user.User, tasks []project.Task, logs []timelog.TimeLog, today core.Date) []RoleWorkload {
	perUser := make(map[string]*UserWorkload, len(users))
	for _, u := range users {
		perUser[u.ID] = &UserWorkload{UserID: u.ID, Name: u.DisplayName()}
	}
	for _, t := range tasks {
		uw, ok := perUser[t.AssigneeID]
		if !ok || t.IsDone() {
			continue
		}
		uw.OpenTasks++
		uw.EstimatedHours += t.EstimatedHours
		if t.IsOverdue(today) {
			uw.OverdueTasks++
		}
	}
	for _, tl := range logs {
		if uw, ok := perUser[tl.UserID]; ok {
			uw.LoggedMinutes += tl.DurationMinutes
		}
	}

	byRole := make(map[string]*RoleWorkload)
	for _, u := range users {
		role := u.PrimaryRole()
		rw, ok := byRole[role]
		if !ok {
			name := noRoleName
			if role != noRole {
				name = user.RoleName(role)
			}
			rw = &RoleWorkload{Role: role, RoleName: name, Users: []UserWorkload{}}
			byRole[role] = rw
		}
		uw := *perUser[u.ID]
		rw.Users = append(rw.Users, uw)
		rw.Totals.OpenTasks += uw.OpenTasks
		rw.Totals.OverdueTasks += uw.OverdueTasks
		rw.Totals.EstimatedHours += uw.EstimatedHours
		rw.Totals.LoggedMinutes += uw.LoggedMinutes
	}

	roles := make([]RoleWorkload, 0, len(byRole))
	for _, rw := range byRole {
		sort.SliceStable(rw.Users, func(i, j int) bool {
			a, b := rw.Users[i], rw.Users[j]
			if a.LoggedMinutes != b.LoggedMinutes {
				return a.LoggedMinutes > b.LoggedMinutes
			}
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		})
		rw.Totals.Name = rw.RoleName
		roles = append(roles, *rw)
	}
	sort.Slice(roles, func(i, j int) bool {
		return user.RolePriority(roles[i].Role) > user.RolePriority(roles[j].Role)
	})
	return roles
}
