package project

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("project")
	ErrTaskNotFound = core.NewNotFoundError("task")
	ErrRiskNotFound = core.NewNotFoundError("risk")

	errUnknownUsers      = "unknown users"
	errAssigneeNotInTeam = "the assignee must be the project owner or a team member"
	errRisksProject      = errors.New("risks are queried per project")

	assigneeMe = "me"
)

type (
	Repository interface {
		CreateProject(ctx context.Context, p Project) (Project, error)
		// QueryProjects applies AND operation on available QueryFilter fields.
		QueryProjects(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Project, error)
		GetProject(ctx context.Context, id string) (Project, error)
		UpdateProject(ctx context.Context, p Project) (Project, error)
		// DeleteProject also deletes the project tasks & risks.
		DeleteProject(ctx context.Context, id string) error

		CreateTask(ctx context.Context, t Task) (Task, error)
		QueryTasks(ctx context.Context, filter *TaskFilter, ordering []core.DBOrdering) ([]Task, error)
		GetTask(ctx context.Context, id string) (Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		DeleteTask(ctx context.Context, id string) error

		CreateRisk(ctx context.Context, r Risk) (Risk, error)
		QueryRisks(ctx context.Context, filter *RiskFilter, ordering []core.DBOrdering) ([]Risk, error)
		GetRisk(ctx context.Context, id string) (Risk, error)
		UpdateRisk(ctx context.Context, r Risk) (Risk, error)
		DeleteRisk(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, usr user.User, np NewProject) (Project, error)
		Query(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Project, error)
		Get(ctx context.Context, usr user.User, id string) (Project, error)
		Detail(ctx context.Context, usr user.User, id string) (Detail, error)
		Update(ctx context.Context, usr user.User, id string, up UpdateProject) (Project, error)
		Delete(ctx context.Context, usr user.User, id string) error

		CreateTask(ctx context.Context, usr user.User, projectID string, nt NewTask) (Task, error)
		// QueryTasks queries tasks across the projects visible to usr.
		QueryTasks(ctx context.Context, usr user.User, filter *TaskFilter, ordering []core.DBOrdering) ([]Task, error)
		GetTask(ctx context.Context, usr user.User, id string) (Task, error)
		UpdateTask(ctx context.Context, usr user.User, id string, ut UpdateTask) (Task, error)
		DeleteTask(ctx context.Context, usr user.User, id string) error

		CreateRisk(ctx context.Context, usr user.User, projectID string, nr NewRisk) (Risk, error)
		QueryRisks(ctx context.Context, usr user.User, filter *RiskFilter, ordering []core.DBOrdering) ([]Risk, error)
		UpdateRisk(ctx context.Context, usr user.User, id string, ur UpdateRisk) (Risk, error)
		DeleteRisk(ctx context.Context, usr user.User, id string) error
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

// Projects

func (svc *service) Create(ctx context.Context, usr user.User, np NewProject) (Project, error) {
	if !CanCreateProject(usr) {
		return Project{}, core.ErrPermissionDenied
	}
	members := withoutID(np.TeamMemberIDs, usr.ID)
	if err := svc.checkUsersExist(ctx, "team_member_ids", members); err != nil {
		return Project{}, err
	}

	now := time.Now().UTC()
	p := Project{
		ID:            uuid.New().String(),
		Name:          np.Name,
		Description:   np.Description,
		Status:        defaultStr(np.Status, StatusNotStarted),
		Priority:      defaultStr(np.Priority, PriorityMedium),
		StartDate:     nilIfZero(np.StartDate),
		DueDate:       nilIfZero(np.DueDate),
		OwnerID:       usr.ID,
		TeamMemberIDs: members,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p, err := svc.repo.CreateProject(ctx, p)
	return p, errors.Wrap(err, "creating project")
}

func (svc *service) Query(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Project, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !usr.SeesEverything() {
		filter.VisibleTo = usr.ID
	}
	projects, err := svc.repo.QueryProjects(ctx, filter, core.CleanOrderings(ordering, OrderingFields))
	return projects, errors.Wrap(err, "querying projects")
}

// Get returns ErrNotFound for projects the user cannot see.
func (svc *service) Get(ctx context.Context, usr user.User, id string) (Project, error) {
	p, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if !p.VisibleTo(usr) {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (svc *service) Detail(ctx context.Context, usr user.User, id string) (Detail, error) {
	p, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Detail{}, err
	}
	tasks, err := svc.repo.QueryTasks(ctx, &TaskFilter{ProjectID: p.ID}, nil)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying project tasks")
	}
	risks, err := svc.repo.QueryRisks(ctx, &RiskFilter{ProjectID: p.ID}, nil)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying project risks")
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return Detail{
		Project:      p,
		Tasks:        tasks,
		Risks:        RisksJSON(risks),
		Progress:     Progress(tasks),
		OverdueTasks: CountOverdue(tasks, core.Today()),
	}, nil
}

func (svc *service) Update(ctx context.Context, usr user.User, id string, up UpdateProject) (Project, error) {
	p, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Project{}, err
	}
	if !p.EditableBy(usr) {
		return Project{}, core.ErrPermissionDenied
	}
	if up.OwnerID != "" && up.OwnerID != p.OwnerID {
		if !usr.SeesEverything() {
			return Project{}, core.ErrPermissionDenied
		}
		if err = svc.checkUsersExist(ctx, "owner_id", []string{up.OwnerID}); err != nil {
			return Project{}, err
		}
	}
	p = up.apply(p)
	if up.TeamMemberIDs != nil {
		p.TeamMemberIDs = withoutID(p.TeamMemberIDs, p.OwnerID)
		if err = svc.checkUsersExist(ctx, "team_member_ids", p.TeamMemberIDs); err != nil {
			return Project{}, err
		}
	}
	p.UpdatedAt = time.Now().UTC()
	if p, err = svc.repo.UpdateProject(ctx, p); err != nil {
		return Project{}, errors.Wrap(err, "updating project")
	}
	if up.OwnerID != "" || up.TeamMemberIDs != nil {
		if err = svc.unassignNonMembers(ctx, p); err != nil {
			return Project{}, err
		}
	}
	return p, nil
}

// unassignNonMembers clears the assignee of the tasks assigned to users who left the project.
func (svc *service) unassignNonMembers(ctx context.Context, p Project) error {
	tasks, err := svc.repo.QueryTasks(ctx, &TaskFilter{ProjectID: p.ID}, nil)
	if err != nil {
		return errors.Wrap(err, "querying project tasks")
	}
	for _, t := range tasks {
		if t.AssigneeID == "" || p.IsMember(t.AssigneeID) {
			continue
		}
		t.AssigneeID = ""
		t.UpdatedAt = p.UpdatedAt
		if _, err = svc.repo.UpdateTask(ctx, t); err != nil {
			return errors.Wrap(err, "unassigning task")
		}
	}
	return nil
}

func (svc *service) Delete(ctx context.Context, usr user.User, id string) error {
	p, err := svc.Get(ctx, usr, id)
	if err != nil {
		return err
	}
	if !p.DeletableBy(usr) {
		return core.ErrPermissionDenied
	}
	return errors.Wrap(svc.repo.DeleteProject(ctx, p.ID), "deleting project")
}

// Tasks

func (svc *service) CreateTask(ctx context.Context, usr user.User, projectID string, nt NewTask) (Task, error) {
	p, err := svc.Get(ctx, usr, projectID)
	if err != nil {
		return Task{}, err
	}
	if err = svc.checkAssignee(ctx, p, nt.AssigneeID); err != nil {
		return Task{}, err
	}

	now := time.Now().UTC()
	t := Task{
		ID:             uuid.New().String(),
		ProjectID:      p.ID,
		Title:          nt.Title,
		Description:    nt.Description,
		Status:         defaultStr(nt.Status, TaskTodo),
		Priority:       defaultStr(nt.Priority, PriorityMedium),
		AssigneeID:     nt.AssigneeID,
		DueDate:        nilIfZero(nt.DueDate),
		EstimatedHours: nt.EstimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if t, err = svc.repo.CreateTask(ctx, t); err != nil {
		return Task{}, errors.Wrap(err, "creating task")
	}
	if t.AssigneeID != "" && t.AssigneeID != usr.ID {
		svc.sendTaskAssignedMail(ctx, p, t)
	}
	return t, nil
}

func (svc *service) QueryTasks(ctx context.Context, usr user.User, filter *TaskFilter, ordering []core.DBOrdering) ([]Task, error) {
	if filter == nil {
		filter = new(TaskFilter)
	}
	if filter.AssigneeID == assigneeMe {
		filter.AssigneeID = usr.ID
	}
	if filter.ProjectID != "" {
		if _, err := svc.Get(ctx, usr, filter.ProjectID); err != nil {
			return nil, err
		}
	} else if !usr.SeesEverything() {
		filter.VisibleTo = usr.ID
	}
	if filter.Today.IsZero() {
		filter.Today = core.Today()
	}
	tasks, err := svc.repo.QueryTasks(ctx, filter, core.CleanOrderings(ordering, TaskOrderingFields))
	return tasks, errors.Wrap(err, "querying tasks")
}

// GetTask returns ErrTaskNotFound for tasks of projects the user cannot see.
func (svc *service) GetTask(ctx context.Context, usr user.User, id string) (Task, error) {
	t, _, err := svc.getTask(ctx, usr, id)
	return t, err
}

func (svc *service) getTask(ctx context.Context, usr user.User, id string) (Task, Project, error) {
	t, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, Project{}, err
	}
	p, err := svc.Get(ctx, usr, t.ProjectID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Task{}, Project{}, ErrTaskNotFound
		}
		return Task{}, Project{}, err
	}
	return t, p, nil
}

func (svc *service) UpdateTask(ctx context.Context, usr user.User, id string, ut UpdateTask) (Task, error) {
	t, p, err := svc.getTask(ctx, usr, id)
	if err != nil {
		return Task{}, err
	}
	prevAssignee := t.AssigneeID
	t = ut.apply(t)
	if t.AssigneeID != prevAssignee {
		if err = svc.checkAssignee(ctx, p, t.AssigneeID); err != nil {
			return Task{}, err
		}
	}
	t.UpdatedAt = time.Now().UTC()
	if t, err = svc.repo.UpdateTask(ctx, t); err != nil {
		return Task{}, errors.Wrap(err, "updating task")
	}
	if t.AssigneeID != "" && t.AssigneeID != prevAssignee && t.AssigneeID != usr.ID {
		svc.sendTaskAssignedMail(ctx, p, t)
	}
	return t, nil
}

func (svc *service) DeleteTask(ctx context.Context, usr user.User, id string) error {
	t, p, err := svc.getTask(ctx, usr, id)
	if err != nil {
		return err
	}
	if !p.EditableBy(usr) {
		return core.ErrPermissionDenied
	}
	return errors.Wrap(svc.repo.DeleteTask(ctx, t.ID), "deleting task")
}

// Risks

func (svc *service) CreateRisk(ctx context.Context, usr user.User, projectID string, nr NewRisk) (Risk, error) {
	p, err := svc.Get(ctx, usr, projectID)
	if err != nil {
		return Risk{}, err
	}
	ownerID := defaultStr(nr.OwnerID, usr.ID)
	if ownerID != usr.ID {
		if err = svc.checkUsersExist(ctx, "owner_id", []string{ownerID}); err != nil {
			return Risk{}, err
		}
	}

	now := time.Now().UTC()
	r := Risk{
		ID:             uuid.New().String(),
		ProjectID:      p.ID,
		Title:          nr.Title,
		Description:    nr.Description,
		Likelihood:     nr.Likelihood,
		Impact:         nr.Impact,
		Status:         defaultStr(nr.Status, RiskOpen),
		OwnerID:        ownerID,
		MitigationPlan: nr.MitigationPlan,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r, err = svc.repo.CreateRisk(ctx, r)
	return r, errors.Wrap(err, "creating risk")
}

func (svc *service) QueryRisks(ctx context.Context, usr user.User, filter *RiskFilter, ordering []core.DBOrdering) ([]Risk, error) {
	if filter == nil || filter.ProjectID == "" {
		return nil, errRisksProject
	}
	if _, err := svc.Get(ctx, usr, filter.ProjectID); err != nil {
		return nil, err
	}
	risks, err := svc.repo.QueryRisks(ctx, filter, core.CleanOrderings(ordering, RiskOrderingFields))
	return risks, errors.Wrap(err, "querying risks")
}

func (svc *service) getRisk(ctx context.Context, usr user.User, id string) (Risk, Project, error) {
	r, err := svc.repo.GetRisk(ctx, id)
	if err != nil {
		return Risk{}, Project{}, err
	}
	p, err := svc.Get(ctx, usr, r.ProjectID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Risk{}, Project{}, ErrRiskNotFound
		}
		return Risk{}, Project{}, err
	}
	return r, p, nil
}

func (svc *service) UpdateRisk(ctx context.Context, usr user.User, id string, ur UpdateRisk) (Risk, error) {
	r, _, err := svc.getRisk(ctx, usr, id)
	if err != nil {
		return Risk{}, err
	}
	if ur.OwnerID != "" && ur.OwnerID != r.OwnerID {
		if err = svc.checkUsersExist(ctx, "owner_id", []string{ur.OwnerID}); err != nil {
			return Risk{}, err
		}
	}
	r = ur.apply(r)
	r.UpdatedAt = time.Now().UTC()
	r, err = svc.repo.UpdateRisk(ctx, r)
	return r, errors.Wrap(err, "updating risk")
}

func (svc *service) DeleteRisk(ctx context.Context, usr user.User, id string) error {
	r, p, err := svc.getRisk(ctx, usr, id)
	if err != nil {
		return err
	}
	if !p.EditableBy(usr) {
		return core.ErrPermissionDenied
	}
	return errors.Wrap(svc.repo.DeleteRisk(ctx, r.ID), "deleting risk")
}

// helpers

func (svc *service) checkUsersExist(ctx context.Context, field string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := svc.users.GetMany(ctx, ids); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewFieldError(field, errUnknownUsers)
		}
		return errors.Wrap(err, "checking users")
	}
	return nil
}

func (svc *service) checkAssignee(ctx context.Context, p Project, assigneeID string) error {
	if assigneeID == "" {
		return nil
	}
	if !p.IsMember(assigneeID) {
		return core.NewFieldError("assignee_id", errAssigneeNotInTeam)
	}
	return svc.checkUsersExist(ctx, "assignee_id", []string{assigneeID})
}

func (svc *service) sendTaskAssignedMail(ctx context.Context, p Project, t Task) {
	assignee, err := svc.users.GetByID(ctx, t.AssigneeID)
	if err != nil || assignee.Email == "" {
		return
	}
	data := map[string]string{
		"Title":     t.Title,
		"Project":   p.Name,
		"ProjectID": p.ID,
		"DueDate":   "",
	}
	if t.DueDate != nil {
		data["DueDate"] = t.DueDate.String()
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: assignee.Name, Address: assignee.Email}},
		Subject:      "New task: " + t.Title,
		TemplateName: "task_assigned",
		TemplateData: data,
	})
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func withoutID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
