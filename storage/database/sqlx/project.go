package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
)

const (
	projectColumns = "id, name, description, status, priority, start_date, due_date, owner_id, team_member_ids, created_at, updated_at"
	taskColumns    = "id, project_id, title, description, status, priority, assignee_id, due_date, estimated_hours, created_at, updated_at"
	riskColumns    = "id, project_id, title, description, likelihood, impact, status, owner_id, mitigation_plan, created_at, updated_at"

	priorityRankExpr = "CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 WHEN 'critical' THEN 4 ELSE 0 END"
	riskScoreExpr    = "(CASE likelihood WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 0 END) * " +
		"(CASE impact WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 0 END)"

	// projects owned by or shared with a user
	visibleProjectsCond = "owner_id = ? OR ? = ANY(team_member_ids)"
)

var (
	projectOrderings = map[string]string{
		"name":     "LOWER(name)",
		"priority": priorityRankExpr,
	}
	taskOrderings = map[string]string{
		"title":    "LOWER(title)",
		"priority": priorityRankExpr,
	}
	riskOrderings = map[string]string{
		"title":      "LOWER(title)",
		"score":      riskScoreExpr,
		"likelihood": "CASE likelihood WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 0 END",
		"impact":     "CASE impact WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 0 END",
	}
)

type projectRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	Description   string         `db:"description"`
	Status        string         `db:"status"`
	Priority      string         `db:"priority"`
	StartDate     null.Time      `db:"start_date"`
	DueDate       null.Time      `db:"due_date"`
	OwnerID       null.String    `db:"owner_id"`
	TeamMemberIDs pq.StringArray `db:"team_member_ids"`
	CreatedAt     null.Time      `db:"created_at"`
	UpdatedAt     null.Time      `db:"updated_at"`
}

type taskRow struct {
	ID             string      `db:"id"`
	ProjectID      string      `db:"project_id"`
	Title          string      `db:"title"`
	Description    string      `db:"description"`
	Status         string      `db:"status"`
	Priority       string      `db:"priority"`
	AssigneeID     null.String `db:"assignee_id"`
	DueDate        null.Time   `db:"due_date"`
	EstimatedHours float64     `db:"estimated_hours"`
	CreatedAt      null.Time   `db:"created_at"`
	UpdatedAt      null.Time   `db:"updated_at"`
}

type riskRow struct {
	ID             string      `db:"id"`
	ProjectID      string      `db:"project_id"`
	Title          string      `db:"title"`
	Description    string      `db:"description"`
	Likelihood     string      `db:"likelihood"`
	Impact         string      `db:"impact"`
	Status         string      `db:"status"`
	OwnerID        null.String `db:"owner_id"`
	MitigationPlan string      `db:"mitigation_plan"`
	CreatedAt      null.Time   `db:"created_at"`
	UpdatedAt      null.Time   `db:"updated_at"`
}

func projectToRow(p project.Project) projectRow {
	members := p.TeamMemberIDs
	if members == nil {
		members = []string{}
	}
	return projectRow{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Status:        p.Status,
		Priority:      p.Priority,
		StartDate:     nullDate(p.StartDate),
		DueDate:       nullDate(p.DueDate),
		OwnerID:       nullUUID(p.OwnerID),
		TeamMemberIDs: members,
		CreatedAt:     null.TimeFrom(p.CreatedAt.UTC()),
		UpdatedAt:     null.TimeFrom(p.UpdatedAt.UTC()),
	}
}

func (row projectRow) toProject() project.Project {
	p := project.Project{
		ID:            row.ID,
		Name:          row.Name,
		Description:   row.Description,
		Status:        row.Status,
		Priority:      row.Priority,
		StartDate:     datePtr(row.StartDate),
		DueDate:       datePtr(row.DueDate),
		OwnerID:       row.OwnerID.String,
		TeamMemberIDs: []string(row.TeamMemberIDs),
		CreatedAt:     row.CreatedAt.Time,
		UpdatedAt:     row.UpdatedAt.Time,
	}
	if p.TeamMemberIDs == nil {
		p.TeamMemberIDs = []string{}
	}
	return p
}

func taskToRow(t project.Task) taskRow {
	return taskRow{
		ID:             t.ID,
		ProjectID:      t.ProjectID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		Priority:       t.Priority,
		AssigneeID:     nullUUID(t.AssigneeID),
		DueDate:        nullDate(t.DueDate),
		EstimatedHours: t.EstimatedHours,
		CreatedAt:      null.TimeFrom(t.CreatedAt.UTC()),
		UpdatedAt:      null.TimeFrom(t.UpdatedAt.UTC()),
	}
}

func (row taskRow) toTask() project.Task {
	return project.Task{
		ID:             row.ID,
		ProjectID:      row.ProjectID,
		Title:          row.Title,
		Description:    row.Description,
		Status:         row.Status,
		Priority:       row.Priority,
		AssigneeID:     row.AssigneeID.String,
		DueDate:        datePtr(row.DueDate),
		EstimatedHours: row.EstimatedHours,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}

func riskToRow(r project.Risk) riskRow {
	return riskRow{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		Title:          r.Title,
		Description:    r.Description,
		Likelihood:     r.Likelihood,
		Impact:         r.Impact,
		Status:         r.Status,
		OwnerID:        nullUUID(r.OwnerID),
		MitigationPlan: r.MitigationPlan,
		CreatedAt:      null.TimeFrom(r.CreatedAt.UTC()),
		UpdatedAt:      null.TimeFrom(r.UpdatedAt.UTC()),
	}
}

func (row riskRow) toRisk() project.Risk {
	return project.Risk{
		ID:             row.ID,
		ProjectID:      row.ProjectID,
		Title:          row.Title,
		Description:    row.Description,
		Likelihood:     row.Likelihood,
		Impact:         row.Impact,
		Status:         row.Status,
		OwnerID:        row.OwnerID.String,
		MitigationPlan: row.MitigationPlan,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}

type projectRepository struct {
	db *sqlx.DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *sqlx.DB) project.Repository {
	return &projectRepository{db: db}
}

// Projects

func (repo *projectRepository) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	row := projectToRow(p)
	q := `INSERT INTO projects (` + projectColumns + `)
		VALUES (:id, :name, :description, :status, :priority, :start_date, :due_date, :owner_id, :team_member_ids, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	return row.toProject(), nil
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter *project.QueryFilter, ordering []core.DBOrdering) ([]project.Project, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := likeValue(filter.Search)
			w.add("name ILIKE ? OR description ILIKE ?", val, val)
		}
		if len(filter.Statuses) > 0 {
			w.add("status = ANY(?)", pq.StringArray(filter.Statuses))
		}
		if len(filter.Priorities) > 0 {
			w.add("priority = ANY(?)", pq.StringArray(filter.Priorities))
		}
		if filter.OwnerID != "" {
			w.add("owner_id::text = ?", filter.OwnerID)
		}
		if filter.MemberID != "" {
			w.add("owner_id::text = ? OR ? = ANY(team_member_ids)", filter.MemberID, filter.MemberID)
		}
		if !filter.DueFrom.IsZero() {
			w.add("due_date >= ?", filter.DueFrom)
		}
		if !filter.DueTo.IsZero() {
			w.add("due_date <= ?", filter.DueTo)
		}
		if filter.VisibleTo != "" {
			w.add(visibleProjectsCond, filter.VisibleTo, filter.VisibleTo)
		}
	}

	q := "SELECT " + projectColumns + " FROM projects" + w.String() + orderBy(ordering, projectOrderings, "created_at DESC")
	var rows []projectRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	projects := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.toProject())
	}
	return projects, nil
}

func (repo *projectRepository) GetProject(ctx context.Context, id string) (project.Project, error) {
	if !validID(id) {
		return project.Project{}, project.ErrNotFound
	}
	var row projectRow
	q := "SELECT " + projectColumns + " FROM projects WHERE id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), id); err != nil {
		return project.Project{}, trapNoRowsErr(err, project.ErrNotFound, "finding project")
	}
	return row.toProject(), nil
}

func (repo *projectRepository) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	row := projectToRow(p)
	q := `UPDATE projects SET name = :name, description = :description, status = :status, priority = :priority,
		start_date = :start_date, due_date = :due_date, owner_id = :owner_id, team_member_ids = :team_member_ids,
		updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "updating project")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.Project{}, project.ErrNotFound
	}
	return row.toProject(), nil
}

// DeleteProject relies on ON DELETE CASCADE for tasks & risks.
func (repo *projectRepository) DeleteProject(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "projects", id, project.ErrNotFound)
}

func (repo *projectRepository) deleteByID(ctx context.Context, table, id string, notFound error) error {
	if !validID(id) {
		return notFound
	}
	res, err := exec(ctx, repo.db, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return errors.Wrapf(err, "deleting from %s", table)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound
	}
	return nil
}

// Tasks

func (repo *projectRepository) CreateTask(ctx context.Context, t project.Task) (project.Task, error) {
	row := taskToRow(t)
	q := `INSERT INTO tasks (` + taskColumns + `)
		VALUES (:id, :project_id, :title, :description, :status, :priority, :assignee_id, :due_date, :estimated_hours, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return project.Task{}, errors.Wrap(err, "inserting task")
	}
	return row.toTask(), nil
}

func (repo *projectRepository) QueryTasks(ctx context.Context, filter *project.TaskFilter, ordering []core.DBOrdering) ([]project.Task, error) {
	var w where
	if filter != nil {
		if filter.ProjectID != "" {
			if !validID(filter.ProjectID) {
				return []project.Task{}, nil
			}
			w.add("project_id = ?", filter.ProjectID)
		}
		if filter.Search != "" {
			val := likeValue(filter.Search)
			w.add("title ILIKE ? OR description ILIKE ?", val, val)
		}
		if len(filter.Statuses) > 0 {
			w.add("status = ANY(?)", pq.StringArray(filter.Statuses))
		}
		if len(filter.Priorities) > 0 {
			w.add("priority = ANY(?)", pq.StringArray(filter.Priorities))
		}
		if filter.AssigneeID != "" {
			w.add("assignee_id::text = ?", filter.AssigneeID)
		}
		if filter.Overdue != nil {
			today := filter.Today
			if today.IsZero() {
				today = core.Today()
			}
			overdue := "status <> 'done' AND due_date IS NOT NULL AND due_date < ?"
			if *filter.Overdue {
				w.add(overdue, today)
			} else {
				w.add("NOT ("+overdue+")", today)
			}
		}
		if !filter.DueFrom.IsZero() {
			w.add("due_date >= ?", filter.DueFrom)
		}
		if !filter.DueTo.IsZero() {
			w.add("due_date <= ?", filter.DueTo)
		}
		if filter.VisibleTo != "" {
			w.add("project_id IN (SELECT id FROM projects WHERE "+visibleProjectsCond+")", filter.VisibleTo, filter.VisibleTo)
		}
	}

	q := "SELECT " + taskColumns + " FROM tasks" + w.String() +
		orderBy(ordering, taskOrderings, "due_date ASC NULLS LAST, "+priorityRankExpr+" DESC")
	var rows []taskRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]project.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toTask())
	}
	return tasks, nil
}

func (repo *projectRepository) GetTask(ctx context.Context, id string) (project.Task, error) {
	if !validID(id) {
		return project.Task{}, project.ErrTaskNotFound
	}
	var row taskRow
	q := "SELECT " + taskColumns + " FROM tasks WHERE id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), id); err != nil {
		return project.Task{}, trapNoRowsErr(err, project.ErrTaskNotFound, "finding task")
	}
	return row.toTask(), nil
}

func (repo *projectRepository) UpdateTask(ctx context.Context, t project.Task) (project.Task, error) {
	row := taskToRow(t)
	q := `UPDATE tasks SET title = :title, description = :description, status = :status, priority = :priority,
		assignee_id = :assignee_id, due_date = :due_date, estimated_hours = :estimated_hours, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return project.Task{}, errors.Wrap(err, "updating task")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.Task{}, project.ErrTaskNotFound
	}
	return row.toTask(), nil
}

func (repo *projectRepository) DeleteTask(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "tasks", id, project.ErrTaskNotFound)
}

// Risks

func (repo *projectRepository) CreateRisk(ctx context.Context, r project.Risk) (project.Risk, error) {
	row := riskToRow(r)
	q := `INSERT INTO risks (` + riskColumns + `)
		VALUES (:id, :project_id, :title, :description, :likelihood, :impact, :status, :owner_id, :mitigation_plan, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return project.Risk{}, errors.Wrap(err, "inserting risk")
	}
	return row.toRisk(), nil
}

func (repo *projectRepository) QueryRisks(ctx context.Context, filter *project.RiskFilter, ordering []core.DBOrdering) ([]project.Risk, error) {
	var w where
	if filter != nil {
		if filter.ProjectID != "" {
			if !validID(filter.ProjectID) {
				return []project.Risk{}, nil
			}
			w.add("project_id = ?", filter.ProjectID)
		}
		if filter.Search != "" {
			val := likeValue(filter.Search)
			w.add("title ILIKE ? OR description ILIKE ?", val, val)
		}
		if len(filter.Statuses) > 0 {
			w.add("status = ANY(?)", pq.StringArray(filter.Statuses))
		}
		if filter.MinScore > 0 {
			w.add(riskScoreExpr+" >= ?", filter.MinScore)
		}
	}

	q := "SELECT " + riskColumns + " FROM risks" + w.String() +
		orderBy(ordering, riskOrderings, riskScoreExpr+" DESC, created_at ASC")
	var rows []riskRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying risks")
	}
	risks := make([]project.Risk, 0, len(rows))
	for _, row := range rows {
		risks = append(risks, row.toRisk())
	}
	return risks, nil
}

func (repo *projectRepository) GetRisk(ctx context.Context, id string) (project.Risk, error) {
	if !validID(id) {
		return project.Risk{}, project.ErrRiskNotFound
	}
	var row riskRow
	q := "SELECT " + riskColumns + " FROM risks WHERE id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), id); err != nil {
		return project.Risk{}, trapNoRowsErr(err, project.ErrRiskNotFound, "finding risk")
	}
	return row.toRisk(), nil
}

func (repo *projectRepository) UpdateRisk(ctx context.Context, r project.Risk) (project.Risk, error) {
	row := riskToRow(r)
	q := `UPDATE risks SET title = :title, description = :description, likelihood = :likelihood, impact = :impact,
		status = :status, owner_id = :owner_id, mitigation_plan = :mitigation_plan, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return project.Risk{}, errors.Wrap(err, "updating risk")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.Risk{}, project.ErrRiskNotFound
	}
	return row.toRisk(), nil
}

func (repo *projectRepository) DeleteRisk(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "risks", id, project.ErrRiskNotFound)
}
