package inmemdb

import (
	"context"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
)

type projectRepository struct {
	db *projectTables
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *DB) project.Repository {
	return &projectRepository{db: db.project}
}

func cloneProject(p project.Project) project.Project {
	p.TeamMemberIDs = cloneStrings(p.TeamMemberIDs)
	p.StartDate = cloneDate(p.StartDate)
	p.DueDate = cloneDate(p.DueDate)
	return p
}

func cloneTask(t project.Task) project.Task {
	t.DueDate = cloneDate(t.DueDate)
	return t
}

func cloneDate(d *core.Date) *core.Date {
	if d == nil || d.IsZero() {
		return nil
	}
	c := *d
	return &c
}

// Projects

func (repo *projectRepository) CreateProject(_ context.Context, p project.Project) (project.Project, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := cloneProject(p)
	repo.db.projects[p.ID] = &stored
	return cloneProject(stored), nil
}

func (repo *projectRepository) QueryProjects(_ context.Context, filter *project.QueryFilter, ordering []core.DBOrdering) ([]project.Project, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	projects := make([]project.Project, 0)
	for _, p := range repo.db.projects {
		if filter.Matches(*p) {
			projects = append(projects, cloneProject(*p))
		}
	}
	project.SortProjects(projects, ordering)
	return projects, nil
}

func (repo *projectRepository) GetProject(_ context.Context, id string) (project.Project, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.projects[id]; ok {
		return cloneProject(*p), nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) UpdateProject(_ context.Context, p project.Project) (project.Project, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.projects[p.ID]; !ok {
		return project.Project{}, project.ErrNotFound
	}
	stored := cloneProject(p)
	repo.db.projects[p.ID] = &stored
	return cloneProject(stored), nil
}

func (repo *projectRepository) DeleteProject(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.projects[id]; !ok {
		return project.ErrNotFound
	}
	delete(repo.db.projects, id)
	for tid, t := range repo.db.tasks {
		if t.ProjectID == id {
			delete(repo.db.tasks, tid)
		}
	}
	for rid, r := range repo.db.risks {
		if r.ProjectID == id {
			delete(repo.db.risks, rid)
		}
	}
	return nil
}

// Tasks

func (repo *projectRepository) CreateTask(_ context.Context, t project.Task) (project.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.projects[t.ProjectID]; !ok {
		return project.Task{}, project.ErrNotFound
	}
	stored := cloneTask(t)
	repo.db.tasks[t.ID] = &stored
	return cloneTask(stored), nil
}

func (repo *projectRepository) QueryTasks(_ context.Context, filter *project.TaskFilter, ordering []core.DBOrdering) ([]project.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter != nil && filter.Overdue != nil && filter.Today.IsZero() {
		f := *filter
		f.Today = core.Today()
		filter = &f
	}

	tasks := make([]project.Task, 0)
	for _, t := range repo.db.tasks {
		if !filter.Matches(*t) {
			continue
		}
		if filter != nil && filter.VisibleTo != "" {
			p, ok := repo.db.projects[t.ProjectID]
			if !ok || !p.IsMember(filter.VisibleTo) {
				continue
			}
		}
		tasks = append(tasks, cloneTask(*t))
	}
	project.SortTasks(tasks, ordering)
	return tasks, nil
}

func (repo *projectRepository) GetTask(_ context.Context, id string) (project.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return cloneTask(*t), nil
	}
	return project.Task{}, project.ErrTaskNotFound
}

func (repo *projectRepository) UpdateTask(_ context.Context, t project.Task) (project.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tasks[t.ID]; !ok {
		return project.Task{}, project.ErrTaskNotFound
	}
	stored := cloneTask(t)
	repo.db.tasks[t.ID] = &stored
	return cloneTask(stored), nil
}

func (repo *projectRepository) DeleteTask(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tasks[id]; !ok {
		return project.ErrTaskNotFound
	}
	delete(repo.db.tasks, id)
	return nil
}

// Risks

func (repo *projectRepository) CreateRisk(_ context.Context, r project.Risk) (project.Risk, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.projects[r.ProjectID]; !ok {
		return project.Risk{}, project.ErrNotFound
	}
	stored := r
	repo.db.risks[r.ID] = &stored
	return stored, nil
}

func (repo *projectRepository) QueryRisks(_ context.Context, filter *project.RiskFilter, ordering []core.DBOrdering) ([]project.Risk, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	risks := make([]project.Risk, 0)
	for _, r := range repo.db.risks {
		if filter.Matches(*r) {
			risks = append(risks, *r)
		}
	}
	project.SortRisks(risks, ordering)
	return risks, nil
}

func (repo *projectRepository) GetRisk(_ context.Context, id string) (project.Risk, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.risks[id]; ok {
		return *r, nil
	}
	return project.Risk{}, project.ErrRiskNotFound
}

func (repo *projectRepository) UpdateRisk(_ context.Context, r project.Risk) (project.Risk, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.risks[r.ID]; !ok {
		return project.Risk{}, project.ErrRiskNotFound
	}
	stored := r
	repo.db.risks[r.ID] = &stored
	return stored, nil
}

func (repo *projectRepository) DeleteRisk(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.risks[id]; !ok {
		return project.ErrRiskNotFound
	}
	delete(repo.db.risks, id)
	return nil
}
