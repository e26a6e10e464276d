package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
)

var (
	projectRowColumns = []string{
		"id", "name", "description", "status", "priority", "start_date", "due_date", "owner_id", "team_member_ids", "created_at", "updated_at",
	}
	taskRowColumns = []string{
		"id", "project_id", "title", "description", "status", "priority", "assignee_id", "due_date", "estimated_hours", "created_at", "updated_at",
	}
)

func TestProjectRepository_CreateProject(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects (" + projectColumns + ")")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	due, _ := core.ParseDate("2024-03-31")
	p, err := repo.CreateProject(context.Background(), project.Project{
		ID:        uuid.New().String(),
		Name:      "Website",
		Status:    project.StatusNotStarted,
		Priority:  project.PriorityHigh,
		DueDate:   &due,
		OwnerID:   uuid.New().String(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{}, p.TeamMemberIDs)
	assert.Nil(t, p.StartDate)
	require.NotNil(t, p.DueDate)
	assert.Equal(t, "2024-03-31", p.DueDate.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_GetProject(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()
	id, owner := uuid.New().String(), uuid.New().String()
	now := time.Now().UTC()
	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(projectRowColumns).
			AddRow(id, "Website", "", "in_progress", "high", start, nil, owner, "{}", now, now))

	p, err := repo.GetProject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Website", p.Name)
	assert.Equal(t, owner, p.OwnerID)
	require.NotNil(t, p.StartDate)
	assert.Equal(t, "2024-01-08", p.StartDate.String())
	assert.Nil(t, p.DueDate)

	missing := uuid.New().String()
	mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = $1")).
		WithArgs(missing).
		WillReturnRows(sqlmock.NewRows(projectRowColumns))

	_, err = repo.GetProject(ctx, missing)
	assert.Equal(t, project.ErrNotFound, err)

	_, err = repo.GetProject(ctx, "42")
	assert.Equal(t, project.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_QueryProjects(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db)
	usrID := uuid.New().String()

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM projects WHERE (status = ANY($1)) AND (owner_id = $2 OR $3 = ANY(team_member_ids)) " +
			"ORDER BY " + priorityRankExpr + " DESC")).
		WithArgs(sqlmock.AnyArg(), usrID, usrID).
		WillReturnRows(sqlmock.NewRows(projectRowColumns))

	projects, err := repo.QueryProjects(
		context.Background(),
		&project.QueryFilter{Statuses: []string{project.StatusInProgress}, VisibleTo: usrID},
		[]core.DBOrdering{{Field: "priority"}},
	)
	require.NoError(t, err)
	assert.Empty(t, projects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_QueryTasks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()
	projectID, usrID, taskID := uuid.New().String(), uuid.New().String(), uuid.New().String()
	today, _ := core.ParseDate("2024-02-15")
	overdue := true
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM tasks WHERE (project_id = $1) " +
			"AND (status <> 'done' AND due_date IS NOT NULL AND due_date < $2) " +
			"AND (project_id IN (SELECT id FROM projects WHERE owner_id = $3 OR $4 = ANY(team_member_ids))) " +
			"ORDER BY due_date ASC NULLS LAST, " + priorityRankExpr + " DESC")).
		WithArgs(projectID, today, usrID, usrID).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(taskID, projectID, "Draft", "", "todo", "medium", nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 2.5, now, now))

	tasks, err := repo.QueryTasks(ctx, &project.TaskFilter{
		ProjectID: projectID,
		Overdue:   &overdue,
		Today:     today,
		VisibleTo: usrID,
	}, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, taskID, tasks[0].ID)
	assert.Equal(t, "", tasks[0].AssigneeID)
	assert.Equal(t, 2.5, tasks[0].EstimatedHours)
	assert.True(t, tasks[0].IsOverdue(today))

	// malformed project IDs match nothing
	tasks, err = repo.QueryTasks(ctx, &project.TaskFilter{ProjectID: "nope"}, nil)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_QueryRisks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db)
	projectID := uuid.New().String()

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM risks WHERE (project_id = $1) AND (" + riskScoreExpr + " >= $2) " +
			"ORDER BY " + riskScoreExpr + " DESC, created_at ASC")).
		WithArgs(projectID, 4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	risks, err := repo.QueryRisks(context.Background(), &project.RiskFilter{ProjectID: projectID, MinScore: 4}, nil)
	require.NoError(t, err)
	assert.Empty(t, risks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()
	id := uuid.New().String()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM projects WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.DeleteProject(ctx, id))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, project.ErrTaskNotFound, repo.DeleteTask(ctx, id))

	assert.Equal(t, project.ErrRiskNotFound, repo.DeleteRisk(ctx, "not-a-uuid"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_UpdateTask(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET title = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.UpdateTask(context.Background(), project.Task{ID: uuid.New().String(), Title: "x"})
	assert.Equal(t, project.ErrTaskNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
