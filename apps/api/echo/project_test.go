package echoapi_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cherif0104/EcosystIA-sub000/core/project"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
	"github.com/Cherif0104/EcosystIA-sub000/testutil"
)

func Test_projectApi_create(t *testing.T) {
	app := setup(t)

	trainer := testutil.CreateUserWithRole(t, app.usrRepo, "trainer", user.RoleTrainer)
	staff := testutil.CreateUserWithRole(t, app.usrRepo, "staff", user.RoleStaff)
	trainerToken := app.getToken(t, trainer)

	reqMsg := "this field is required"
	app.run(t, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/projects", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "staff cannot create", method: http.MethodPost, path: "/v1/projects", token: app.getToken(t, staff),
			body:     marchallObj(t, project.NewProject{Name: "Incubation 2024"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/v1/projects", token: trainerToken,
			body: marchallObj(t, project.NewProject{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": reqMsg}),
		},
		{
			name: "unknown team member", method: http.MethodPost, path: "/v1/projects", token: trainerToken,
			body:     marchallObj(t, project.NewProject{Name: "Incubation 2024", TeamMemberIDs: []string{"lol"}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"team_member_ids": "unknown users"}),
		},
	})

	t.Run("created with defaults", func(t *testing.T) {
		body := marchallObj(t, project.NewProject{Name: "  Incubation 2024 ", TeamMemberIDs: []string{staff.ID, trainer.ID}})
		rec := app.do(http.MethodPost, "/v1/projects", trainerToken, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var p project.Project
		unmarshal(t, rec, &p)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, "Incubation 2024", p.Name)
		assert.Equal(t, project.StatusNotStarted, p.Status)
		assert.Equal(t, project.PriorityMedium, p.Priority)
		assert.Equal(t, trainer.ID, p.OwnerID)
		assert.Equal(t, []string{staff.ID}, p.TeamMemberIDs, "the owner is not a team member")
	})
}

func Test_projectApi_visibility(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	trainer := testutil.CreateUserWithRole(t, app.usrRepo, "trainer", user.RoleTrainer)
	staff := testutil.CreateUserWithRole(t, app.usrRepo, "staff", user.RoleStaff)
	student := testutil.CreateUserWithRole(t, app.usrRepo, "student", user.RoleStudent)
	manager := testutil.CreateUserWithRole(t, app.usrRepo, "manager", user.RoleManager)

	p, err := app.projects.Create(ctx, trainer, project.NewProject{Name: "Incubation", TeamMemberIDs: []string{staff.ID}})
	require.NoError(t, err)

	notFound := marchallObj(t, httpErr{Error: "project not found"})
	app.run(t, []httpTest{
		{name: "owner", path: "/v1/projects", token: app.getToken(t, trainer), wantData: marchallList(t, p)},
		{name: "team member", path: "/v1/projects", token: app.getToken(t, staff), wantData: marchallList(t, p)},
		{name: "manager sees everything", path: "/v1/projects", token: app.getToken(t, manager), wantData: marchallList(t, p)},
		{name: "outsider", path: "/v1/projects", token: app.getToken(t, student), wantData: marchallList(t)},
		{name: "outsider detail", path: "/v1/projects/" + p.ID, token: app.getToken(t, student), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unknown", path: "/v1/projects/lol", token: app.getToken(t, manager), wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "invalid due date filter", path: "/v1/projects?due_from=garbage", token: app.getToken(t, manager),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"due_from": "must be a YYYY-MM-DD date"}),
		},
		{
			name: "invalid task due date filter", path: "/v1/tasks?due_to=05/01/2024", token: app.getToken(t, staff),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"due_to": "must be a YYYY-MM-DD date"}),
		},
		{
			name: "team member cannot update", method: http.MethodPut, path: "/v1/projects/" + p.ID, token: app.getToken(t, staff),
			body:     marchallObj(t, project.UpdateProject{Name: "Mine"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "owner cannot change the owner", method: http.MethodPut, path: "/v1/projects/" + p.ID, token: app.getToken(t, trainer),
			body:     marchallObj(t, project.UpdateProject{OwnerID: staff.ID}),
			wantCode: http.StatusForbidden,
		},
		{
			name: "due date before start date", method: http.MethodPut, path: "/v1/projects/" + p.ID, token: app.getToken(t, trainer),
			body:     []byte(`{"start_date": "2024-05-10", "due_date": "2024-05-01"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"due_date": "due date cannot be before start date"}),
		},
		{
			name: "team member cannot delete", method: http.MethodDelete, path: "/v1/projects/" + p.ID, token: app.getToken(t, staff),
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("owner updates & deletes", func(t *testing.T) {
		token := app.getToken(t, trainer)
		rec := app.do(http.MethodPut, "/v1/projects/"+p.ID, token, marchallObj(t, project.UpdateProject{Status: "IN_PROGRESS"}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated project.Project
		unmarshal(t, rec, &updated)
		assert.Equal(t, project.StatusInProgress, updated.Status)
		assert.Equal(t, p.Name, updated.Name)

		rec = app.do(http.MethodDelete, "/v1/projects/"+p.ID, token)
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = app.do(http.MethodGet, "/v1/projects/"+p.ID, token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_projectApi_tasksAndRisks(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	trainer := testutil.CreateUserWithRole(t, app.usrRepo, "trainer", user.RoleTrainer)
	staff := testutil.CreateUserWithRole(t, app.usrRepo, "staff", user.RoleStaff)
	student := testutil.CreateUserWithRole(t, app.usrRepo, "student", user.RoleStudent)
	trainerToken := app.getToken(t, trainer)
	staffToken := app.getToken(t, staff)

	p, err := app.projects.Create(ctx, trainer, project.NewProject{Name: "Incubation", TeamMemberIDs: []string{staff.ID}})
	require.NoError(t, err)
	tasksPath := "/v1/projects/" + p.ID + "/tasks"

	app.run(t, []httpTest{
		{
			name: "assignee outside the team", method: http.MethodPost, path: tasksPath, token: trainerToken,
			body:     marchallObj(t, project.NewTask{Title: "Pitch deck", AssigneeID: student.ID}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"assignee_id": "the assignee must be the project owner or a team member"}),
		},
		{
			name: "outsider cannot add tasks", method: http.MethodPost, path: tasksPath, token: app.getToken(t, student),
			body: marchallObj(t, project.NewTask{Title: "Pitch deck"}), wantCode: http.StatusNotFound,
		},
	})

	app.mailSvc.Reset()
	rec := app.do(http.MethodPost, tasksPath, trainerToken, marchallObj(t, project.NewTask{Title: "Pitch deck", AssigneeID: staff.ID}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var task project.Task
	unmarshal(t, rec, &task)
	assert.Equal(t, project.TaskTodo, task.Status)
	require.Len(t, app.mailSvc.SentMessages(), 1, "the assignee is notified")
	assert.Equal(t, staff.Email, app.mailSvc.SentMessages()[0].To[0].Address)

	_, err = app.projects.CreateTask(ctx, trainer, p.ID, project.NewTask{Title: "Budget"})
	require.NoError(t, err)

	t.Run("my tasks", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/tasks?assignee=me", staffToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var tasks []project.Task
		unmarshal(t, rec, &tasks)
		require.Len(t, tasks, 1)
		assert.Equal(t, task.ID, tasks[0].ID)

		rec = app.do(http.MethodGet, "/v1/tasks", app.getToken(t, student))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
	})

	t.Run("team member completes a task", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/tasks/"+task.ID, staffToken, marchallObj(t, project.UpdateTask{Status: project.TaskDone}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = app.do(http.MethodGet, "/v1/projects/"+p.ID, staffToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var detail project.Detail
		unmarshal(t, rec, &detail)
		assert.Len(t, detail.Tasks, 2)
		assert.Equal(t, 50, detail.Progress)
	})

	t.Run("risks", func(t *testing.T) {
		risksPath := "/v1/projects/" + p.ID + "/risks"
		rec := app.do(http.MethodPost, risksPath, staffToken, marchallObj(t, project.NewRisk{Title: "Funding", Likelihood: "high", Impact: "medium"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var risk project.RiskJSON
		unmarshal(t, rec, &risk)
		assert.Equal(t, 6, risk.Score)
		assert.Equal(t, staff.ID, risk.OwnerID)
		assert.Equal(t, project.RiskOpen, risk.Status)

		rec = app.do(http.MethodPost, risksPath, staffToken, marchallObj(t, project.NewRisk{Title: "Funding", Likelihood: "huge", Impact: "medium"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = app.do(http.MethodPut, "/v1/risks/"+risk.ID, staffToken, marchallObj(t, project.UpdateRisk{Likelihood: "low"}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &risk)
		assert.Equal(t, 2, risk.Score)

		rec = app.do(http.MethodGet, risksPath, trainerToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, risk)}, rec)

		rec = app.do(http.MethodDelete, "/v1/risks/"+risk.ID, staffToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = app.do(http.MethodDelete, "/v1/risks/"+risk.ID, trainerToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("task deletion", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/tasks/"+task.ID, staffToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = app.do(http.MethodDelete, "/v1/tasks/"+task.ID, trainerToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = app.do(http.MethodGet, "/v1/tasks/"+task.ID, trainerToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "task not found"})}, rec)
	})
}

func Test_projectApi_export(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	trainer := testutil.CreateUserWithRole(t, app.usrRepo, "trainer", user.RoleTrainer)
	student := testutil.CreateUserWithRole(t, app.usrRepo, "student", user.RoleStudent)
	p, err := app.projects.Create(ctx, trainer, project.NewProject{Name: "Incubation"})
	require.NoError(t, err)
	_, err = app.projects.CreateTask(ctx, trainer, p.ID, project.NewTask{Title: "Pitch deck", AssigneeID: trainer.ID})
	require.NoError(t, err)

	rec := app.do(http.MethodGet, "/v1/projects/"+p.ID+"/export", app.getToken(t, trainer))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = app.do(http.MethodGet, "/v1/projects/"+p.ID+"/export", app.getToken(t, student))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
