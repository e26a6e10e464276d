package echoapi_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
	"github.com/Cherif0104/EcosystIA-sub000/testutil"
)

func Test_timeLogApi(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	trainer := testutil.CreateUserWithRole(t, app.usrRepo, "trainer", user.RoleTrainer)
	staff := testutil.CreateUserWithRole(t, app.usrRepo, "staff", user.RoleStaff)
	student := testutil.CreateUserWithRole(t, app.usrRepo, "student", user.RoleStudent)
	manager := testutil.CreateUserWithRole(t, app.usrRepo, "manager", user.RoleManager)
	staffToken := app.getToken(t, staff)
	managerToken := app.getToken(t, manager)

	p, err := app.projects.Create(ctx, trainer, project.NewProject{Name: "Incubation", TeamMemberIDs: []string{staff.ID}})
	require.NoError(t, err)
	task, err := app.projects.CreateTask(ctx, trainer, p.ID, project.NewTask{Title: "Pitch deck", AssigneeID: staff.ID})
	require.NoError(t, err)

	today := core.Today()
	yesterday := today.AddDays(-1)
	logOnProject, err := app.timelogs.Create(ctx, staff, timelog.NewTimeLog{
		EntityType: timelog.EntityProject, EntityID: p.ID, Date: today, DurationMinutes: 60, Description: "kick-off",
	})
	require.NoError(t, err)
	assert.Equal(t, p.Name, logOnProject.EntityTitle)
	logOnTask, err := app.timelogs.Create(ctx, staff, timelog.NewTimeLog{
		EntityType: timelog.EntityTask, EntityID: task.ID, Date: yesterday, DurationMinutes: 30,
	})
	require.NoError(t, err)
	logByTrainer, err := app.timelogs.Create(ctx, trainer, timelog.NewTimeLog{
		EntityType: timelog.EntityProject, EntityID: p.ID, Date: yesterday, DurationMinutes: 45,
	})
	require.NoError(t, err)

	reqMsg := "this field is required"
	app.run(t, []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: "/v1/timelogs", token: staffToken,
			body: marchallObj(t, timelog.NewTimeLog{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"entity_type": reqMsg, "entity_id": reqMsg, "duration_minutes": reqMsg}),
		},
		{
			name: "future date", method: http.MethodPost, path: "/v1/timelogs", token: staffToken,
			body: marchallObj(t, timelog.NewTimeLog{
				EntityType: timelog.EntityProject, EntityID: p.ID, Date: today.AddDays(1), DurationMinutes: 10,
			}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"date": "date cannot be in the future"}),
		},
		{
			name: "entity not visible", method: http.MethodPost, path: "/v1/timelogs", token: app.getToken(t, student),
			body: marchallObj(t, timelog.NewTimeLog{
				EntityType: timelog.EntityProject, EntityID: p.ID, Date: today, DurationMinutes: 10,
			}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"entity_id": "unknown entity"}),
		},
		{name: "own logs", path: "/v1/timelogs", token: staffToken, wantData: marchallList(t, logOnProject, logOnTask)},
		{
			name: "managers see everything", path: "/v1/timelogs?ordering=duration_minutes", token: managerToken,
			wantData: marchallList(t, logOnTask, logByTrainer, logOnProject),
		},
		{
			name: "date range", path: "/v1/timelogs?from=" + yesterday.String() + "&to=" + yesterday.String(), token: managerToken,
			wantData: marchallList(t, logByTrainer, logOnTask),
		},
		{
			name: "invalid date range", path: "/v1/timelogs?from=lol", token: managerToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"from": "must be a YYYY-MM-DD date"}),
		},
		{
			name: "invalid summary period", path: "/v1/timelogs/summary?to=2024-13-01", token: managerToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"to": "must be a YYYY-MM-DD date"}),
		},
		{
			name: "others' logs are hidden", path: "/v1/timelogs/" + logByTrainer.ID, token: staffToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "time log not found"}),
		},
		{
			name: "managers cannot edit others' logs", method: http.MethodPut, path: "/v1/timelogs/" + logOnTask.ID, token: managerToken,
			body: []byte(`{"duration_minutes": 40}`), wantCode: http.StatusForbidden,
		},
		{
			name: "invalid duration", method: http.MethodPut, path: "/v1/timelogs/" + logOnTask.ID, token: staffToken,
			body: []byte(`{"duration_minutes": 2000}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "invalid group_by", path: "/v1/timelogs/summary?group_by=week", token: staffToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"group_by": "must be one of: day, entity, user"}),
		},
	})

	t.Run("summary", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/timelogs/summary?group_by=entity", managerToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sum timelog.Summary
		unmarshal(t, rec, &sum)
		assert.Equal(t, timelog.GroupByEntity, sum.GroupBy)
		assert.Equal(t, 135, sum.TotalMinutes)
		assert.Equal(t, 3, sum.Count)
		require.Len(t, sum.Rows, 2)
		assert.Equal(t, p.Name, sum.Rows[0].Label)
		assert.Equal(t, 105, sum.Rows[0].TotalMinutes)

		rec = app.do(http.MethodGet, "/v1/timelogs/summary", staffToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &sum)
		assert.Equal(t, timelog.GroupByDay, sum.GroupBy)
		require.Len(t, sum.Rows, 2)
		assert.Equal(t, yesterday.String(), sum.Rows[0].Key)
		assert.Equal(t, 90, sum.TotalMinutes)

		rec = app.do(http.MethodGet, "/v1/timelogs/summary?group_by=user", managerToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &sum)
		require.Len(t, sum.Rows, 2)
		assert.Equal(t, staff.DisplayName(), sum.Rows[0].Label)
	})

	t.Run("owner edits & deletes", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/timelogs/"+logOnTask.ID, staffToken, []byte(`{"duration_minutes": 40}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var tl timelog.TimeLog
		unmarshal(t, rec, &tl)
		assert.Equal(t, 40, tl.DurationMinutes)
		assert.Equal(t, logOnTask.EntityID, tl.EntityID)

		rec = app.do(http.MethodDelete, "/v1/timelogs/"+logOnTask.ID, staffToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = app.do(http.MethodGet, "/v1/timelogs/"+logOnTask.ID, staffToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("export", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/timelogs/export?from="+yesterday.String(), managerToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	})
}
