package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Cherif0104/EcosystIA-sub000/core/project"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
	"github.com/Cherif0104/EcosystIA-sub000/services/pdfexport"
)

const mimeApplicationPDF = "application/pdf"

type projectApi struct {
	svc      project.Service
	users    user.Service
	validate *validator.Validate
}

func registerProjectAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc project.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := projectApi{svc: svc, users: users, validate: validate}

	pg := g.Group("/projects", authed...)
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update)
	pg.DELETE("/:id", api.destroy)
	pg.GET("/:id/export", api.export)
	pg.GET("/:id/tasks", api.queryProjectTasks)
	pg.POST("/:id/tasks", api.createTask)
	pg.GET("/:id/risks", api.queryRisks)
	pg.POST("/:id/risks", api.createRisk)

	tg := g.Group("/tasks", authed...)
	tg.GET("", api.queryTasks)
	tg.GET("/:id", api.retrieveTask)
	tg.PUT("/:id", api.updateTask)
	tg.DELETE("/:id", api.destroyTask)

	rg := g.Group("/risks", authed...)
	rg.PUT("/:id", api.updateRisk)
	rg.DELETE("/:id", api.destroyRisk)
}

// Projects

func (api *projectApi) query(ctx echo.Context) error {
	if err := checkDateParams(ctx, "due_from", "due_to"); err != nil {
		return err
	}
	filter := new(project.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []project.Project{})
	}
	filter.Clean()

	projects, err := api.svc.Query(ctx.Request().Context(), contextUser(ctx), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) create(ctx echo.Context) error {
	var data project.NewProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), contextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	detail, err := api.svc.Detail(ctx.Request().Context(), contextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting project detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *projectApi) update(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	usr := contextUser(ctx)
	p, err := api.svc.Get(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting project")
	}

	var data project.UpdateProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProject")
	}
	if err := data.Validate(p, api.validate); err != nil {
		return err
	}

	if p, err = api.svc.Update(rctx, usr, p.ID, data); err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *projectApi) export(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	detail, err := api.svc.Detail(rctx, contextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting project detail")
	}

	ids := append([]string{detail.OwnerID}, detail.TeamMemberIDs...)
	for _, t := range detail.Tasks {
		ids = append(ids, t.AssigneeID)
	}
	for _, r := range detail.Risks {
		ids = append(ids, r.OwnerID)
	}
	names, err := userNames(rctx, api.users, ids)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := pdfexport.ProjectReport(&buf, detail, names); err != nil {
		return errors.Wrap(err, "rendering project report")
	}
	return sendPDF(ctx, "project-"+detail.ID+".pdf", buf.Bytes())
}

// Tasks

func (api *projectApi) queryProjectTasks(ctx echo.Context) error {
	return api.doQueryTasks(ctx, ctx.Param("id"))
}

func (api *projectApi) queryTasks(ctx echo.Context) error {
	return api.doQueryTasks(ctx, "")
}

func (api *projectApi) doQueryTasks(ctx echo.Context, projectID string) error {
	if err := checkDateParams(ctx, "due_from", "due_to"); err != nil {
		return err
	}
	filter := new(project.TaskFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []project.Task{})
	}
	filter.ProjectID = projectID
	filter.Clean()

	tasks, err := api.svc.QueryTasks(ctx.Request().Context(), contextUser(ctx), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []project.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *projectApi) createTask(ctx echo.Context) error {
	var data project.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.CreateTask(ctx.Request().Context(), contextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *projectApi) retrieveTask(ctx echo.Context) error {
	t, err := api.svc.GetTask(ctx.Request().Context(), contextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *projectApi) updateTask(ctx echo.Context) error {
	var data project.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.UpdateTask(ctx.Request().Context(), contextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *projectApi) destroyTask(ctx echo.Context) error {
	if err := api.svc.DeleteTask(ctx.Request().Context(), contextUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Risks

func (api *projectApi) queryRisks(ctx echo.Context) error {
	filter := new(project.RiskFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []project.RiskJSON{})
	}
	filter.ProjectID = ctx.Param("id")
	filter.Clean()

	risks, err := api.svc.QueryRisks(ctx.Request().Context(), contextUser(ctx), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying risks")
	}
	return ctx.JSON(http.StatusOK, project.RisksJSON(risks))
}

func (api *projectApi) createRisk(ctx echo.Context) error {
	var data project.NewRisk
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRisk")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.CreateRisk(ctx.Request().Context(), contextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating risk")
	}
	return ctx.JSON(http.StatusCreated, r.JSON())
}

func (api *projectApi) updateRisk(ctx echo.Context) error {
	var data project.UpdateRisk
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRisk")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.UpdateRisk(ctx.Request().Context(), contextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating risk")
	}
	return ctx.JSON(http.StatusOK, r.JSON())
}

func (api *projectApi) destroyRisk(ctx echo.Context) error {
	if err := api.svc.DeleteRisk(ctx.Request().Context(), contextUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting risk")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func sendPDF(ctx echo.Context, filename string, content []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, mimeApplicationPDF, content)
}
