package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
	"github.com/Cherif0104/EcosystIA-sub000/services/pdfexport"
)

var errInvalidGroupBy = "must be one of: day, entity, user"

type timeLogApi struct {
	svc      timelog.Service
	users    user.Service
	validate *validator.Validate
}

func registerTimeLogAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc timelog.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := timeLogApi{svc: svc, users: users, validate: validate}

	tg := g.Group("/timelogs", authed...)
	tg.GET("", api.query)
	tg.POST("", api.create)
	tg.GET("/summary", api.summary)
	tg.GET("/export", api.export)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)
}

func bindTimeLogFilter(ctx echo.Context) (*timelog.QueryFilter, error) {
	if err := checkDateParams(ctx, "from", "to"); err != nil {
		return nil, err
	}
	filter := new(timelog.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, err
	}
	filter.Clean()
	return filter, nil
}

func (api *timeLogApi) query(ctx echo.Context) error {
	filter, err := bindTimeLogFilter(ctx)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return err
		}
		return ctx.JSON(http.StatusOK, []timelog.TimeLog{})
	}

	logs, err := api.svc.Query(ctx.Request().Context(), contextUser(ctx), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying time logs")
	}
	if logs == nil {
		logs = []timelog.TimeLog{}
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *timeLogApi) create(ctx echo.Context) error {
	var data timelog.NewTimeLog
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTimeLog")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tl, err := api.svc.Create(ctx.Request().Context(), contextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating time log")
	}
	return ctx.JSON(http.StatusCreated, tl)
}

func (api *timeLogApi) retrieve(ctx echo.Context) error {
	tl, err := api.svc.Get(ctx.Request().Context(), contextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting time log")
	}
	return ctx.JSON(http.StatusOK, tl)
}

func (api *timeLogApi) update(ctx echo.Context) error {
	var data timelog.UpdateTimeLog
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTimeLog")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tl, err := api.svc.Update(ctx.Request().Context(), contextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating time log")
	}
	return ctx.JSON(http.StatusOK, tl)
}

func (api *timeLogApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting time log")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *timeLogApi) summary(ctx echo.Context) error {
	groupBy := core.CleanString(ctx.QueryParam("group_by"), true /* lower */)
	if groupBy != "" && !core.StringInSlice(groupBy, timelog.GroupBys) {
		return core.NewFieldError("group_by", errInvalidGroupBy)
	}
	filter, err := bindTimeLogFilter(ctx)
	if err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	sum, err := api.svc.Summarize(ctx.Request().Context(), contextUser(ctx), filter, groupBy)
	if err != nil {
		return errors.Wrap(err, "summarizing time logs")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *timeLogApi) export(ctx echo.Context) error {
	filter, err := bindTimeLogFilter(ctx)
	if err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	rctx := ctx.Request().Context()
	logs, err := api.svc.Query(rctx, contextUser(ctx), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying time logs")
	}
	ids := make([]string, 0, len(logs))
	for _, tl := range logs {
		ids = append(ids, tl.UserID)
	}
	names, err := userNames(rctx, api.users, ids)
	if err != nil {
		return err
	}

	title := "Time logs"
	if !filter.From.IsZero() || !filter.To.IsZero() {
		title += " " + filter.From.String() + " - " + filter.To.String()
	}
	var buf bytes.Buffer
	if err := pdfexport.TimeLogReport(&buf, title, logs, timelog.Summarize(logs, timelog.GroupByEntity, names), names); err != nil {
		return errors.Wrap(err, "rendering time log report")
	}
	return sendPDF(ctx, "timelogs.pdf", buf.Bytes())
}
