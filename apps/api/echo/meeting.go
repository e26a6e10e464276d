package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Cherif0104/EcosystIA-sub000/core/meeting"
)

type meetingApi struct {
	svc      meeting.Service
	validate *validator.Validate
}

func registerMeetingAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc meeting.Service, validate *validator.Validate) {
	api := meetingApi{svc: svc, validate: validate}

	mg := g.Group("/meetings", authed...)
	mg.GET("", api.query)
	mg.POST("", api.create)
	mg.GET("/:id", api.retrieve)
	mg.PUT("/:id", api.update)
	mg.DELETE("/:id", api.destroy)
}

func (api *meetingApi) query(ctx echo.Context) error {
	filter := new(meeting.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []meeting.Meeting{})
	}
	var err error
	if filter.From, filter.To, err = timeRangeParams(ctx, "from", "to"); err != nil {
		return err
	}
	filter.Clean()

	meetings, err := api.svc.Query(ctx.Request().Context(), contextUser(ctx), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying meetings")
	}
	if meetings == nil {
		meetings = []meeting.Meeting{}
	}
	return ctx.JSON(http.StatusOK, meetings)
}

func (api *meetingApi) create(ctx echo.Context) error {
	var data meeting.NewMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMeeting")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Create(ctx.Request().Context(), contextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating meeting")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *meetingApi) retrieve(ctx echo.Context) error {
	m, err := api.svc.Get(ctx.Request().Context(), contextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting meeting")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *meetingApi) update(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	usr := contextUser(ctx)
	m, err := api.svc.Get(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting meeting")
	}

	var data meeting.UpdateMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMeeting")
	}
	if err := data.Validate(m, api.validate); err != nil {
		return err
	}

	if m, err = api.svc.Update(rctx, usr, m.ID, data); err != nil {
		return errors.Wrap(err, "updating meeting")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *meetingApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting meeting")
	}
	return ctx.NoContent(http.StatusNoContent)
}
