package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/dashboard"
)

type dashboardApi struct {
	svc dashboard.Service
}

type WorkloadRequest struct {
	From core.Date `query:"from"`
	To   core.Date `query:"to"`
}

func registerDashboardAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc dashboard.Service) {
	api := dashboardApi{svc: svc}

	dg := g.Group("/dashboard", authed...)
	dg.GET("", api.overview)
	dg.GET("/workload", api.workload, managerMiddleware)
}

func (api *dashboardApi) overview(ctx echo.Context) error {
	ov, err := api.svc.Overview(ctx.Request().Context(), contextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "building overview")
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (api *dashboardApi) workload(ctx echo.Context) error {
	var data WorkloadRequest
	if err := ctx.Bind(&data); err != nil {
		return core.NewValidationError(errors.New("from & to must be YYYY-MM-DD dates"))
	}

	wl, err := api.svc.Workload(ctx.Request().Context(), contextUser(ctx), data.From, data.To)
	if err != nil {
		return errors.Wrap(err, "building workload")
	}
	return ctx.JSON(http.StatusOK, wl)
}
