package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Cherif0104/EcosystIA-sub000/core"
)

var (
	orderingParam       = "ordering"
	errInvalidDateParam = "must be a YYYY-MM-DD date"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the `ordering` query param; services drop the fields they cannot order by.
func (ord *Ordering) Bind(ctx echo.Context) {
	ord.Orderings = core.ParseOrderings(ctx.QueryParam(orderingParam), nil)
}

func bindOrdering(ctx echo.Context) []core.DBOrdering {
	ord := new(Ordering)
	ord.Bind(ctx)
	return ord.Orderings
}

// timeParam parses the `name` query param as RFC 3339 or as a YYYY-MM-DD date (UTC midnight).
func timeParam(ctx echo.Context, name string) (time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), nil
	}
	d, err := core.ParseDate(val)
	if err != nil {
		return time.Time{}, core.NewFieldError(name, "must be an RFC 3339 time or a YYYY-MM-DD date")
	}
	return d.Time, nil
}

// timeRangeParams parses the `fromName` & `toName` query params.
func timeRangeParams(ctx echo.Context, fromName, toName string) (from, to time.Time, err error) {
	if from, err = timeParam(ctx, fromName); err != nil {
		return
	}
	to, err = timeParam(ctx, toName)
	return
}

// checkDateParams rejects the `names` query params that are set but are not YYYY-MM-DD dates.
func checkDateParams(ctx echo.Context, names ...string) error {
	for _, name := range names {
		val := ctx.QueryParam(name)
		if val == "" {
			continue
		}
		if _, err := core.ParseDate(val); err != nil {
			return core.NewFieldError(name, errInvalidDateParam)
		}
	}
	return nil
}
