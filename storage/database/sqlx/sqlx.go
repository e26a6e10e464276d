// Package sqlxrepos implements the domain repositories on PostgreSQL with jmoiron/sqlx.
// Queries are written with `?` placeholders and rebound to the driver's bindvars.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Cherif0104/EcosystIA-sub000/core"
)

// where accumulates AND'ed conditions along with their args.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// anyOf adds `(cond OR cond ...)`, cond being called once per value.
func (w *where) anyOf(values []string, cond func(v string) (string, []interface{})) {
	if len(values) == 0 {
		return
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		c, args := cond(v)
		parts = append(parts, c)
		w.args = append(w.args, args...)
	}
	w.conds = append(w.conds, strings.Join(parts, " OR "))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE (" + strings.Join(w.conds, ") AND (") + ")"
}

// orderBy maps the (already whitelisted) ordering fields to SQL expressions.
func orderBy(ords []core.DBOrdering, exprs map[string]string, def string) string {
	mapped := make([]core.DBOrdering, 0, len(ords))
	for _, ord := range ords {
		if expr, ok := exprs[ord.Field]; ok {
			ord.Field = expr
		}
		mapped = append(mapped, ord)
	}
	return " ORDER BY " + core.OrderByClause(mapped, def)
}

func likeValue(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + r.Replace(s) + "%"
}

// trapNoRowsErr maps "no rows" errors to `notFound`
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// validID reports whether id can be compared against a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func nullUUID(id string) null.String {
	return null.NewString(id, id != "")
}

func nullDate(d *core.Date) null.Time {
	if d == nil || d.IsZero() {
		return null.Time{}
	}
	return null.TimeFrom(d.Time)
}

func datePtr(t null.Time) *core.Date {
	if !t.Valid {
		return nil
	}
	return core.DatePtr(t.Time)
}

// exec runs `q` rebound for the db driver.
func exec(ctx context.Context, db sqlx.ExtContext, q string, args ...interface{}) (sql.Result, error) {
	return db.ExecContext(ctx, db.Rebind(q), args...)
}

// inTx runs fn inside a transaction, rolled back when fn fails.
func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
