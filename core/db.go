package core

import (
	"context"
	"strings"
)

// Pinger is implemented by any store that can check its connectivity.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrderings parses an `ordering` value such as "-due_date,name".
// Fields not in `allowed` are dropped; a nil `allowed` accepts every field.
func ParseOrderings(value string, allowed []string) []DBOrdering {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var ords []DBOrdering
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" || (allowed != nil && !StringInSlice(field, allowed)) {
			continue
		}
		ords = append(ords, DBOrdering{Field: field, Ascending: !descending})
	}
	return ords
}

// CleanOrderings keeps the orderings whose field is in `allowed`.
func CleanOrderings(ords []DBOrdering, allowed []string) []DBOrdering {
	if ords == nil {
		return nil
	}
	cleaned := make([]DBOrdering, 0, len(ords))
	for _, ord := range ords {
		if StringInSlice(ord.Field, allowed) {
			cleaned = append(cleaned, ord)
		}
	}
	return cleaned
}

// OrderByClause renders orderings as a SQL ORDER BY list, falling back to `def` when empty.
// Fields must have been cleaned beforehand.
func OrderByClause(ords []DBOrdering, def string) string {
	if len(ords) == 0 {
		return def
	}
	list := make([]string, 0, len(ords))
	for _, ord := range ords {
		list = append(list, ord.String())
	}
	return strings.Join(list, ", ")
}
