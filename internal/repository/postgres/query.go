package postgres

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// whereBuilder accumulates positional conditions for a dynamic query
type whereBuilder struct {
	conds []string
	args  []interface{}
}

// arg registers a value and returns its placeholder
func (w *whereBuilder) arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) add(format string, values ...interface{}) {
	placeholders := lo.Map(values, func(v interface{}, _ int) interface{} {
		return w.arg(v)
	})
	w.conds = append(w.conds, fmt.Sprintf(format, placeholders...))
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy returns an ORDER BY clause restricted to whitelisted columns
func orderBy(alias, sort, order string, allowed []string, fallback string) string {
	if !lo.Contains(allowed, sort) {
		sort = fallback
	}
	dir := "DESC"
	if strings.EqualFold(order, "asc") {
		dir = "ASC"
	}
	if alias != "" {
		sort = alias + "." + sort
	}
	return fmt.Sprintf(" ORDER BY %s %s", sort, dir)
}

// paginate appends LIMIT and OFFSET unless the filter is unlimited
func (w *whereBuilder) paginate(limit, offset int, unlimited bool) string {
	if unlimited || limit <= 0 {
		if offset > 0 {
			return " OFFSET " + w.arg(offset)
		}
		return ""
	}
	return fmt.Sprintf(" LIMIT %s OFFSET %s", w.arg(limit), w.arg(offset))
}
