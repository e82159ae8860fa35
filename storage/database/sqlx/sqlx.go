// Package sqlxrepos implements the core repositories on PostgreSQL via sqlx.
package sqlxrepos

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/trezcool/mafunzo/core"
)

// repository carries the default executor; services may override it per call
// to run a set of statements in one transaction.
type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// queryBuilder accumulates WHERE conditions and their positional arguments.
type queryBuilder struct {
	conds []string
	args  []interface{}
}

// arg registers an argument and returns its positional placeholder.
func (qb *queryBuilder) arg(val interface{}) string {
	qb.args = append(qb.args, val)
	return fmt.Sprintf("$%d", len(qb.args))
}

func (qb *queryBuilder) where(format string, vals ...interface{}) {
	phs := make([]interface{}, 0, len(vals))
	for _, val := range vals {
		phs = append(phs, qb.arg(val))
	}
	qb.conds = append(qb.conds, fmt.Sprintf(format, phs...))
}

func (qb *queryBuilder) build(query string, ordering []core.DBOrdering) string {
	if len(qb.conds) > 0 {
		query += " WHERE " + strings.Join(qb.conds, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}
	return query
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
