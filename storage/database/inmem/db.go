// Package inmemdb provides map-backed repositories for tests.
package inmemdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/billing"
	"github.com/trezcool/mafunzo/core/course"
	"github.com/trezcool/mafunzo/core/registration"
	"github.com/trezcool/mafunzo/core/user"
)

type (
	DB struct {
		mutex sync.RWMutex

		user         map[string]*user.User
		course       map[string]*course.Course
		module       map[string]*course.Module
		assignment   map[string]*course.Assignment
		quiz         map[string]*course.Quiz
		submission   map[string]*course.QuizSubmission
		registration map[string]*registration.Registration
		plan         map[string]*billing.InstallmentPlan
		payment      map[string]*billing.Payment
	}

	// tx is a no-op transaction; writes are applied to the maps directly.
	tx struct {
		core.DBExecutor
	}
)

var _ core.DB = (*DB)(nil)

func Open() (*DB, error) {
	db := &DB{
		user:         make(map[string]*user.User),
		course:       make(map[string]*course.Course),
		module:       make(map[string]*course.Module),
		assignment:   make(map[string]*course.Assignment),
		quiz:         make(map[string]*course.Quiz),
		submission:   make(map[string]*course.QuizSubmission),
		registration: make(map[string]*registration.Registration),
		plan:         make(map[string]*billing.InstallmentPlan),
		payment:      make(map[string]*billing.Payment),
	}
	return db, nil
}

func (db *DB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (core.DBTx, error) {
	return tx{db}, nil
}

func (tx) Commit() error   { return nil }
func (tx) Rollback() error { return nil }

// the DBExecutor surface is never reached: the in-mem repositories ignore
// the executor override and work on the maps.
func (db *DB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (db *DB) QueryRowxContext(context.Context, string, ...interface{}) *sqlx.Row { return nil }
func (db *DB) GetContext(context.Context, interface{}, string, ...interface{}) error {
	return nil
}
func (db *DB) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return nil
}
func (db *DB) NamedExecContext(context.Context, string, interface{}) (sql.Result, error) {
	return nil, nil
}
