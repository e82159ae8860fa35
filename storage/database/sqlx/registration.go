package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/registration"
)

type registrationRow struct {
	ID        string       `db:"id"`
	StudentID string       `db:"student_id"`
	CourseID  string       `db:"course_id"`
	Status    string       `db:"status"`
	Note      string       `db:"note"`
	AppliedAt sql.NullTime `db:"applied_at"`
	DecidedAt sql.NullTime `db:"decided_at"`
	CreatedAt sql.NullTime `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}

type registrationRepository struct {
	repository
}

var _ registration.Repository = (*registrationRepository)(nil) // interface compliance check

func NewRegistrationRepository(exec core.DBExecutor) *registrationRepository {
	return &registrationRepository{repository{exec: exec}}
}

func (repo registrationRepository) fromRow(row registrationRow) registration.Registration {
	return registration.Registration{
		ID:        row.ID,
		StudentID: row.StudentID,
		CourseID:  row.CourseID,
		Status:    row.Status,
		Note:      row.Note,
		AppliedAt: row.AppliedAt.Time,
		DecidedAt: row.DecidedAt.Time,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to registration.ErrNotFound
func (repo registrationRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return registration.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo registrationRepository) CreateRegistration(ctx context.Context, reg registration.Registration, exec ...core.DBExecutor) (registration.Registration, error) {
	reg.ID = uuid.New().String()
	row := registrationRow{
		ID:        reg.ID,
		StudentID: reg.StudentID,
		CourseID:  reg.CourseID,
		Status:    reg.Status,
		Note:      reg.Note,
		AppliedAt: nullTime(reg.AppliedAt),
		DecidedAt: nullTime(reg.DecidedAt),
		CreatedAt: nullTime(reg.CreatedAt),
		UpdatedAt: nullTime(reg.UpdatedAt),
	}
	_, err := repo.getExec(exec).NamedExecContext(
		ctx,
		`INSERT INTO registration (id, student_id, course_id, status, note, applied_at, decided_at, created_at, updated_at)
		VALUES (:id, :student_id, :course_id, :status, :note, :applied_at, :decided_at, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return registration.Registration{}, errors.Wrap(err, "inserting registration")
	}
	return reg, nil
}

func (repo registrationRepository) QueryRegistrations(ctx context.Context, filter *registration.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]registration.Registration, error) {
	var qb queryBuilder

	if filter != nil {
		if filter.StudentID != "" {
			qb.where("student_id = %s", filter.StudentID)
		}
		if filter.CourseID != "" {
			qb.where("course_id = %s", filter.CourseID)
		}
		if filter.Status != "" {
			qb.where("status = %s", filter.Status)
		}
	}

	var rows []registrationRow
	query := qb.build("SELECT * FROM registration", ordering)
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying registrations")
	}

	regs := make([]registration.Registration, 0, len(rows))
	for _, row := range rows {
		regs = append(regs, repo.fromRow(row))
	}
	return regs, nil
}

func (repo registrationRepository) GetRegistration(ctx context.Context, id string, exec ...core.DBExecutor) (registration.Registration, error) {
	if _, err := uuid.Parse(id); err != nil {
		return registration.Registration{}, registration.ErrNotFound
	}

	var row registrationRow
	err := repo.getExec(exec).GetContext(ctx, &row, "SELECT * FROM registration WHERE id = $1", id)
	if err != nil {
		return registration.Registration{}, repo.trapNoRowsErr(err, "finding registration")
	}
	return repo.fromRow(row), nil
}

func (repo registrationRepository) GetLiveRegistration(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (registration.Registration, error) {
	var row registrationRow
	err := repo.getExec(exec).GetContext(
		ctx, &row,
		"SELECT * FROM registration WHERE student_id = $1 AND course_id = $2 AND status IN ($3, $4)",
		studentID, courseID, registration.StatusPending, registration.StatusApproved,
	)
	if err != nil {
		return registration.Registration{}, repo.trapNoRowsErr(err, "finding live registration")
	}
	return repo.fromRow(row), nil
}

func (repo registrationRepository) UpdateRegistration(ctx context.Context, reg registration.Registration, exec ...core.DBExecutor) (registration.Registration, error) {
	var qb queryBuilder
	var sets []string

	set := func(col string, val interface{}) {
		sets = append(sets, col+" = "+qb.arg(val))
	}
	if reg.Status != "" {
		set("status", reg.Status)
	}
	set("note", reg.Note)
	if !reg.DecidedAt.IsZero() {
		set("decided_at", reg.DecidedAt.UTC())
	}
	if !reg.UpdatedAt.IsZero() {
		set("updated_at", reg.UpdatedAt.UTC())
	}

	var row registrationRow
	query := "UPDATE registration SET " + strings.Join(sets, ", ") + " WHERE id = " + qb.arg(reg.ID) + " RETURNING *"
	if err := repo.getExec(exec).GetContext(ctx, &row, query, qb.args...); err != nil {
		return registration.Registration{}, repo.trapNoRowsErr(err, "updating registration")
	}
	return repo.fromRow(row), nil
}
