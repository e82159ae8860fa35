package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/billing"
)

type (
	paymentRow struct {
		ID         string         `db:"id"`
		StudentID  string         `db:"student_id"`
		CourseID   string         `db:"course_id"`
		PlanID     sql.NullString `db:"plan_id"`
		Kind       string         `db:"kind"`
		Amount     int64          `db:"amount"`
		Reference  string         `db:"reference"`
		ReceivedAt sql.NullTime   `db:"received_at"`
		CreatedAt  sql.NullTime   `db:"created_at"`
	}

	planRow struct {
		ID                string       `db:"id"`
		RegistrationID    string       `db:"registration_id"`
		StudentID         string       `db:"student_id"`
		CourseID          string       `db:"course_id"`
		TotalFee          int64        `db:"total_fee"`
		Installments      int          `db:"installments"`
		InstallmentAmount int64        `db:"installment_amount"`
		AmountPaid        int64        `db:"amount_paid"`
		StartAt           sql.NullTime `db:"start_at"`
		NextDueAt         sql.NullTime `db:"next_due_at"`
		Status            string       `db:"status"`
		CreatedAt         sql.NullTime `db:"created_at"`
		UpdatedAt         sql.NullTime `db:"updated_at"`
	}
)

type billingRepository struct {
	repository
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(exec core.DBExecutor) *billingRepository {
	return &billingRepository{repository{exec: exec}}
}

func (repo billingRepository) fromPaymentRow(row paymentRow) billing.Payment {
	return billing.Payment{
		ID:         row.ID,
		StudentID:  row.StudentID,
		CourseID:   row.CourseID,
		PlanID:     row.PlanID.String,
		Kind:       row.Kind,
		Amount:     row.Amount,
		Reference:  row.Reference,
		ReceivedAt: row.ReceivedAt.Time,
		CreatedAt:  row.CreatedAt.Time,
	}
}

func (repo billingRepository) fromPlanRow(row planRow) billing.InstallmentPlan {
	return billing.InstallmentPlan{
		ID:                row.ID,
		RegistrationID:    row.RegistrationID,
		StudentID:         row.StudentID,
		CourseID:          row.CourseID,
		TotalFee:          row.TotalFee,
		Installments:      row.Installments,
		InstallmentAmount: row.InstallmentAmount,
		AmountPaid:        row.AmountPaid,
		StartAt:           row.StartAt.Time,
		NextDueAt:         row.NextDueAt.Time,
		Status:            row.Status,
		CreatedAt:         row.CreatedAt.Time,
		UpdatedAt:         row.UpdatedAt.Time,
	}
}

func (repo billingRepository) paymentConds(filter *billing.PaymentFilter) queryBuilder {
	var qb queryBuilder
	if filter != nil {
		if filter.StudentID != "" {
			qb.where("student_id = %s", filter.StudentID)
		}
		if filter.CourseID != "" {
			qb.where("course_id = %s", filter.CourseID)
		}
		if filter.PlanID != "" {
			qb.where("plan_id = %s", filter.PlanID)
		}
		if filter.Kind != "" {
			qb.where("kind = %s", filter.Kind)
		}
	}
	return qb
}

func (repo billingRepository) CreatePayment(ctx context.Context, pmt billing.Payment, exec ...core.DBExecutor) (billing.Payment, error) {
	pmt.ID = uuid.New().String()
	row := paymentRow{
		ID:         pmt.ID,
		StudentID:  pmt.StudentID,
		CourseID:   pmt.CourseID,
		PlanID:     sql.NullString{String: pmt.PlanID, Valid: pmt.PlanID != ""},
		Kind:       pmt.Kind,
		Amount:     pmt.Amount,
		Reference:  pmt.Reference,
		ReceivedAt: nullTime(pmt.ReceivedAt),
		CreatedAt:  nullTime(pmt.CreatedAt),
	}
	_, err := repo.getExec(exec).NamedExecContext(
		ctx,
		`INSERT INTO payment (id, student_id, course_id, plan_id, kind, amount, reference, received_at, created_at)
		VALUES (:id, :student_id, :course_id, :plan_id, :kind, :amount, :reference, :received_at, :created_at)`,
		row,
	)
	if err != nil {
		return billing.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return pmt, nil
}

func (repo billingRepository) QueryPayments(ctx context.Context, filter *billing.PaymentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]billing.Payment, error) {
	qb := repo.paymentConds(filter)

	var rows []paymentRow
	query := qb.build("SELECT * FROM payment", ordering)
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}

	pmts := make([]billing.Payment, 0, len(rows))
	for _, row := range rows {
		pmts = append(pmts, repo.fromPaymentRow(row))
	}
	return pmts, nil
}

func (repo billingRepository) SumPayments(ctx context.Context, filter *billing.PaymentFilter, exec ...core.DBExecutor) (int64, error) {
	qb := repo.paymentConds(filter)

	var sum int64
	query := qb.build("SELECT COALESCE(SUM(amount), 0) FROM payment", nil)
	if err := repo.getExec(exec).GetContext(ctx, &sum, query, qb.args...); err != nil {
		return 0, errors.Wrap(err, "summing payments")
	}
	return sum, nil
}

func (repo billingRepository) HasApplicationFeePayment(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := repo.getExec(exec).QueryRowxContext(
		ctx,
		"SELECT EXISTS(SELECT 1 FROM payment WHERE student_id = $1 AND course_id = $2 AND kind = $3)",
		studentID, courseID, billing.KindApplicationFee,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "checking application fee payment")
	}
	return exists, nil
}

func (repo billingRepository) CreatePlan(ctx context.Context, plan billing.InstallmentPlan, exec ...core.DBExecutor) (billing.InstallmentPlan, error) {
	plan.ID = uuid.New().String()
	row := planRow{
		ID:                plan.ID,
		RegistrationID:    plan.RegistrationID,
		StudentID:         plan.StudentID,
		CourseID:          plan.CourseID,
		TotalFee:          plan.TotalFee,
		Installments:      plan.Installments,
		InstallmentAmount: plan.InstallmentAmount,
		AmountPaid:        plan.AmountPaid,
		StartAt:           nullTime(plan.StartAt),
		NextDueAt:         nullTime(plan.NextDueAt),
		Status:            plan.Status,
		CreatedAt:         nullTime(plan.CreatedAt),
		UpdatedAt:         nullTime(plan.UpdatedAt),
	}
	_, err := repo.getExec(exec).NamedExecContext(
		ctx,
		`INSERT INTO installment_plan (id, registration_id, student_id, course_id, total_fee, installments,
			installment_amount, amount_paid, start_at, next_due_at, status, created_at, updated_at)
		VALUES (:id, :registration_id, :student_id, :course_id, :total_fee, :installments,
			:installment_amount, :amount_paid, :start_at, :next_due_at, :status, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return billing.InstallmentPlan{}, errors.Wrap(err, "inserting plan")
	}
	return plan, nil
}

func (repo billingRepository) QueryPlans(ctx context.Context, filter *billing.PlanFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]billing.InstallmentPlan, error) {
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

	var rows []planRow
	query := qb.build("SELECT * FROM installment_plan", ordering)
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying plans")
	}

	plans := make([]billing.InstallmentPlan, 0, len(rows))
	for _, row := range rows {
		plans = append(plans, repo.fromPlanRow(row))
	}
	return plans, nil
}

func (repo billingRepository) GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (billing.InstallmentPlan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return billing.InstallmentPlan{}, billing.ErrPlanNotFound
	}

	var row planRow
	err := repo.getExec(exec).GetContext(ctx, &row, "SELECT * FROM installment_plan WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return billing.InstallmentPlan{}, billing.ErrPlanNotFound
		}
		return billing.InstallmentPlan{}, errors.Wrap(err, "finding plan")
	}
	return repo.fromPlanRow(row), nil
}

// GetPlanForUpdate locks the plan row until the caller's transaction ends.
func (repo billingRepository) GetPlanForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (billing.InstallmentPlan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return billing.InstallmentPlan{}, billing.ErrPlanNotFound
	}

	var row planRow
	err := repo.getExec(exec).GetContext(ctx, &row, "SELECT * FROM installment_plan WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return billing.InstallmentPlan{}, billing.ErrPlanNotFound
		}
		return billing.InstallmentPlan{}, errors.Wrap(err, "finding plan")
	}
	return repo.fromPlanRow(row), nil
}

func (repo billingRepository) UpdatePlan(ctx context.Context, plan billing.InstallmentPlan, exec ...core.DBExecutor) (billing.InstallmentPlan, error) {
	var qb queryBuilder
	var sets []string

	set := func(col string, val interface{}) {
		sets = append(sets, col+" = "+qb.arg(val))
	}
	set("amount_paid", plan.AmountPaid)
	set("next_due_at", nullTime(plan.NextDueAt))
	if plan.Status != "" {
		set("status", plan.Status)
	}
	if !plan.UpdatedAt.IsZero() {
		set("updated_at", plan.UpdatedAt.UTC())
	}

	var row planRow
	query := "UPDATE installment_plan SET " + strings.Join(sets, ", ") + " WHERE id = " + qb.arg(plan.ID) + " RETURNING *"
	if err := repo.getExec(exec).GetContext(ctx, &row, query, qb.args...); err != nil {
		if err == sql.ErrNoRows {
			return billing.InstallmentPlan{}, billing.ErrPlanNotFound
		}
		return billing.InstallmentPlan{}, errors.Wrap(err, "updating plan")
	}
	return repo.fromPlanRow(row), nil
}
