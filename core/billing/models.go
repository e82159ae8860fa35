package billing

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mafunzo/core"
)

// Amounts are integer cents to keep balance arithmetic exact.

// Payment kinds
const (
	KindApplicationFee = "application_fee"
	KindInstallment    = "installment"
)

// Installment plan statuses
const (
	PlanActive    = "active"
	PlanCompleted = "completed"
	PlanOverdue   = "overdue"
)

// InstallmentPeriod is the time between two installment due dates.
const InstallmentPeriod = 30 * 24 * time.Hour

type Payment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	CourseID   string    `json:"course_id"`
	PlanID     string    `json:"plan_id,omitempty"`
	Kind       string    `json:"kind"`
	Amount     int64     `json:"amount"`
	Reference  string    `json:"reference"`
	ReceivedAt time.Time `json:"received_at"` // UTC
	CreatedAt  time.Time `json:"created_at"`  // UTC
}

// InstallmentPlan tracks the course fee owed by a student for an approved
// registration: total fee, amount paid so far and the next due date.
// The fee and installment count are snapshotted at approval time; later
// course fee changes do not affect existing plans.
type InstallmentPlan struct {
	ID                string    `json:"id"`
	RegistrationID    string    `json:"registration_id"`
	StudentID         string    `json:"student_id"`
	CourseID          string    `json:"course_id"`
	TotalFee          int64     `json:"total_fee"`
	Installments      int       `json:"installments"`
	InstallmentAmount int64     `json:"installment_amount"`
	AmountPaid        int64     `json:"amount_paid"`
	StartAt           time.Time `json:"start_at"`     // UTC
	NextDueAt         time.Time `json:"next_due_at"`  // UTC; zero once completed
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"` // UTC
	UpdatedAt         time.Time `json:"updated_at"` // UTC
}

// NewPlan builds an InstallmentPlan for a course-fee snapshot.
// The installment amount is the total divided evenly; the final installment
// absorbs the remainder. The first due date is one period after start.
func NewPlan(registrationID, studentID, courseID string, totalFee int64, installments int, start time.Time) InstallmentPlan {
	if installments < 1 {
		installments = 1
	}
	now := time.Now().UTC()
	plan := InstallmentPlan{
		RegistrationID:    registrationID,
		StudentID:         studentID,
		CourseID:          courseID,
		TotalFee:          totalFee,
		Installments:      installments,
		InstallmentAmount: totalFee / int64(installments),
		StartAt:           start.UTC(),
		NextDueAt:         start.UTC().Add(InstallmentPeriod),
		Status:            PlanActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return plan
}

// Balance is the amount still owed on the plan.
func (p *InstallmentPlan) Balance() int64 {
	return p.TotalFee - p.AmountPaid
}

// InstallmentsCovered is the number of installments fully covered by the
// amount paid so far; partial payments do not count until an installment
// is covered.
func (p *InstallmentPlan) InstallmentsCovered() int {
	if p.AmountPaid >= p.TotalFee {
		return p.Installments
	}
	if p.InstallmentAmount == 0 {
		return 0
	}
	covered := int(p.AmountPaid / p.InstallmentAmount)
	// the final installment absorbs the remainder; it is only covered by full payment
	if covered > p.Installments-1 {
		covered = p.Installments - 1
	}
	return covered
}

// ApplyPayment records an amount against the plan and recomputes the next
// due date and status.
func (p *InstallmentPlan) ApplyPayment(amount int64) {
	p.AmountPaid += amount
	p.UpdatedAt = time.Now().UTC()

	if p.Balance() <= 0 {
		p.Status = PlanCompleted
		p.NextDueAt = time.Time{}
		return
	}
	p.Status = PlanActive // a payment clears a stamped overdue status
	p.NextDueAt = p.StartAt.Add(time.Duration(p.InstallmentsCovered()+1) * InstallmentPeriod)
}

// IsOverdue reports whether the plan's next due date has lapsed at `at`.
func (p *InstallmentPlan) IsOverdue(at time.Time) bool {
	return p.Status != PlanCompleted && !p.NextDueAt.IsZero() && at.After(p.NextDueAt)
}

// FormatAmount renders cents as a decimal string, eg. 123450 -> "1234.50".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// NewApplicationFeePayment contains information needed to record an application fee payment.
type NewApplicationFeePayment struct {
	StudentID  string    `json:"student_id" validate:"required"`
	CourseID   string    `json:"course_id" validate:"required"`
	Amount     int64     `json:"amount" validate:"required,min=1"`
	Reference  string    `json:"reference"`
	ReceivedAt time.Time `json:"received_at"`
}

func (np *NewApplicationFeePayment) Validate(validate *validator.Validate) error {
	np.Reference = core.CleanString(np.Reference)
	return validate.Struct(np)
}

// NewInstallmentPayment contains information needed to record an installment payment.
type NewInstallmentPayment struct {
	PlanID     string    `json:"plan_id" validate:"required"`
	Amount     int64     `json:"amount" validate:"required,min=1"`
	Reference  string    `json:"reference"`
	ReceivedAt time.Time `json:"received_at"`
}

func (np *NewInstallmentPayment) Validate(validate *validator.Validate) error {
	np.Reference = core.CleanString(np.Reference)
	return validate.Struct(np)
}

type PaymentFilter struct {
	StudentID string `query:"student_id"`
	CourseID  string `query:"course_id"`
	PlanID    string `query:"plan_id"`
	Kind      string `query:"kind"`
}

type PlanFilter struct {
	StudentID string `query:"student_id"`
	CourseID  string `query:"course_id"`
	Status    string `query:"status"`
}
