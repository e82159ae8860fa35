package billing

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/course"
	"github.com/trezcool/mafunzo/core/user"
)

var (
	// errors
	ErrPaymentNotFound = errors.New("payment not found")
	ErrPlanNotFound    = errors.New("installment plan not found")
	ErrFeeAlreadyPaid  = errors.New("application fee already paid for this course")
	ErrPlanSettled     = errors.New("installment plan is already settled")

	errFeeMismatch    = "amount must equal the course application fee"
	errExceedsBalance = "amount exceeds the remaining balance"
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, pmt Payment, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, filter *PaymentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Payment, error)
		SumPayments(ctx context.Context, filter *PaymentFilter, exec ...core.DBExecutor) (int64, error)
		HasApplicationFeePayment(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (bool, error)

		CreatePlan(ctx context.Context, plan InstallmentPlan, exec ...core.DBExecutor) (InstallmentPlan, error)
		QueryPlans(ctx context.Context, filter *PlanFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]InstallmentPlan, error)
		GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (InstallmentPlan, error)
		// GetPlanForUpdate locks the plan row for the duration of the
		// caller's transaction.
		GetPlanForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (InstallmentPlan, error)
		UpdatePlan(ctx context.Context, plan InstallmentPlan, exec ...core.DBExecutor) (InstallmentPlan, error)
	}

	// CourseGetter provides the course fee amounts payments are checked against.
	CourseGetter interface {
		GetByID(id string) (course.Course, error)
	}

	// UserGetter provides student details for payment receipts.
	UserGetter interface {
		GetByID(id string) (user.User, error)
	}

	ServiceInterface interface {
		RecordApplicationFee(np NewApplicationFeePayment) (Payment, error)
		RecordInstallment(np NewInstallmentPayment) (Payment, error)
		ApplicationFeePaid(studentID, courseID string) (bool, error)
		CreatePlan(registrationID, studentID, courseID string, totalFee int64, installments int, start time.Time, exec ...core.DBExecutor) (InstallmentPlan, error)
		GetPlan(id string) (InstallmentPlan, error)
		QueryPlans(filter *PlanFilter, ordering []core.DBOrdering) ([]InstallmentPlan, error)
		QueryPayments(filter *PaymentFilter, ordering []core.DBOrdering) ([]Payment, error)
		TotalReceived(kind string) (int64, error)
		SyncOverdue(now time.Time) (int, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		courseSvc CourseGetter
		usrSvc    UserGetter
		mailSvc   core.EmailService
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository, courseSvc CourseGetter, usrSvc UserGetter, mailSvc core.EmailService) *service {
	return &service{
		db:        db,
		repo:      repo,
		courseSvc: courseSvc,
		usrSvc:    usrSvc,
		mailSvc:   mailSvc,
	}
}

// RecordApplicationFee records a one-time application fee payment for a
// student/course pair. The amount must match the course's application fee
// and the fee cannot be paid twice.
func (svc *service) RecordApplicationFee(np NewApplicationFeePayment) (Payment, error) {
	ctx := context.Background()

	crs, err := svc.courseSvc.GetByID(np.CourseID)
	if err != nil {
		return Payment{}, errors.Wrap(err, "finding course")
	}
	if np.Amount != crs.ApplicationFee {
		return Payment{}, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: errFeeMismatch})
	}

	paid, err := svc.repo.HasApplicationFeePayment(ctx, np.StudentID, np.CourseID)
	if err != nil {
		return Payment{}, errors.Wrap(err, "checking application fee")
	}
	if paid {
		return Payment{}, core.NewValidationError(ErrFeeAlreadyPaid)
	}

	receivedAt := np.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	pmt := Payment{
		StudentID:  np.StudentID,
		CourseID:   np.CourseID,
		Kind:       KindApplicationFee,
		Amount:     np.Amount,
		Reference:  np.Reference,
		ReceivedAt: receivedAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	pmt, err = svc.repo.CreatePayment(ctx, pmt)
	if err != nil {
		return Payment{}, errors.Wrap(err, "creating payment")
	}

	go svc.sendReceiptMail(pmt)
	return pmt, nil
}

// RecordInstallment records a payment against an installment plan and
// updates the plan's bookkeeping; the payment row and the plan update are
// committed in one transaction. Overpayment is rejected.
func (svc *service) RecordInstallment(np NewInstallmentPayment) (Payment, error) {
	ctx := context.Background()

	tx, err := svc.db.BeginTxx(ctx, nil)
	if err != nil {
		return Payment{}, errors.Wrap(err, "beginning transaction")
	}

	// the balance check must run against the locked row: a stale read lets
	// two concurrent payments both pass it and overshoot the plan
	plan, err := svc.repo.GetPlanForUpdate(ctx, np.PlanID, tx)
	if err != nil {
		_ = tx.Rollback()
		return Payment{}, err
	}
	if plan.Status == PlanCompleted {
		_ = tx.Rollback()
		return Payment{}, core.NewValidationError(ErrPlanSettled)
	}
	if np.Amount > plan.Balance() {
		_ = tx.Rollback()
		return Payment{}, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: errExceedsBalance})
	}

	receivedAt := np.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	pmt := Payment{
		StudentID:  plan.StudentID,
		CourseID:   plan.CourseID,
		PlanID:     plan.ID,
		Kind:       KindInstallment,
		Amount:     np.Amount,
		Reference:  np.Reference,
		ReceivedAt: receivedAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	plan.ApplyPayment(np.Amount)

	if pmt, err = svc.repo.CreatePayment(ctx, pmt, tx); err != nil {
		_ = tx.Rollback()
		return Payment{}, errors.Wrap(err, "creating payment")
	}
	if _, err = svc.repo.UpdatePlan(ctx, plan, tx); err != nil {
		_ = tx.Rollback()
		return Payment{}, errors.Wrap(err, "updating plan")
	}
	if err = tx.Commit(); err != nil {
		return Payment{}, errors.Wrap(err, "committing transaction")
	}

	go svc.sendReceiptMail(pmt)
	return pmt, nil
}

func (svc *service) ApplicationFeePaid(studentID, courseID string) (bool, error) {
	return svc.repo.HasApplicationFeePayment(context.Background(), studentID, courseID)
}

// CreatePlan opens an installment plan from a course-fee snapshot. It takes
// part in the caller's transaction when one is passed.
func (svc *service) CreatePlan(registrationID, studentID, courseID string, totalFee int64, installments int, start time.Time, exec ...core.DBExecutor) (InstallmentPlan, error) {
	plan := NewPlan(registrationID, studentID, courseID, totalFee, installments, start)
	return svc.repo.CreatePlan(context.Background(), plan, exec...)
}

func (svc *service) GetPlan(id string) (InstallmentPlan, error) {
	return svc.repo.GetPlan(context.Background(), id)
}

func (svc *service) QueryPlans(filter *PlanFilter, ordering []core.DBOrdering) ([]InstallmentPlan, error) {
	return svc.repo.QueryPlans(context.Background(), filter, ordering)
}

func (svc *service) QueryPayments(filter *PaymentFilter, ordering []core.DBOrdering) ([]Payment, error) {
	return svc.repo.QueryPayments(context.Background(), filter, ordering)
}

// TotalReceived sums recorded payments, optionally restricted to a kind.
func (svc *service) TotalReceived(kind string) (int64, error) {
	var filter *PaymentFilter
	if kind != "" {
		filter = &PaymentFilter{Kind: kind}
	}
	return svc.repo.SumPayments(context.Background(), filter)
}

// SyncOverdue stamps the overdue status on active plans whose next due date
// has lapsed; returns the number of plans updated.
func (svc *service) SyncOverdue(now time.Time) (int, error) {
	ctx := context.Background()

	plans, err := svc.repo.QueryPlans(ctx, &PlanFilter{Status: PlanActive}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying plans")
	}

	var count int
	for _, plan := range plans {
		if !plan.IsOverdue(now) {
			continue
		}
		plan.Status = PlanOverdue
		plan.UpdatedAt = time.Now().UTC()
		if _, err = svc.repo.UpdatePlan(ctx, plan); err != nil {
			return count, errors.Wrap(err, "updating plan")
		}
		count++
	}
	return count, nil
}

func (svc *service) sendReceiptMail(pmt Payment) {
	usr, err := svc.usrSvc.GetByID(pmt.StudentID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Payment Received",
			TemplateName: "payment_received",
			TemplateData: struct {
				User   user.User
				Amount string
				Kind   string
			}{usr, FormatAmount(pmt.Amount), pmt.Kind},
		},
	)
}
