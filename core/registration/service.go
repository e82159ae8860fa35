package registration

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/billing"
	"github.com/trezcool/mafunzo/core/course"
	"github.com/trezcool/mafunzo/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("registration not found")
	ErrAlreadyRegistered = errors.New("a live registration already exists for this course")
	ErrNotPending        = errors.New("registration has already been decided")
	ErrCourseUnavailable = errors.New("course is not open for registration")
	ErrApplicationFeeDue = errors.New("application fee has not been paid for this course")
)

type (
	Repository interface {
		CreateRegistration(ctx context.Context, reg Registration, exec ...core.DBExecutor) (Registration, error)
		QueryRegistrations(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Registration, error)
		GetRegistration(ctx context.Context, id string, exec ...core.DBExecutor) (Registration, error)
		// GetLiveRegistration finds the pending or approved registration for a
		// student/course pair, if any.
		GetLiveRegistration(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (Registration, error)
		UpdateRegistration(ctx context.Context, reg Registration, exec ...core.DBExecutor) (Registration, error)
	}

	// CourseGetter provides the course being applied for.
	CourseGetter interface {
		GetByID(id string) (course.Course, error)
	}

	// Biller gates applications on the paid application fee and opens the
	// installment plan on approval.
	Biller interface {
		ApplicationFeePaid(studentID, courseID string) (bool, error)
		CreatePlan(registrationID, studentID, courseID string, totalFee int64, installments int, start time.Time, exec ...core.DBExecutor) (billing.InstallmentPlan, error)
	}

	// UserGetter provides student details for decision emails.
	UserGetter interface {
		GetByID(id string) (user.User, error)
	}

	ServiceInterface interface {
		Apply(studentID string, nr NewRegistration) (Registration, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Registration, error)
		GetByID(id string) (Registration, error)
		Approve(id string, d Decision) (Registration, error)
		Reject(id string, d Decision) (Registration, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		courseSvc CourseGetter
		billSvc   Biller
		usrSvc    UserGetter
		mailSvc   core.EmailService
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository, courseSvc CourseGetter, billSvc Biller, usrSvc UserGetter, mailSvc core.EmailService) *service {
	return &service{
		db:        db,
		repo:      repo,
		courseSvc: courseSvc,
		billSvc:   billSvc,
		usrSvc:    usrSvc,
		mailSvc:   mailSvc,
	}
}

// Apply creates a pending registration. The course must be published, the
// student must have paid its application fee, and there must be no live
// registration for the pair yet. Re-application after rejection is allowed.
func (svc *service) Apply(studentID string, nr NewRegistration) (Registration, error) {
	ctx := context.Background()

	crs, err := svc.courseSvc.GetByID(nr.CourseID)
	if err != nil {
		return Registration{}, err
	}
	if !crs.Published() {
		return Registration{}, core.NewValidationError(ErrCourseUnavailable)
	}

	paid, err := svc.billSvc.ApplicationFeePaid(studentID, crs.ID)
	if err != nil {
		return Registration{}, errors.Wrap(err, "checking application fee")
	}
	if !paid {
		return Registration{}, core.NewValidationError(ErrApplicationFeeDue)
	}

	if _, err = svc.repo.GetLiveRegistration(ctx, studentID, crs.ID); err == nil {
		return Registration{}, core.NewValidationError(ErrAlreadyRegistered)
	} else if errors.Cause(err) != ErrNotFound {
		return Registration{}, errors.Wrap(err, "checking live registration")
	}

	now := time.Now().UTC()
	reg := Registration{
		StudentID: studentID,
		CourseID:  crs.ID,
		Status:    StatusPending,
		Note:      nr.Note,
		AppliedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateRegistration(ctx, reg)
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Registration, error) {
	return svc.repo.QueryRegistrations(context.Background(), filter, ordering)
}

func (svc *service) GetByID(id string) (Registration, error) {
	return svc.repo.GetRegistration(context.Background(), id)
}

// Approve moves a pending registration to approved and opens the student's
// installment plan from the course-fee snapshot at approval time.
func (svc *service) Approve(id string, d Decision) (Registration, error) {
	ctx := context.Background()

	reg, err := svc.GetByID(id)
	if err != nil {
		return Registration{}, err
	}
	if !reg.IsPending() {
		return Registration{}, core.NewValidationError(ErrNotPending)
	}

	crs, err := svc.courseSvc.GetByID(reg.CourseID)
	if err != nil {
		return Registration{}, errors.Wrap(err, "finding course")
	}

	now := time.Now().UTC()
	reg.Status = StatusApproved
	if d.Note != "" {
		reg.Note = d.Note
	}
	reg.DecidedAt = now
	reg.UpdatedAt = now

	// the status flip and the plan commit or roll back together: an approved
	// registration without a plan cannot be retried
	tx, err := svc.db.BeginTxx(ctx, nil)
	if err != nil {
		return Registration{}, errors.Wrap(err, "beginning transaction")
	}
	if _, err = svc.billSvc.CreatePlan(reg.ID, reg.StudentID, crs.ID, crs.CourseFee, crs.MaxInstallments, now, tx); err != nil {
		_ = tx.Rollback()
		return Registration{}, errors.Wrap(err, "creating installment plan")
	}
	if reg, err = svc.repo.UpdateRegistration(ctx, reg, tx); err != nil {
		_ = tx.Rollback()
		return Registration{}, errors.Wrap(err, "updating registration")
	}
	if err = tx.Commit(); err != nil {
		return Registration{}, errors.Wrap(err, "committing transaction")
	}

	go svc.sendDecisionMail(reg, crs, "registration_approved", "Registration Approved")
	return reg, nil
}

// Reject moves a pending registration to rejected.
func (svc *service) Reject(id string, d Decision) (Registration, error) {
	reg, err := svc.GetByID(id)
	if err != nil {
		return Registration{}, err
	}
	if !reg.IsPending() {
		return Registration{}, core.NewValidationError(ErrNotPending)
	}

	crs, err := svc.courseSvc.GetByID(reg.CourseID)
	if err != nil {
		return Registration{}, errors.Wrap(err, "finding course")
	}

	now := time.Now().UTC()
	reg.Status = StatusRejected
	if d.Note != "" {
		reg.Note = d.Note
	}
	reg.DecidedAt = now
	reg.UpdatedAt = now
	if reg, err = svc.repo.UpdateRegistration(context.Background(), reg); err != nil {
		return Registration{}, errors.Wrap(err, "updating registration")
	}

	go svc.sendDecisionMail(reg, crs, "registration_rejected", "Registration Update")
	return reg, nil
}

func (svc *service) sendDecisionMail(reg Registration, crs course.Course, template, subject string) {
	usr, err := svc.usrSvc.GetByID(reg.StudentID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      subject,
			TemplateName: template,
			TemplateData: struct {
				User   user.User
				Course course.Course
				Note   string
			}{usr, crs, reg.Note},
		},
	)
}
