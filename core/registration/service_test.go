package registration_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/billing"
	"github.com/trezcool/mafunzo/core/course"
	"github.com/trezcool/mafunzo/core/registration"
	"github.com/trezcool/mafunzo/core/user"
	emailsvc "github.com/trezcool/mafunzo/services/email"
	inmemdb "github.com/trezcool/mafunzo/storage/database/inmem"
	testutil "github.com/trezcool/mafunzo/tests"
)

type courseGetterStub struct {
	crs course.Course
}

func (s *courseGetterStub) GetByID(id string) (course.Course, error) { return s.crs, nil }

type userGetterStub struct{}

func (s *userGetterStub) GetByID(id string) (user.User, error) {
	return user.User{}, user.ErrNotFound
}

// billerStub opens plans in memory and can be told to fail the next attempt.
type billerStub struct {
	fail  bool
	plans []billing.InstallmentPlan
}

func (s *billerStub) ApplicationFeePaid(studentID, courseID string) (bool, error) {
	return true, nil
}

func (s *billerStub) CreatePlan(
	registrationID, studentID, courseID string,
	totalFee int64,
	installments int,
	start time.Time,
	exec ...core.DBExecutor,
) (billing.InstallmentPlan, error) {
	if s.fail {
		return billing.InstallmentPlan{}, errors.New("billing unavailable")
	}
	plan := billing.NewPlan(registrationID, studentID, courseID, totalFee, installments, start)
	s.plans = append(s.plans, plan)
	return plan, nil
}

func TestServiceApprove_planFailureKeepsRegistrationPending(t *testing.T) {
	core.NewConfig()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}
	repo := inmemdb.NewRegistrationRepository(db)

	crs := course.Course{ID: "crs1", Code: "go101", CourseFee: 120000, MaxInstallments: 4}
	crs.SetPublished(true)
	biller := &billerStub{fail: true}
	svc := registration.NewService(db, repo, &courseGetterStub{crs: crs}, biller, &userGetterStub{}, emailsvc.NewConsoleServiceMock())

	reg := testutil.CreateRegistration(t, repo, "usr1", crs.ID, registration.StatusPending)

	if _, err = svc.Approve(reg.ID, registration.Decision{}); err == nil {
		t.Fatal("Approve() succeeded, want error")
	}

	// the failed approval must leave the registration retryable
	got, err := svc.GetByID(reg.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if got.Status != registration.StatusPending {
		t.Errorf("Status = %s, want %s", got.Status, registration.StatusPending)
	}

	biller.fail = false
	approved, err := svc.Approve(reg.ID, registration.Decision{Note: "welcome"})
	if err != nil {
		t.Fatalf("Approve() retry failed: %v", err)
	}
	if approved.Status != registration.StatusApproved {
		t.Errorf("Status = %s, want %s", approved.Status, registration.StatusApproved)
	}
	if len(biller.plans) != 1 {
		t.Fatalf("got %d plans, want 1", len(biller.plans))
	}
	plan := biller.plans[0]
	if plan.RegistrationID != reg.ID {
		t.Errorf("RegistrationID = %s, want %s", plan.RegistrationID, reg.ID)
	}
	if plan.TotalFee != crs.CourseFee {
		t.Errorf("TotalFee = %d, want %d", plan.TotalFee, crs.CourseFee)
	}
	if plan.Installments != crs.MaxInstallments {
		t.Errorf("Installments = %d, want %d", plan.Installments, crs.MaxInstallments)
	}
}
