package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/billing"
	"github.com/trezcool/mafunzo/core/course"
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

// staleReadRepository serves a snapshot from plain GetPlan reads while the
// locking read sees live data, the way a concurrent writer would leave things.
type staleReadRepository struct {
	billing.Repository

	stale billing.InstallmentPlan
}

func (repo *staleReadRepository) GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (billing.InstallmentPlan, error) {
	if repo.stale.ID == id {
		return repo.stale, nil
	}
	return repo.Repository.GetPlan(ctx, id, exec...)
}

func newBillingService(t *testing.T) (*inmemdb.DB, billing.Repository, billing.ServiceInterface) {
	t.Helper()

	core.NewConfig()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}
	repo := inmemdb.NewBillingRepository(db)
	svc := billing.NewService(db, repo, &courseGetterStub{}, &userGetterStub{}, emailsvc.NewConsoleServiceMock())
	return db, repo, svc
}

func TestServiceRecordInstallment_balanceCheckedAgainstCurrentPlan(t *testing.T) {
	db, repo, _ := newBillingService(t)
	start := time.Now().UTC()

	plan := testutil.CreatePlan(t, repo, "reg1", "usr1", "crs1", 120000, 4, start)

	// wrap the repo so non-locking reads return the plan as it was before
	// any payment; only the locking read reflects the recorded one
	stale := &staleReadRepository{Repository: repo, stale: plan}
	svc := billing.NewService(db, stale, &courseGetterStub{}, &userGetterStub{}, emailsvc.NewConsoleServiceMock())

	if _, err := svc.RecordInstallment(billing.NewInstallmentPayment{PlanID: plan.ID, Amount: 90000}); err != nil {
		t.Fatalf("RecordInstallment() failed: %v", err)
	}

	_, err := svc.RecordInstallment(billing.NewInstallmentPayment{PlanID: plan.ID, Amount: 60000})
	if err == nil {
		t.Fatal("RecordInstallment() accepted an amount above the remaining balance")
	}
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	if !ok {
		t.Fatalf("error = %v, want *core.ValidationError", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "amount" {
		t.Errorf("Fields = %+v, want one error on amount", vErr.Fields)
	}

	got, err := repo.GetPlan(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("GetPlan() failed: %v", err)
	}
	if got.AmountPaid != 90000 {
		t.Errorf("AmountPaid = %d, want 90000", got.AmountPaid)
	}
	sum, err := repo.SumPayments(context.Background(), &billing.PaymentFilter{PlanID: plan.ID})
	if err != nil {
		t.Fatalf("SumPayments() failed: %v", err)
	}
	if sum != got.AmountPaid {
		t.Errorf("payment rows sum to %d, plan AmountPaid = %d", sum, got.AmountPaid)
	}
}

func TestServiceRecordInstallment_settlesPlan(t *testing.T) {
	_, repo, svc := newBillingService(t)
	start := time.Now().UTC()

	plan := testutil.CreatePlan(t, repo, "reg1", "usr1", "crs1", 120000, 4, start)

	if _, err := svc.RecordInstallment(billing.NewInstallmentPayment{PlanID: plan.ID, Amount: 30000}); err != nil {
		t.Fatalf("RecordInstallment() failed: %v", err)
	}
	if _, err := svc.RecordInstallment(billing.NewInstallmentPayment{PlanID: plan.ID, Amount: 90000}); err != nil {
		t.Fatalf("RecordInstallment() failed: %v", err)
	}

	got, err := svc.GetPlan(plan.ID)
	if err != nil {
		t.Fatalf("GetPlan() failed: %v", err)
	}
	if got.Status != billing.PlanCompleted {
		t.Errorf("Status = %s, want %s", got.Status, billing.PlanCompleted)
	}
	if got.Balance() != 0 {
		t.Errorf("Balance() = %d, want 0", got.Balance())
	}

	_, err = svc.RecordInstallment(billing.NewInstallmentPayment{PlanID: plan.ID, Amount: 10000})
	if err == nil || err.Error() != billing.ErrPlanSettled.Error() {
		t.Errorf("error = %v, want %v", err, billing.ErrPlanSettled)
	}
}
