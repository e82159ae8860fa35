package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/billing"
)

type billingRepository struct {
	db *DB
}

var _ billing.Repository = (*billingRepository)(nil)

func NewBillingRepository(db *DB) *billingRepository {
	return &billingRepository{db: db}
}

func (repo *billingRepository) queryPayments(filter *billing.PaymentFilter) []billing.Payment {
	pmts := make([]billing.Payment, 0, len(repo.db.payment))
	for _, pmt := range repo.db.payment {
		if filter != nil {
			if filter.StudentID != "" && pmt.StudentID != filter.StudentID {
				continue
			}
			if filter.CourseID != "" && pmt.CourseID != filter.CourseID {
				continue
			}
			if filter.PlanID != "" && pmt.PlanID != filter.PlanID {
				continue
			}
			if filter.Kind != "" && pmt.Kind != filter.Kind {
				continue
			}
		}
		pmts = append(pmts, *pmt)
	}
	return pmts
}

func sortPayments(pmts []billing.Payment, ordering []core.DBOrdering) {
	asc := true
	if len(ordering) > 0 {
		asc = ordering[0].Ascending
	}
	sort.Slice(pmts, func(i, j int) bool {
		if asc {
			return pmts[i].ReceivedAt.Before(pmts[j].ReceivedAt)
		}
		return pmts[i].ReceivedAt.After(pmts[j].ReceivedAt)
	})
}

func (repo *billingRepository) CreatePayment(ctx context.Context, pmt billing.Payment, exec ...core.DBExecutor) (billing.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	pmt.ID = uuid.New().String()
	repo.db.payment[pmt.ID] = &pmt
	return pmt, nil
}

func (repo *billingRepository) QueryPayments(ctx context.Context, filter *billing.PaymentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]billing.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	pmts := repo.queryPayments(filter)
	sortPayments(pmts, ordering)
	return pmts, nil
}

func (repo *billingRepository) SumPayments(ctx context.Context, filter *billing.PaymentFilter, exec ...core.DBExecutor) (int64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var sum int64
	for _, pmt := range repo.queryPayments(filter) {
		sum += pmt.Amount
	}
	return sum, nil
}

func (repo *billingRepository) HasApplicationFeePayment(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, pmt := range repo.db.payment {
		if pmt.StudentID == studentID && pmt.CourseID == courseID && pmt.Kind == billing.KindApplicationFee {
			return true, nil
		}
	}
	return false, nil
}

func (repo *billingRepository) CreatePlan(ctx context.Context, plan billing.InstallmentPlan, exec ...core.DBExecutor) (billing.InstallmentPlan, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	plan.ID = uuid.New().String()
	repo.db.plan[plan.ID] = &plan
	return plan, nil
}

func (repo *billingRepository) QueryPlans(ctx context.Context, filter *billing.PlanFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]billing.InstallmentPlan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	plans := make([]billing.InstallmentPlan, 0, len(repo.db.plan))
	for _, plan := range repo.db.plan {
		if filter != nil {
			if filter.StudentID != "" && plan.StudentID != filter.StudentID {
				continue
			}
			if filter.CourseID != "" && plan.CourseID != filter.CourseID {
				continue
			}
			if filter.Status != "" && plan.Status != filter.Status {
				continue
			}
		}
		plans = append(plans, *plan)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].StartAt.Before(plans[j].StartAt) })
	return plans, nil
}

func (repo *billingRepository) GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (billing.InstallmentPlan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if plan, ok := repo.db.plan[id]; ok {
		return *plan, nil
	}
	return billing.InstallmentPlan{}, billing.ErrPlanNotFound
}

func (repo *billingRepository) GetPlanForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (billing.InstallmentPlan, error) {
	return repo.GetPlan(ctx, id, exec...)
}

func (repo *billingRepository) UpdatePlan(ctx context.Context, plan billing.InstallmentPlan, exec ...core.DBExecutor) (billing.InstallmentPlan, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.plan[plan.ID]
	if !ok {
		return billing.InstallmentPlan{}, billing.ErrPlanNotFound
	}
	orig.AmountPaid = plan.AmountPaid
	orig.NextDueAt = plan.NextDueAt
	if plan.Status != "" {
		orig.Status = plan.Status
	}
	if !plan.UpdatedAt.IsZero() {
		orig.UpdatedAt = plan.UpdatedAt
	}
	return *orig, nil
}
