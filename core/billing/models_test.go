package billing

import (
	"testing"
	"time"
)

func TestNewPlan(t *testing.T) {
	start := time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		totalFee     int64
		installments int
		wantAmount   int64
	}{
		{name: "even split", totalFee: 120000, installments: 4, wantAmount: 30000},
		{name: "remainder on last", totalFee: 100000, installments: 3, wantAmount: 33333},
		{name: "single installment", totalFee: 50000, installments: 1, wantAmount: 50000},
		{name: "installments < 1 coerced", totalFee: 50000, installments: 0, wantAmount: 50000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := NewPlan("reg", "student", "course", tt.totalFee, tt.installments, start)
			if plan.InstallmentAmount != tt.wantAmount {
				t.Errorf("InstallmentAmount = %d, want %d", plan.InstallmentAmount, tt.wantAmount)
			}
			if plan.Status != PlanActive {
				t.Errorf("Status = %s, want %s", plan.Status, PlanActive)
			}
			if want := start.Add(InstallmentPeriod); !plan.NextDueAt.Equal(want) {
				t.Errorf("NextDueAt = %v, want %v", plan.NextDueAt, want)
			}
			if plan.Balance() != tt.totalFee {
				t.Errorf("Balance() = %d, want %d", plan.Balance(), tt.totalFee)
			}
		})
	}
}

func TestInstallmentPlanApplyPayment(t *testing.T) {
	start := time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC)

	t.Run("partial payment does not advance due date", func(t *testing.T) {
		plan := NewPlan("reg", "student", "course", 120000, 4, start)
		plan.ApplyPayment(10000) // less than one installment

		if plan.Status != PlanActive {
			t.Errorf("Status = %s, want %s", plan.Status, PlanActive)
		}
		if plan.Balance() != 110000 {
			t.Errorf("Balance() = %d, want 110000", plan.Balance())
		}
		if want := start.Add(InstallmentPeriod); !plan.NextDueAt.Equal(want) {
			t.Errorf("NextDueAt = %v, want %v", plan.NextDueAt, want)
		}
	})

	t.Run("covered installment advances due date", func(t *testing.T) {
		plan := NewPlan("reg", "student", "course", 120000, 4, start)
		plan.ApplyPayment(30000)

		if got := plan.InstallmentsCovered(); got != 1 {
			t.Errorf("InstallmentsCovered() = %d, want 1", got)
		}
		if want := start.Add(2 * InstallmentPeriod); !plan.NextDueAt.Equal(want) {
			t.Errorf("NextDueAt = %v, want %v", plan.NextDueAt, want)
		}
	})

	t.Run("two partials covering one installment", func(t *testing.T) {
		plan := NewPlan("reg", "student", "course", 120000, 4, start)
		plan.ApplyPayment(15000)
		plan.ApplyPayment(15000)

		if got := plan.InstallmentsCovered(); got != 1 {
			t.Errorf("InstallmentsCovered() = %d, want 1", got)
		}
		if want := start.Add(2 * InstallmentPeriod); !plan.NextDueAt.Equal(want) {
			t.Errorf("NextDueAt = %v, want %v", plan.NextDueAt, want)
		}
	})

	t.Run("full payment completes plan", func(t *testing.T) {
		plan := NewPlan("reg", "student", "course", 100000, 3, start)
		plan.ApplyPayment(33333)
		plan.ApplyPayment(33333)
		plan.ApplyPayment(33334) // final absorbs the remainder

		if plan.Status != PlanCompleted {
			t.Errorf("Status = %s, want %s", plan.Status, PlanCompleted)
		}
		if plan.Balance() != 0 {
			t.Errorf("Balance() = %d, want 0", plan.Balance())
		}
		if !plan.NextDueAt.IsZero() {
			t.Errorf("NextDueAt = %v, want zero", plan.NextDueAt)
		}
	})

	t.Run("payment clears stamped overdue", func(t *testing.T) {
		plan := NewPlan("reg", "student", "course", 120000, 4, start)
		plan.Status = PlanOverdue
		plan.ApplyPayment(30000)

		if plan.Status != PlanActive {
			t.Errorf("Status = %s, want %s", plan.Status, PlanActive)
		}
	})
}

func TestInstallmentPlanIsOverdue(t *testing.T) {
	start := time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC)
	plan := NewPlan("reg", "student", "course", 120000, 4, start)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "before first due date", at: start.Add(InstallmentPeriod - time.Hour), want: false},
		{name: "after first due date", at: start.Add(InstallmentPeriod + time.Hour), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := plan.IsOverdue(tt.at); got != tt.want {
				t.Errorf("IsOverdue() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("completed plan is never overdue", func(t *testing.T) {
		done := NewPlan("reg", "student", "course", 10000, 1, start)
		done.ApplyPayment(10000)
		if done.IsOverdue(start.Add(100 * InstallmentPeriod)) {
			t.Error("IsOverdue() = true, want false")
		}
	})
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 0, want: "0.00"},
		{cents: 5, want: "0.05"},
		{cents: 123450, want: "1234.50"},
		{cents: -9900, want: "-99.00"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.cents); got != tt.want {
			t.Errorf("FormatAmount(%d) = %s, want %s", tt.cents, got, tt.want)
		}
	}
}
