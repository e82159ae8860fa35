package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/mafunzo/core/billing"
	"github.com/trezcool/mafunzo/core/user"
	testutil "github.com/trezcool/mafunzo/tests"
)

func Test_billingApi_recordApplicationFee(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	golang := testutil.CreateCourse(t, courseRepo, "go101", "Go Programming", 5000, 120000, 4, true)

	adminToken := getToken(t, admin)

	feePayment := func(amount int64) []byte {
		return marchallObj(t, billing.NewApplicationFeePayment{
			StudentID: hero.ID, CourseID: golang.ID, Amount: amount, Reference: "MPESA-001",
		})
	}

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/v1/payments/application-fee",
			body:     feePayment(5000),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "admin required", method: http.MethodPost, path: "/v1/payments/application-fee",
			token: getToken(t, hero), body: feePayment(5000),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/v1/payments/application-fee",
			token: adminToken, body: marchallObj(t, billing.NewApplicationFeePayment{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"student_id": "this field is required", "course_id": "this field is required",
				"amount": "this field is required",
			}),
		},
		{
			name: "amount must match the fee", method: http.MethodPost, path: "/v1/payments/application-fee",
			token: adminToken, body: feePayment(4000),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount": "amount must equal the course application fee"}),
		},
		{
			name: "recorded", method: http.MethodPost, path: "/v1/payments/application-fee",
			token: adminToken, body: feePayment(5000), wantCode: http.StatusCreated,
		},
		{
			name: "no double payment", method: http.MethodPost, path: "/v1/payments/application-fee",
			token: adminToken, body: feePayment(5000),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "application fee already paid for this course"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var respData billing.Payment
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Kind != billing.KindApplicationFee {
					t.Errorf("Kind = %s; want %s", respData.Kind, billing.KindApplicationFee)
				}
				if respData.Amount != 5000 {
					t.Errorf("Amount = %d; want 5000", respData.Amount)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_billingApi_recordInstallment(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	golang := testutil.CreateCourse(t, courseRepo, "go101", "Go Programming", 5000, 120000, 4, true)

	start := time.Now().UTC()
	plan := testutil.CreatePlan(t, billRepo, "reg1", hero.ID, golang.ID, 120000, 4, start)

	adminToken := getToken(t, admin)

	installment := func(planID string, amount int64) []byte {
		return marchallObj(t, billing.NewInstallmentPayment{PlanID: planID, Amount: amount})
	}

	tests := []httpTest{
		{
			name: "admin required", method: http.MethodPost, path: "/v1/payments/installment",
			token: getToken(t, hero), body: installment(plan.ID, 30000),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "plan not found", method: http.MethodPost, path: "/v1/payments/installment",
			token: adminToken, body: installment("lol", 30000),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "amount cannot exceed balance", method: http.MethodPost, path: "/v1/payments/installment",
			token: adminToken, body: installment(plan.ID, 130000),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount": "amount exceeds the remaining balance"}),
		},
		{
			name: "recorded", method: http.MethodPost, path: "/v1/payments/installment",
			token: adminToken, body: installment(plan.ID, 30000), wantCode: http.StatusCreated,
		},
		{
			name: "settles the plan", method: http.MethodPost, path: "/v1/payments/installment",
			token: adminToken, body: installment(plan.ID, 90000), wantCode: http.StatusCreated,
		},
		{
			name: "settled plan takes no more", method: http.MethodPost, path: "/v1/payments/installment",
			token: adminToken, body: installment(plan.ID, 30000),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "installment plan is already settled"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	// balance and due date roll forward with each payment; the last one completes the plan
	req, rec := newAuthRequest(http.MethodGet, "/v1/installment-plans/"+plan.ID, adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var respData struct {
		AmountPaid int64  `json:"amount_paid"`
		Balance    int64  `json:"balance"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if respData.AmountPaid != 120000 || respData.Balance != 0 {
		t.Errorf("paid/balance = %d/%d; want 120000/0", respData.AmountPaid, respData.Balance)
	}
	if respData.Status != billing.PlanCompleted {
		t.Errorf("Status = %s; want %s", respData.Status, billing.PlanCompleted)
	}
}

func Test_billingApi_queryPayments(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	zero := testutil.CreateUser(t, usrRepo, "Zero", "zero", "zero@test.cd", "", []string{user.RoleStudent}, true)
	golang := testutil.CreateCourse(t, courseRepo, "go101", "Go Programming", 5000, 120000, 4, true)

	now := time.Now().UTC()
	heroFee := testutil.CreatePayment(t, billRepo, hero.ID, golang.ID, "", billing.KindApplicationFee, 5000, now)
	heroInst := testutil.CreatePayment(t, billRepo, hero.ID, golang.ID, "plan1", billing.KindInstallment, 30000, now)
	zeroFee := testutil.CreatePayment(t, billRepo, zero.ID, golang.ID, "", billing.KindApplicationFee, 5000, now)

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodGet, path: "/v1/payments",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "staff sees all", method: http.MethodGet, path: "/v1/payments", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, heroFee, heroInst, zeroFee),
		},
		{
			name: "staff filters by kind", method: http.MethodGet,
			path: "/v1/payments?kind=" + billing.KindApplicationFee, token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, heroFee, zeroFee),
		},
		{
			name: "students see their own only", method: http.MethodGet, path: "/v1/payments",
			token:    getToken(t, hero),
			wantCode: http.StatusOK, wantData: marchallList(t, heroFee, heroInst),
		},
		{
			name: "students cannot peek via filter", method: http.MethodGet,
			path: "/v1/payments?student_id=" + zero.ID, token: getToken(t, hero),
			wantCode: http.StatusOK, wantData: marchallList(t, heroFee, heroInst),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_billingApi_plans(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	zero := testutil.CreateUser(t, usrRepo, "Zero", "zero", "zero@test.cd", "", []string{user.RoleStudent}, true)
	golang := testutil.CreateCourse(t, courseRepo, "go101", "Go Programming", 5000, 120000, 4, true)

	now := time.Now().UTC()
	heroPlan := testutil.CreatePlan(t, billRepo, "reg1", hero.ID, golang.ID, 120000, 4, now)
	// due date lapsed two periods ago; persisted active but overdue at read time
	zeroPlan := testutil.CreatePlan(t, billRepo, "reg2", zero.ID, golang.ID, 100000, 2, now.Add(-3*billing.InstallmentPeriod))

	adminToken := getToken(t, admin)
	heroToken := getToken(t, hero)

	t.Run("student sees own plans with balance", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/installment-plans", heroToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var respData []struct {
			ID      string `json:"id"`
			Balance int64  `json:"balance"`
			Status  string `json:"status"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(respData) != 1 || respData[0].ID != heroPlan.ID {
			t.Fatalf("plans = %+v; want hero's only", respData)
		}
		if respData[0].Balance != 120000 {
			t.Errorf("Balance = %d; want 120000", respData[0].Balance)
		}
		if respData[0].Status != billing.PlanActive {
			t.Errorf("Status = %s; want %s", respData[0].Status, billing.PlanActive)
		}
	})

	t.Run("lapsed plan reads as overdue", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/installment-plans/"+zeroPlan.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var respData struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if respData.Status != billing.PlanOverdue {
			t.Errorf("Status = %s; want %s", respData.Status, billing.PlanOverdue)
		}
	})

	t.Run("retrieve: owner", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/installment-plans/"+heroPlan.ID, heroToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("retrieve: other students' plans stay hidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/installment-plans/"+zeroPlan.ID, heroToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("retrieve: not found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/installment-plans/lol", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
	})
}
