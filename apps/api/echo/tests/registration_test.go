package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/mafunzo/core/billing"
	"github.com/trezcool/mafunzo/core/registration"
	"github.com/trezcool/mafunzo/core/user"
	testutil "github.com/trezcool/mafunzo/tests"
)

func Test_registrationApi_apply(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	broke := testutil.CreateUser(t, usrRepo, "Broke", "broke", "broke@test.cd", "", []string{user.RoleStudent}, true)

	golang := testutil.CreateCourse(t, courseRepo, "go101", "Go Programming", 5000, 120000, 4, true)
	draft := testutil.CreateCourse(t, courseRepo, "rust101", "Rust Programming", 5000, 150000, 4, false)

	now := time.Now().UTC()
	testutil.CreatePayment(t, billRepo, hero.ID, golang.ID, "", billing.KindApplicationFee, 5000, now)
	testutil.CreatePayment(t, billRepo, hero.ID, draft.ID, "", billing.KindApplicationFee, 5000, now)

	heroToken := getToken(t, hero)

	apply := func(courseID string) []byte {
		return marchallObj(t, registration.NewRegistration{CourseID: courseID})
	}

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/v1/registrations", body: apply(golang.ID),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "students only", method: http.MethodPost, path: "/v1/registrations", token: getToken(t, admin),
			body:     apply(golang.ID),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "course required", method: http.MethodPost, path: "/v1/registrations", token: heroToken,
			body:     marchallObj(t, registration.NewRegistration{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"course_id": "this field is required"}),
		},
		{
			name: "course must be published", method: http.MethodPost, path: "/v1/registrations", token: heroToken,
			body:     apply(draft.ID),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "course is not open for registration"}),
		},
		{
			name: "application fee must be paid", method: http.MethodPost, path: "/v1/registrations",
			token: getToken(t, broke), body: apply(golang.ID),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "application fee has not been paid for this course"}),
		},
		{
			name: "applied", method: http.MethodPost, path: "/v1/registrations", token: heroToken,
			body: apply(golang.ID), wantCode: http.StatusCreated,
		},
		{
			name: "no duplicate live registration", method: http.MethodPost, path: "/v1/registrations", token: heroToken,
			body:     apply(golang.ID),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "a live registration already exists for this course"}),
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
				var respData registration.Registration
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Status != registration.StatusPending {
					t.Errorf("Status = %s; want %s", respData.Status, registration.StatusPending)
				}
				if respData.StudentID != hero.ID {
					t.Errorf("StudentID = %s; want %s", respData.StudentID, hero.ID)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_registrationApi_query(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	zero := testutil.CreateUser(t, usrRepo, "Zero", "zero", "zero@test.cd", "", []string{user.RoleStudent}, true)

	golang := testutil.CreateCourse(t, courseRepo, "go101", "Go Programming", 5000, 120000, 4, true)
	python := testutil.CreateCourse(t, courseRepo, "py101", "Python Programming", 5000, 100000, 2, true)

	heroGo := testutil.CreateRegistration(t, regRepo, hero.ID, golang.ID, registration.StatusApproved)
	heroPy := testutil.CreateRegistration(t, regRepo, hero.ID, python.ID, registration.StatusPending)
	zeroGo := testutil.CreateRegistration(t, regRepo, zero.ID, golang.ID, registration.StatusRejected)

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodGet, path: "/v1/registrations",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "staff sees all", method: http.MethodGet, path: "/v1/registrations", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, heroGo, heroPy, zeroGo),
		},
		{
			name: "staff filters by status", method: http.MethodGet,
			path: "/v1/registrations?status=" + registration.StatusPending, token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, heroPy),
		},
		{
			name: "staff filters by course", method: http.MethodGet,
			path: "/v1/registrations?course_id=" + golang.ID, token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, heroGo, zeroGo),
		},
		{
			name: "students see their own only", method: http.MethodGet, path: "/v1/registrations",
			token:    getToken(t, hero),
			wantCode: http.StatusOK, wantData: marchallList(t, heroGo, heroPy),
		},
		{
			name: "students cannot peek via filter", method: http.MethodGet,
			path: "/v1/registrations?student_id=" + zero.ID, token: getToken(t, hero),
			wantCode: http.StatusOK, wantData: marchallList(t, heroGo, heroPy),
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

func Test_registrationApi_decide(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	golang := testutil.CreateCourse(t, courseRepo, "go101", "Go Programming", 5000, 120000, 4, true)
	python := testutil.CreateCourse(t, courseRepo, "py101", "Python Programming", 5000, 100000, 2, true)

	pendingGo := testutil.CreateRegistration(t, regRepo, hero.ID, golang.ID, registration.StatusPending)
	pendingPy := testutil.CreateRegistration(t, regRepo, hero.ID, python.ID, registration.StatusPending)

	adminToken := getToken(t, admin)
	decision := marchallObj(t, registration.Decision{Note: "welcome aboard"})

	tests := []httpTest{
		{
			name: "approve: admin required", method: http.MethodPut,
			path: "/v1/registrations/" + pendingGo.ID + "/approve", token: getToken(t, hero), body: decision,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "approve: not found", method: http.MethodPut,
			path: "/v1/registrations/lol/approve", token: adminToken, body: decision,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "approved", method: http.MethodPut,
			path: "/v1/registrations/" + pendingGo.ID + "/approve", token: adminToken, body: decision,
			wantCode: http.StatusOK,
		},
		{
			name: "approve: already decided", method: http.MethodPut,
			path: "/v1/registrations/" + pendingGo.ID + "/approve", token: adminToken, body: decision,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "registration has already been decided"}),
		},
		{
			name: "rejected", method: http.MethodPut,
			path: "/v1/registrations/" + pendingPy.ID + "/reject", token: adminToken,
			body: marchallObj(t, registration.Decision{Note: "try next intake"}),
			wantCode: http.StatusOK,
		},
		{
			name: "reject: already decided", method: http.MethodPut,
			path: "/v1/registrations/" + pendingPy.ID + "/reject", token: adminToken, body: decision,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "registration has already been decided"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var respData registration.Registration
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.IsPending() {
					t.Error("failed! registration still pending")
				}
				if respData.DecidedAt.IsZero() {
					t.Error("failed! DecidedAt not set")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	// approval opens the installment plan from the course-fee snapshot
	plans, err := billRepo.QueryPlans(context.Background(), &billing.PlanFilter{StudentID: hero.ID}, nil)
	if err != nil {
		t.Fatalf("QueryPlans() failed: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("len(plans) = %d; want 1", len(plans))
	}
	plan := plans[0]
	if plan.RegistrationID != pendingGo.ID || plan.CourseID != golang.ID {
		t.Errorf("plan bound to %s/%s; want %s/%s", plan.RegistrationID, plan.CourseID, pendingGo.ID, golang.ID)
	}
	if plan.TotalFee != golang.CourseFee || plan.Installments != golang.MaxInstallments {
		t.Errorf("plan snapshot = %d/%d; want %d/%d", plan.TotalFee, plan.Installments, golang.CourseFee, golang.MaxInstallments)
	}
	if plan.InstallmentAmount != golang.CourseFee/int64(golang.MaxInstallments) {
		t.Errorf("InstallmentAmount = %d; want %d", plan.InstallmentAmount, golang.CourseFee/int64(golang.MaxInstallments))
	}
}
