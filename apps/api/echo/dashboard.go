package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/billing"
	"github.com/trezcool/mafunzo/core/course"
	"github.com/trezcool/mafunzo/core/registration"
	"github.com/trezcool/mafunzo/core/user"
)

// recentPaymentCount caps the payment feeds on both dashboards.
const recentPaymentCount = 10

type dashboardApi struct {
	usrSvc    user.ServiceInterface
	courseSvc course.ServiceInterface
	regSvc    registration.ServiceInterface
	billSvc   billing.ServiceInterface
}

func registerDashboardAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.ServiceInterface,
	courseSvc course.ServiceInterface,
	regSvc registration.ServiceInterface,
	billSvc billing.ServiceInterface,
) {
	api := dashboardApi{
		usrSvc:    usrSvc,
		courseSvc: courseSvc,
		regSvc:    regSvc,
		billSvc:   billSvc,
	}

	dg := g.Group("/dashboard", jwt)
	dg.GET("/student", api.student, studentMiddleware())
	dg.GET("/admin", api.admin, adminMiddleware())
}

type studentDashboard struct {
	Registrations  []registration.Registration `json:"registrations"`
	Plans          []planView                  `json:"installment_plans"`
	RecentPayments []billing.Payment           `json:"recent_payments"`
	Courses        []course.Course             `json:"courses"`
}

type adminDashboard struct {
	StudentCount         int               `json:"student_count"`
	PublishedCourseCount int               `json:"published_course_count"`
	PendingRegistrations int               `json:"pending_registrations"`
	OverduePlans         []planView        `json:"overdue_plans"`
	ApplicationFeesTotal int64             `json:"application_fees_total"`
	InstallmentsTotal    int64             `json:"installments_total"`
	RecentPayments       []billing.Payment `json:"recent_payments"`
}

func (api *dashboardApi) student(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	regs, err := api.regSvc.Query(&registration.QueryFilter{StudentID: claims.Subject}, nil)
	if err != nil {
		return errors.Wrap(err, "querying registrations")
	}

	plans, err := api.billSvc.QueryPlans(&billing.PlanFilter{StudentID: claims.Subject}, nil)
	if err != nil {
		return errors.Wrap(err, "querying installment plans")
	}
	now := time.Now().UTC()
	planViews := make([]planView, 0, len(plans))
	for _, plan := range plans {
		planViews = append(planViews, newPlanView(plan, now))
	}

	pmts, err := api.billSvc.QueryPayments(
		&billing.PaymentFilter{StudentID: claims.Subject},
		[]core.DBOrdering{{Field: "received_at", Ascending: false}},
	)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if len(pmts) > recentPaymentCount {
		pmts = pmts[:recentPaymentCount]
	}

	courses, err := api.courseSvc.Query(&course.QueryFilter{PublishedOnly: true}, nil)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}

	if regs == nil {
		regs = []registration.Registration{}
	}
	if pmts == nil {
		pmts = []billing.Payment{}
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, studentDashboard{
		Registrations:  regs,
		Plans:          planViews,
		RecentPayments: pmts,
		Courses:        courses,
	})
}

func (api *dashboardApi) admin(ctx echo.Context) error {
	students, err := api.usrSvc.Query(&user.QueryFilter{Roles: user.StudentRoles}, nil)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}

	courses, err := api.courseSvc.Query(&course.QueryFilter{PublishedOnly: true}, nil)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}

	pending, err := api.regSvc.Query(&registration.QueryFilter{Status: registration.StatusPending}, nil)
	if err != nil {
		return errors.Wrap(err, "querying pending registrations")
	}

	plans, err := api.billSvc.QueryPlans(&billing.PlanFilter{Status: billing.PlanActive}, nil)
	if err != nil {
		return errors.Wrap(err, "querying active installment plans")
	}
	overdue, err := api.billSvc.QueryPlans(&billing.PlanFilter{Status: billing.PlanOverdue}, nil)
	if err != nil {
		return errors.Wrap(err, "querying overdue installment plans")
	}
	// active plans already past their due date count as overdue too
	now := time.Now().UTC()
	overdueViews := make([]planView, 0, len(overdue))
	for _, plan := range overdue {
		overdueViews = append(overdueViews, newPlanView(plan, now))
	}
	for _, plan := range plans {
		if plan.IsOverdue(now) {
			overdueViews = append(overdueViews, newPlanView(plan, now))
		}
	}

	feesTotal, err := api.billSvc.TotalReceived(billing.KindApplicationFee)
	if err != nil {
		return errors.Wrap(err, "summing application fees")
	}
	installmentsTotal, err := api.billSvc.TotalReceived(billing.KindInstallment)
	if err != nil {
		return errors.Wrap(err, "summing installments")
	}

	pmts, err := api.billSvc.QueryPayments(
		new(billing.PaymentFilter),
		[]core.DBOrdering{{Field: "received_at", Ascending: false}},
	)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if len(pmts) > recentPaymentCount {
		pmts = pmts[:recentPaymentCount]
	}

	if pmts == nil {
		pmts = []billing.Payment{}
	}
	return ctx.JSON(http.StatusOK, adminDashboard{
		StudentCount:         len(students),
		PublishedCourseCount: len(courses),
		PendingRegistrations: len(pending),
		OverduePlans:         overdueViews,
		ApplicationFeesTotal: feesTotal,
		InstallmentsTotal:    installmentsTotal,
		RecentPayments:       pmts,
	})
}
