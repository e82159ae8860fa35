package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core/billing"
)

type billingApi struct {
	svc      billing.ServiceInterface
	validate *validator.Validate
}

func registerBillingAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc billing.ServiceInterface,
	validate *validator.Validate,
) {
	api := billingApi{
		svc:      svc,
		validate: validate,
	}

	pg := g.Group("/payments", jwt)
	pg.POST("/application-fee", api.recordApplicationFee, adminMiddleware())
	pg.POST("/installment", api.recordInstallment, adminMiddleware())
	pg.GET("", api.queryPayments)

	ig := g.Group("/installment-plans", jwt)
	ig.GET("", api.queryPlans)
	ig.GET("/:id", api.retrievePlan)
}

// planView augments an InstallmentPlan with its derived fields: the balance
// still owed and the status as of the time of the request (a plan persisted
// as active may already be past due).
type planView struct {
	billing.InstallmentPlan
	Balance int64  `json:"balance"`
	Status  string `json:"status"`
}

func newPlanView(plan billing.InstallmentPlan, now time.Time) planView {
	view := planView{
		InstallmentPlan: plan,
		Balance:         plan.Balance(),
		Status:          plan.Status,
	}
	if plan.IsOverdue(now) {
		view.Status = billing.PlanOverdue
	}
	return view
}

func (api *billingApi) recordApplicationFee(ctx echo.Context) error {
	var data billing.NewApplicationFeePayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplicationFeePayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pmt, err := api.svc.RecordApplicationFee(data)
	if err != nil {
		return errors.Wrap(err, "recording application fee")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}

func (api *billingApi) recordInstallment(ctx echo.Context) error {
	var data billing.NewInstallmentPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInstallmentPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pmt, err := api.svc.RecordInstallment(data)
	if err != nil {
		if errors.Cause(err) == billing.ErrPlanNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "recording installment")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}

func (api *billingApi) queryPayments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsStaff() || claims.IsStudent) {
		return errHttpForbidden
	}

	filter := new(billing.PaymentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []billing.Payment{})
	}
	if !claims.IsStaff() {
		// students only ever see their own payments
		filter.StudentID = claims.Subject
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	pmts, err := api.svc.QueryPayments(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if pmts == nil {
		pmts = []billing.Payment{}
	}
	return ctx.JSON(http.StatusOK, pmts)
}

func (api *billingApi) queryPlans(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsStaff() || claims.IsStudent) {
		return errHttpForbidden
	}

	filter := new(billing.PlanFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []planView{})
	}
	if !claims.IsStaff() {
		filter.StudentID = claims.Subject
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	plans, err := api.svc.QueryPlans(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying installment plans")
	}

	now := time.Now().UTC()
	views := make([]planView, 0, len(plans))
	for _, plan := range plans {
		views = append(views, newPlanView(plan, now))
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *billingApi) retrievePlan(ctx echo.Context) error {
	plan, err := api.svc.GetPlan(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == billing.ErrPlanNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting installment plan")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsStaff() && plan.StudentID != claims.Subject {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, newPlanView(plan, time.Now().UTC()))
}
