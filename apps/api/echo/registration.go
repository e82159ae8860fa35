package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core/registration"
)

type registrationApi struct {
	svc      registration.ServiceInterface
	validate *validator.Validate
}

func registerRegistrationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc registration.ServiceInterface,
	validate *validator.Validate,
) {
	api := registrationApi{
		svc:      svc,
		validate: validate,
	}

	rg := g.Group("/registrations", jwt)
	rg.POST("", api.apply, studentMiddleware())
	rg.GET("", api.query)
	rg.PUT("/:id/approve", api.approve, adminMiddleware())
	rg.PUT("/:id/reject", api.reject, adminMiddleware())
}

func (api *registrationApi) apply(ctx echo.Context) error {
	var data registration.NewRegistration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRegistration")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	reg, err := api.svc.Apply(claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "applying for course")
	}
	return ctx.JSON(http.StatusCreated, reg)
}

func (api *registrationApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsStaff() || claims.IsStudent) {
		return errHttpForbidden
	}

	filter := new(registration.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []registration.Registration{})
	}
	if !claims.IsStaff() {
		// students only ever see their own registrations
		filter.StudentID = claims.Subject
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	regs, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying registrations")
	}
	if regs == nil {
		regs = []registration.Registration{}
	}
	return ctx.JSON(http.StatusOK, regs)
}

func (api *registrationApi) approve(ctx echo.Context) error {
	return api.decide(ctx, api.svc.Approve)
}

func (api *registrationApi) reject(ctx echo.Context) error {
	return api.decide(ctx, api.svc.Reject)
}

func (api *registrationApi) decide(
	ctx echo.Context,
	decide func(id string, d registration.Decision) (registration.Registration, error),
) error {
	var data registration.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reg, err := decide(ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == registration.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deciding registration")
	}
	return ctx.JSON(http.StatusOK, reg)
}
