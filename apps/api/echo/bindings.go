package echoapi

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/mafunzo/core"
)

var (
	orderingParam = "ordering"

	// columnRegex keeps ordering fields to plain column names; anything else
	// would be concatenated raw into the ORDER BY clause
	columnRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !columnRegex.MatchString(field) {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r LoginRequest) Validate(validate *validator.Validate) error { return validate.Struct(r) }

type LoginResponse struct {
	Token string `json:"token"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r PasswordResetRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type SuccessResponse struct {
	Success string `json:"success"`
}

type DestroyMultipleRequest struct {
	IDs []string `query:"id"`
}
