package http

import (
	"errors"
	"fmt"

	"MarketPulse/pkg/validate"

	"github.com/labstack/echo/v4"
)

// ReadAndValidateRequest binds the request, applies defaults and validates it.
// It returns nil on success or the []ValidationError to send back.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return bindErrors(err)
	}
	if err := validate.Struct(c.Request().Context(), req); err != nil {
		return validate.Fields(err)
	}
	return nil
}

func bindErrors(err error) []ValidationError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{
			Code:    "ERR_BIND",
			Message: fmt.Sprintf("%v", he.Message),
		}}
	}
	return validate.Fields(err)
}
