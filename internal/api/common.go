package api

import (
	"errors"
	"net/http"

	"github.com/fwctl/fwctl/internal/calibration"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	indentationChar = "  "
)

type (
	Result struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
)

func CreateWebserver() *echo.Echo {
	webserver := echo.New()
	webserver.HideBanner = true
	webserver.HidePort = true

	// Root level middleware
	webserver.Pre(middleware.AddTrailingSlash())

	webserver.Use(middleware.Secure())
	webserver.Use(middleware.Recover())

	return webserver
}

// returns an empty "ok" answer
func isAlive(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// return a "not found" message
func returnNotFound(c echo.Context, message string) error {
	return c.JSONPretty(http.StatusNotFound, &Result{
		Name:    "Not found",
		Message: message,
	}, indentationChar)
}

func returnBadRequest(c echo.Context, e error) error {
	return c.JSONPretty(http.StatusBadRequest, &Result{
		Name:    "Rejected",
		Message: e.Error(),
	}, indentationChar)
}

// returnError maps e to the matching status code
func returnError(c echo.Context, e error) error {
	var httpError *echo.HTTPError
	switch {
	case errors.As(e, &httpError):
		return httpError
	case errors.Is(e, configuration.ErrConfigurationRejected):
		return returnBadRequest(c, e)
	case errors.Is(e, store.ErrDomainLocked), errors.Is(e, calibration.ErrInProgress):
		return c.JSONPretty(http.StatusConflict, &Result{
			Name:    "Conflict",
			Message: e.Error(),
		}, indentationChar)
	case errors.Is(e, calibration.ErrNoSession):
		return returnNotFound(c, e.Error())
	}
	return c.JSONPretty(http.StatusInternalServerError, &Result{
		Name:    "Unknown Error",
		Message: e.Error(),
	}, indentationChar)
}

// bindPatch reads a JSON object from the request body. Only the fields present
// in the object are changed when it is decoded onto the current settings.
func bindPatch(c echo.Context) (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := new(echo.DefaultBinder).BindBody(c, &body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object")
	}
	return body, nil
}
