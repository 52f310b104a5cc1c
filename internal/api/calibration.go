package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fwctl/fwctl/internal/calibration"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/labstack/echo/v4"
)

const (
	queryParamDomain   = "domain"
	queryParamResponse = "response"
)

type CalibrationRequest struct {
	Domain store.Domain `json:"domain"`
	Sweep  []float64    `json:"sweep,omitempty"`
}

type InverseLookup struct {
	Response float64 `json:"response"`
	Duty     float64 `json:"duty"`
}

func (r *restService) registerCalibrationEndpoints(rest *echo.Echo) {
	group := rest.Group("/calibration")

	group.GET("/", r.getCalibration)
	group.POST("/", r.startCalibration)
	group.DELETE("/", r.cancelCalibration)
	group.GET("/table/", r.getCalibrationTable)
	group.GET("/inverse/", r.getInverse)
}

func domainParam(c echo.Context) store.Domain {
	domain := c.QueryParam(queryParamDomain)
	if len(domain) <= 0 {
		return store.DomainFan
	}
	return store.Domain(domain)
}

func (r *restService) getCalibration(c echo.Context) error {
	domain := domainParam(c)
	status, ok := r.Calibration.Status(domain)
	if !ok {
		return returnNotFound(c, fmt.Sprintf("no calibration of domain '%s' since start", domain))
	}
	return c.JSONPretty(http.StatusOK, status, indentationChar)
}

func (r *restService) startCalibration(c echo.Context) error {
	request := CalibrationRequest{Domain: domainParam(c)}
	if c.Request().ContentLength != 0 {
		if err := new(echo.DefaultBinder).BindBody(c, &request); err != nil {
			return err
		}
	}
	if len(request.Domain) <= 0 {
		request.Domain = store.DomainFan
	}

	if _, err := r.Calibration.Start(request.Domain, request.Sweep); err != nil {
		if errors.Is(err, configuration.ErrConfigurationRejected) {
			err = fmt.Errorf("%w: domain '%s' can not be calibrated", err, request.Domain)
		}
		return returnError(c, err)
	}
	status, _ := r.Calibration.Status(request.Domain)
	return c.JSONPretty(http.StatusAccepted, status, indentationChar)
}

func (r *restService) cancelCalibration(c echo.Context) error {
	domain := domainParam(c)
	if err := r.Calibration.Cancel(domain); err != nil {
		return returnError(c, err)
	}
	status, _ := r.Calibration.Status(domain)
	return c.JSONPretty(http.StatusOK, status, indentationChar)
}

func (r *restService) getCalibrationTable(c echo.Context) error {
	points := r.Store.FanCalibration()
	if len(points) <= 0 {
		return returnNotFound(c, "no calibration table, run a calibration first")
	}
	return c.JSONPretty(http.StatusOK, points, indentationChar)
}

// getInverse converts a measured response (e.g. RPM) into the equivalent duty, for display only
func (r *restService) getInverse(c echo.Context) error {
	response, err := strconv.ParseFloat(c.QueryParam(queryParamResponse), 64)
	if err != nil {
		return returnBadRequest(c, fmt.Errorf("invalid response value: %w", err))
	}
	table, err := calibration.NewTable(r.Store.FanCalibration())
	if err != nil {
		return returnNotFound(c, "no calibration table, run a calibration first")
	}
	duty, ok := table.Duty(response)
	if !ok {
		return returnBadRequest(c, fmt.Errorf("response %v is outside of the calibrated range", response))
	}
	return c.JSONPretty(http.StatusOK, InverseLookup{Response: response, Duty: duty}, indentationChar)
}
