package api

import (
	"net/http"

	"github.com/fwctl/fwctl/internal/calibration"
	"github.com/fwctl/fwctl/internal/controller"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/telemetry"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/qdm12/reprint"
)

// Services are the daemon components exposed by the REST service.
type Services struct {
	Store       *store.Store
	Telemetry   *telemetry.Sampler
	Selector    *controller.ProfileSelector
	Fan         *controller.FanController
	Power       *controller.PowerController
	Battery     *controller.BatteryController
	Calibration *calibration.Sessions
}

type restService struct {
	Services
}

// CreateRestService creates the REST service, request metrics are registered
// at registerer unless it is nil.
func CreateRestService(services Services, registerer prometheus.Registerer) *echo.Echo {
	echoRest := CreateWebserver()

	echoRest.Use(middleware.Logger())
	if registerer != nil {
		echoRest.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem:  "fwctl_api",
			Registerer: registerer,
		}))
	}

	rest := &restService{Services: services}

	echoRest.GET("/alive/", isAlive)
	echoRest.GET("/status/", rest.getStatus)

	rest.registerSettingsEndpoints(echoRest)
	rest.registerTelemetryEndpoints(echoRest)
	rest.registerCalibrationEndpoints(echoRest)

	return echoRest
}

type Status struct {
	Generation  uint64                   `json:"generation"`
	Fan         controller.FanStatus     `json:"fan"`
	Power       controller.PowerStatus   `json:"power"`
	Battery     controller.BatteryStatus `json:"battery"`
	Profile     *controller.Selection    `json:"profile,omitempty"`
	Calibrating bool                     `json:"calibrating"`
	Samples     int                      `json:"samples"`
	Latest      *telemetry.Sample        `json:"latest,omitempty"`
}

func (r *restService) getStatus(c echo.Context) error {
	status := Status{
		Generation:  r.Store.Generation(),
		Fan:         r.Fan.Status(),
		Power:       r.Power.Status(),
		Battery:     r.Battery.Status(),
		Calibrating: r.Calibration.Active(),
		Samples:     r.Telemetry.Buffer().Len(),
	}
	if selection := r.Selector.Current(); selection != nil {
		status.Profile = reprint.This(selection).(*controller.Selection)
	}
	if latest, ok := r.Telemetry.Latest(); ok {
		status.Latest = &latest
	}
	return c.JSONPretty(http.StatusOK, status, indentationChar)
}
