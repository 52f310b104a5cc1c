package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/labstack/echo/v4"
)

const queryParamSince = "since"

func (r *restService) registerTelemetryEndpoints(rest *echo.Echo) {
	group := rest.Group("/telemetry")

	group.GET("/policy/", r.getTelemetryPolicy)
	group.PUT("/policy/", r.putTelemetryPolicy)
	group.GET("/samples/", r.getSamples)
}

func (r *restService) getTelemetryPolicy(c echo.Context) error {
	return c.JSONPretty(http.StatusOK, r.Store.TelemetryPolicy(), indentationChar)
}

func (r *restService) putTelemetryPolicy(c echo.Context) error {
	policy := r.Store.TelemetryPolicy()
	if err := decodePatch(c, &policy); err != nil {
		return returnError(c, err)
	}
	snapshot, err := r.Store.SetTelemetryPolicy(policy)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, snapshot.Settings.Telemetry, indentationChar)
}

// getSamples returns the retained samples, since is either an RFC 3339 timestamp
// or a duration relative to now, e.g. "5m"
func (r *restService) getSamples(c echo.Context) error {
	since, err := parseSince(c.QueryParam(queryParamSince), time.Now())
	if err != nil {
		return returnBadRequest(c, err)
	}
	return c.JSONPretty(http.StatusOK, r.Telemetry.Recent(since), indentationChar)
}

func parseSince(value string, now time.Time) (time.Time, error) {
	if len(value) <= 0 {
		return time.Time{}, nil
	}
	if timestamp, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return timestamp, nil
	}
	if duration, err := time.ParseDuration(value); err == nil {
		if duration < 0 {
			duration = -duration
		}
		return now.Add(-duration), nil
	}
	return time.Time{}, fmt.Errorf("%w: since '%s' is neither a timestamp nor a duration", configuration.ErrConfigurationRejected, value)
}
