package api

import (
	"fmt"
	"net/http"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/labstack/echo/v4"
)

const urlParamSource = "source"

func (r *restService) registerSettingsEndpoints(rest *echo.Echo) {
	rest.GET("/settings/", r.getSettings)

	rest.GET("/fan/", r.getFan)
	rest.PUT("/fan/", r.putFan)

	rest.GET("/power/", r.getPower)
	rest.PUT("/power/", r.putPower)

	rest.GET("/battery/", r.getBattery)
	rest.PUT("/battery/", r.putBattery)

	group := rest.Group("/profile")
	group.GET("/:"+urlParamSource+"/", r.getProfile)
	group.PUT("/:"+urlParamSource+"/", r.putProfile)
}

func (r *restService) getSettings(c echo.Context) error {
	return c.JSONPretty(http.StatusOK, r.Store.Settings(), indentationChar)
}

func (r *restService) getFan(c echo.Context) error {
	return c.JSONPretty(http.StatusOK, r.Store.Fan(), indentationChar)
}

func (r *restService) putFan(c echo.Context) error {
	fan := r.Store.Fan()
	if err := decodePatch(c, &fan); err != nil {
		return returnError(c, err)
	}
	snapshot, err := r.Store.SetFan(fan)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, snapshot.Settings.Fan, indentationChar)
}

func (r *restService) getPower(c echo.Context) error {
	return c.JSONPretty(http.StatusOK, r.Store.Power(), indentationChar)
}

func (r *restService) putPower(c echo.Context) error {
	power := r.Store.Power()
	if err := decodePatch(c, &power); err != nil {
		return returnError(c, err)
	}
	snapshot, err := r.Store.SetPower(power)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, snapshot.Settings.Power, indentationChar)
}

func (r *restService) getBattery(c echo.Context) error {
	return c.JSONPretty(http.StatusOK, r.Store.Battery(), indentationChar)
}

func (r *restService) putBattery(c echo.Context) error {
	battery := r.Store.Battery()
	if err := decodePatch(c, &battery); err != nil {
		return returnError(c, err)
	}
	snapshot, err := r.Store.SetBattery(battery)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, snapshot.Settings.Battery, indentationChar)
}

func powerSourceParam(c echo.Context) (configuration.PowerSource, error) {
	value := c.Param(urlParamSource)
	source, ok := configuration.ParsePowerSource(value)
	if !ok {
		return "", fmt.Errorf("%w: unknown power source '%s', use one of: ac | battery", configuration.ErrConfigurationRejected, value)
	}
	return source, nil
}

func (r *restService) getProfile(c echo.Context) error {
	source, err := powerSourceParam(c)
	if err != nil {
		return returnNotFound(c, err.Error())
	}
	return c.JSONPretty(http.StatusOK, r.Store.Profile(source), indentationChar)
}

func (r *restService) putProfile(c echo.Context) error {
	source, err := powerSourceParam(c)
	if err != nil {
		return returnNotFound(c, err.Error())
	}
	profile := r.Store.Profile(source)
	if err := decodePatch(c, &profile); err != nil {
		return returnError(c, err)
	}
	snapshot, err := r.Store.SetProfile(source, profile)
	if err != nil {
		return returnError(c, err)
	}
	return c.JSONPretty(http.StatusOK, snapshot.Settings.Profiles.Get(source), indentationChar)
}

// decodePatch decodes the request body onto result
func decodePatch(c echo.Context, result interface{}) error {
	body, err := bindPatch(c)
	if err != nil {
		return err
	}
	return configuration.DecodeInto(body, result)
}
