package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fwctl/fwctl/internal/api"
	"github.com/fwctl/fwctl/internal/calibration"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/controller"
	"github.com/fwctl/fwctl/internal/hwmon"
	"github.com/fwctl/fwctl/internal/persistence"
	"github.com/fwctl/fwctl/internal/platform"
	"github.com/fwctl/fwctl/internal/statistics"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/telemetry"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
)

func RunDaemon() {
	if getProcessOwner() != "root" {
		ui.Fatal("fwctl requires root permissions to be able to control the embedded controller, please run fwctl as root")
	}

	config := configuration.CurrentConfig

	pers := persistence.NewPersistence(config.DbPath)
	if err := pers.Init(); err != nil {
		ui.ErrorAndNotify("Persistence Error", "Unable to open database %s: %v", config.DbPath, err)
		os.Exit(1)
	}
	settings := LoadSettings(pers, config.Settings)

	p, err := CreatePlatform(config.Platform)
	if err != nil {
		ui.ErrorAndNotify("Platform Error", "%v", err)
		os.Exit(1)
	}

	s := store.New(settings, pers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sampler := telemetry.NewSampler(p, s.TelemetryPolicy)
	selector := controller.NewProfileSelector(s, sampler)
	fan := controller.NewFanController(p, s)
	power := controller.NewPowerController(p, s, selector)
	battery := controller.NewBatteryController(p, s, selector)
	sessions := calibration.NewSessions(ctx, func() *calibration.Engine {
		return calibration.NewEngine(p, s, fan)
	}, func() configuration.CalibrationConfig {
		return configuration.CurrentConfig.Calibration
	})

	statistics.Register(statistics.NewFanCollector(fan))
	statistics.Register(statistics.NewCurveCollector(fan))
	statistics.Register(statistics.NewControllerCollector(power, battery))
	statistics.Register(statistics.NewTelemetryCollector(sampler.Buffer()))
	statistics.Register(statistics.NewCalibrationCollector(sessions, func() int {
		return len(s.FanCalibration())
	}))

	var g run.Group
	{
		if config.Statistics.Enabled {
			// === Prometheus Exporter
			port := config.Statistics.Port
			if port <= 0 || port >= 65535 {
				port = 9000
			}
			webserver := api.CreateWebserver()
			webserver.GET("/metrics/", echoprometheus.NewHandler())
			addServer(&g, ctx, cancel, "statistics", webserver.Start, webserver.Shutdown, fmt.Sprintf(":%d", port))
		}
	}
	{
		if config.Api.Enabled {
			// === REST API
			rest := api.CreateRestService(api.Services{
				Store:       s,
				Telemetry:   sampler,
				Selector:    selector,
				Fan:         fan,
				Power:       power,
				Battery:     battery,
				Calibration: sessions,
			}, prometheus.DefaultRegisterer)
			addr := fmt.Sprintf("%s:%d", config.Api.Host, config.Api.Port)
			addServer(&g, ctx, cancel, "REST API", rest.Start, rest.Shutdown, addr)
		}
	}
	{
		// === control loops
		addActor(&g, ctx, cancel, "Telemetry sampler", sampler.Run)
		addActor(&g, ctx, cancel, "Profile selector", selector.Run)
		addActor(&g, ctx, cancel, "Fan controller", fan.Run)
		addActor(&g, ctx, cancel, "Power controller", power.Run)
		addActor(&g, ctx, cancel, "Battery controller", battery.Run)
	}
	{
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		g.Add(func() error {
			select {
			case <-sig:
				ui.Info("Received SIGTERM signal, exiting...")
			case <-ctx.Done():
			}
			return nil
		}, func(err error) {
			signal.Stop(sig)
			cancel()
		})
	}

	if err := g.Run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	} else {
		ui.Info("Done.")
		os.Exit(0)
	}
}

func addActor(g *run.Group, ctx context.Context, cancel context.CancelFunc, name string, actor func(ctx context.Context) error) {
	g.Add(func() error {
		err := actor(ctx)
		ui.Info("%s stopped.", name)
		return err
	}, func(err error) {
		if err != nil {
			ui.Warning("%s: %v", name, err)
		}
		cancel()
	})
}

func addServer(g *run.Group, ctx context.Context, cancel context.CancelFunc, name string, start func(addr string) error, shutdown func(ctx context.Context) error, addr string) {
	g.Add(func() error {
		failed := make(chan error, 1)
		go func() {
			ui.Info("Starting %s on %s", name, addr)
			if err := start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				failed <- err
			}
		}()

		select {
		case err := <-failed:
			ui.Error("Cannot start %s (%s)", name, err.Error())
			return err
		case <-ctx.Done():
			ui.Info("Stopping %s...", name)
			timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer timeoutCancel()
			return shutdown(timeoutCtx)
		}
	}, func(err error) {
		if err != nil {
			ui.Warning("Error stopping %s: %v", name, err)
		} else {
			ui.Info("%s stopped.", name)
		}
		cancel()
	})
}

// LoadSettings returns the persisted runtime settings, if any, and the persisted
// calibration table. Invalid persisted settings are ignored in favor of defaults.
func LoadSettings(pers persistence.Persistence, defaults configuration.Settings) configuration.Settings {
	settings := defaults
	persisted, err := pers.LoadSettings()
	switch {
	case errors.Is(err, os.ErrNotExist):
		ui.Debug("No persisted settings found, using the configuration file")
	case err != nil:
		ui.Warning("Unable to load persisted settings: %v", err)
	default:
		if err := configuration.ValidateSettings(&persisted); err != nil {
			ui.Warning("Ignoring persisted settings: %v", err)
		} else {
			ui.Info("Using persisted settings, run 'fwctl config reset' to return to the configuration file")
			settings = persisted
		}
	}

	table, err := pers.LoadCalibration(string(store.DomainFan))
	switch {
	case errors.Is(err, os.ErrNotExist):
		settings.FanCalibration = nil
	case err != nil:
		ui.Warning("Unable to load calibration table: %v", err)
	default:
		settings.FanCalibration = table
	}
	return settings
}

// CreatePlatform builds the platform from its configuration, failing if framework_tool can not be found
func CreatePlatform(config configuration.PlatformConfig) (*platform.Composite, error) {
	if _, err := exec.LookPath(config.FrameworkTool.Path); err != nil {
		return nil, fmt.Errorf("framework_tool not found at '%s': %w", config.FrameworkTool.Path, err)
	}
	ec := platform.NewFrameworkTool(config.FrameworkTool.Path, config.FrameworkTool.FanIndex, config.CommandTimeout)
	return newComposite(ec, config), nil
}

func newComposite(ec platform.EmbeddedController, config configuration.PlatformConfig) *platform.Composite {
	options := []platform.CompositeOption{
		platform.WithCacheTtl(config.ThermalCacheTtl, config.PowerCacheTtl),
	}
	if config.LmSensors {
		options = append(options, platform.WithThermalSource(hwmon.NewLmSensors()))
	}
	switch {
	case config.Limits.RyzenAdj != nil:
		options = append(options, platform.WithLimitsBackend(platform.NewRyzenAdj(config.Limits.RyzenAdj.Path, config.CommandTimeout)))
	case config.Limits.Rapl != nil:
		options = append(options, platform.WithLimitsBackend(platform.NewRapl(config.Limits.Rapl.Path)))
	default:
		ui.Warning("No limits backend configured, TDP and thermal limits can not be applied")
	}
	if config.Cpufreq.Enabled {
		options = append(options, platform.WithCpuPolicy(platform.NewCpufreq(config.Cpufreq.Path)))
	}
	return platform.NewComposite(ec, options...)
}

func getProcessOwner() string {
	stdout, err := exec.Command("ps", "-o", "user=", "-p", strconv.Itoa(os.Getpid())).Output()
	if err != nil {
		ui.Fatal("Error checking process owner: %v", err)
		os.Exit(1)
	}
	return strings.TrimSpace(string(stdout))
}
