package configuration

import (
	"os"
	"time"

	"github.com/fwctl/fwctl/internal/ui"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Configuration struct {
	DbPath string `json:"dbPath"`

	Platform    PlatformConfig    `json:"platform"`
	Calibration CalibrationConfig `json:"calibration"`

	Api        ApiConfig        `json:"api"`
	Statistics StatisticsConfig `json:"statistics"`

	// runtime adjustable part of the configuration, persisted values take precedence
	Settings `mapstructure:",squash"`
}

var CurrentConfig Configuration

// InitConfig reads in config file and ENV variables if set.
func InitConfig(cfgFile string) {
	viper.SetConfigName("fwctl")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			ui.Error("Couldn't detect home directory: %v", err)
			os.Exit(1)
		}

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.AddConfigPath("/etc/fwctl/")
	}

	viper.SetEnvPrefix("fwctl")
	viper.AutomaticEnv() // read in environment variables that match

	setDefaultValues()
}

func setDefaultValues() {
	viper.SetDefault("dbpath", "/etc/fwctl/fwctl.db")

	viper.SetDefault("platform.commandTimeout", 5*time.Second)
	viper.SetDefault("platform.thermalCacheTtl", 1*time.Second)
	viper.SetDefault("platform.powerCacheTtl", 2*time.Second)
	viper.SetDefault("platform.frameworkTool.path", "framework_tool")
	viper.SetDefault("platform.lmSensors", false)
	viper.SetDefault("platform.cpufreq.enabled", true)
	viper.SetDefault("platform.cpufreq.path", "/sys/devices/system/cpu")

	viper.SetDefault("calibration.sweep", []float64{100, 80, 60, 40, 20})
	viper.SetDefault("calibration.sampleInterval", 1*time.Second)
	viper.SetDefault("calibration.windowSize", 5)
	viper.SetDefault("calibration.stdDevThreshold", 40.0)
	viper.SetDefault("calibration.levelTimeout", 20*time.Second)

	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.host", "127.0.0.1")
	viper.SetDefault("api.port", 8731)

	viper.SetDefault("statistics.enabled", false)
	viper.SetDefault("statistics.port", 9000)

	viper.SetDefault("fan.mode", FanModeDisabled)
	viper.SetDefault("fan.manual.dutyPct", 50.0)
	viper.SetDefault("fan.releaseOnDisable", true)
	viper.SetDefault("fan.curve.points", DefaultCurvePoints())
	viper.SetDefault("fan.curve.sensors", []string{})
	viper.SetDefault("fan.curve.fallbackSensor", DefaultFallbackSensor)
	viper.SetDefault("fan.curve.pollInterval", 2*time.Second)
	viper.SetDefault("fan.curve.hysteresis", 2.0)
	viper.SetDefault("fan.curve.rateLimit", 100.0)

	viper.SetDefault("power.mode", PowerModeDisabled)
	viper.SetDefault("power.reapply.pollInterval", 2*time.Second)
	viper.SetDefault("power.reapply.tolerance", 1.0)
	viper.SetDefault("power.reapply.quietWindow", 6*time.Second)
	viper.SetDefault("power.reapply.cooldown", 30*time.Second)

	viper.SetDefault("battery.mode", BatteryModeDisabled)
	viper.SetDefault("battery.pollInterval", 5*time.Second)
	viper.SetDefault("battery.reapplyInterval", 30*time.Minute)

	viper.SetDefault("profiles.pollInterval", 2*time.Second)

	viper.SetDefault("telemetry.pollMs", DefaultTelemetryPollMs)
	viper.SetDefault("telemetry.retainSeconds", DefaultTelemetryRetainSeconds)
}

// DetectAndReadConfigFile detects the path of the first existing config file
// and reads it. A missing config file is not an error, defaults are used instead.
func DetectAndReadConfigFile() string {
	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			ui.Warning("No config file found, using defaults")
			return ""
		}
		ui.Fatal("Error reading config file, %s", err)
	}
	return DetectConfigFile()
}

// DetectConfigFile returns the path of the config file in use.
// This is only populated _after_ ReadInConfig()
func DetectConfigFile() string {
	return viper.ConfigFileUsed()
}

func LoadConfig() {
	// load default configuration values
	err := viper.Unmarshal(&CurrentConfig, viper.DecodeHook(decodeHooks()))
	if err != nil {
		ui.Fatal("unable to decode into struct, %v", err)
	}
}

// DecodeInto decodes a generic value (e.g. a JSON object) onto result, using the same
// rules as the config file. Fields missing in input keep their current value, lists are replaced.
func DecodeInto(input interface{}, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: decodeHooks(),
		ZeroFields: true,
		Result:     result,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return rejected("%v", err)
	}
	return nil
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		curvePointsHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
