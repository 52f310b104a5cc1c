package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/fwctl/fwctl/cmd/global"
	"github.com/fwctl/fwctl/internal/api"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/telemetry"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/fwctl/fwctl/internal/util"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var (
	since  string
	sensor string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Shows the retained telemetry samples",
	Long:  `Prints the latest sample and plots the temperature of a sensor over the retained samples`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		samples, err := api.NewClient(global.ApiAddress).Samples(ctx, since)
		if err != nil {
			return err
		}
		if len(samples) <= 0 {
			ui.Warning("No samples retained")
			return nil
		}

		latest := samples[len(samples)-1]
		ui.Printfln("> %s", latest.Timestamp.Local().Format(time.DateTime))
		global.PrintTables(temperatureTable(latest), batteryTable(latest))

		values := sensorValues(samples, sensor)
		if len(values) > 1 {
			ui.Printfln("%s", asciigraph.Plot(
				values,
				asciigraph.Height(15),
				asciigraph.Width(100),
				asciigraph.Caption(fmt.Sprintf("%s °C, %d samples", sensor, len(values))),
			))
		}
		return nil
	},
}

func temperatureTable(sample telemetry.Sample) table.Table {
	var rows [][]string
	for _, name := range util.SortedKeys(sample.Temperatures) {
		rows = append(rows, []string{name, fmt.Sprintf("%.1f", sample.Temperatures[name])})
	}
	for idx, rpm := range sample.FanRpms {
		rows = append(rows, []string{fmt.Sprintf("Fan %d", idx), fmt.Sprintf("%.0f RPM", rpm)})
	}
	return table.Table{
		Headers: []string{"Sensor", "Value"},
		Rows:    rows,
	}
}

func batteryTable(sample telemetry.Sample) table.Table {
	battery := sample.Battery
	if battery == nil {
		return table.Table{}
	}
	ac := "N/A"
	if battery.AcPresent != nil {
		ac = fmt.Sprintf("%v", *battery.AcPresent)
	}
	return table.Table{
		Headers: []string{"AC", "Charge", "Rate", "Voltage", "Cycles", "Charging"},
		Rows: [][]string{{
			ac,
			optional(battery.ChargePct, "%.0f %%"),
			optional(battery.RateMa, "%.0f mA"),
			optional(battery.VoltageMv, "%.0f mV"),
			optionalInt(battery.CycleCount),
			fmt.Sprintf("%v", battery.Charging),
		}},
	}
}

// sensorValues returns the values of the given sensor, samples without it are skipped
func sensorValues(samples []telemetry.Sample, name string) []float64 {
	values := make([]float64, 0, len(samples))
	for _, sample := range samples {
		if value, ok := sample.Temperatures[name]; ok {
			values = append(values, value)
		}
	}
	return values
}

func optional(value *float64, format string) string {
	if value == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *value)
}

func optionalInt(value *int) string {
	if value == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *value)
}

func init() {
	showCmd.Flags().StringVarP(&since, "since", "", "10m", "RFC3339 timestamp or duration before now")
	showCmd.Flags().StringVarP(&sensor, "sensor", "s", configuration.DefaultFallbackSensor, "Sensor to plot")
	Command.AddCommand(showCmd)
}
