package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/fwctl/fwctl/cmd/global"
	"github.com/fwctl/fwctl/internal"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/hwmon"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect sensors",
	Long:  `Detects all temperature sensors and fans of the embedded controller and lm-sensors and prints them as a list`,
	Run: func(cmd *cobra.Command, args []string) {
		configuration.LoadConfig()

		printEmbeddedController(cmd.Context())

		for _, chip := range hwmon.GetChips() {
			if len(chip.Name) <= 0 {
				continue
			}
			ui.Printfln("> %s", chip.Name)

			var fanRows [][]string
			for _, fan := range chip.Fans {
				fanRows = append(fanRows, []string{
					"", strconv.Itoa(fan.Index), fan.Label, strconv.Itoa(int(fan.Rpm)),
				})
			}
			fanTable := table.Table{
				Headers: []string{"Fans   ", "Index", "Label", "RPM"},
				Rows:    fanRows,
			}

			var sensorRows [][]string
			for _, sensor := range chip.Sensors {
				_, file := filepath.Split(sensor.Input)
				sensorRows = append(sensorRows, []string{
					"", strconv.Itoa(sensor.Index), fmt.Sprintf("%s (%s)", sensor.Label, file), fmt.Sprintf("%.1f", sensor.Value),
				})
			}
			sensorTable := table.Table{
				Headers: []string{"Sensors", "Index", "Label", "Value"},
				Rows:    sensorRows,
			}

			global.PrintTables(fanTable, sensorTable)
		}
	},
}

func printEmbeddedController(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := internal.CreatePlatform(configuration.CurrentConfig.Platform)
	if err != nil {
		ui.Warning("Embedded controller not available: %v", err)
		return
	}
	reading, err := p.ReadThermal(ctx)
	if err != nil {
		ui.Warning("Unable to read embedded controller sensors: %v", err)
		return
	}

	ui.Printfln("> %s", "embedded controller")

	var fanRows [][]string
	for idx, rpm := range reading.FanRpms {
		fanRows = append(fanRows, []string{"", strconv.Itoa(idx), "", strconv.Itoa(int(rpm))})
	}

	names := make([]string, 0, len(reading.Temperatures))
	for name := range reading.Temperatures {
		names = append(names, name)
	}
	sort.Strings(names)
	var sensorRows [][]string
	for idx, name := range names {
		sensorRows = append(sensorRows, []string{
			"", strconv.Itoa(idx + 1), name, fmt.Sprintf("%.1f", reading.Temperatures[name]),
		})
	}

	global.PrintTables(
		table.Table{Headers: []string{"Fans   ", "Index", "Label", "RPM"}, Rows: fanRows},
		table.Table{Headers: []string{"Sensors", "Index", "Label", "Value"}, Rows: sensorRows},
	)
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
