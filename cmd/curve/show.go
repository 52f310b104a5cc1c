package curve

import (
	"fmt"

	"github.com/fwctl/fwctl/cmd/global"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/curves"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Shows the configured fan curve",
	Long:  `Prints the normalized points of the fan curve of the configuration file and plots the resulting duty per temperature`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configuration.DetectAndReadConfigFile()
		configuration.LoadConfig()

		config := configuration.CurrentConfig.Fan.Curve
		curve, err := curves.NewFanCurve(config.Points)
		if err != nil {
			return err
		}

		global.PrintTables(
			table.Table{
				Headers: []string{"Sensors", "Fallback", "Hysteresis", "Rate Limit", "Poll Interval"},
				Rows: [][]string{{
					fmt.Sprintf("%v", config.Sensors),
					config.FallbackSensor,
					fmt.Sprintf("%.1f", config.Hysteresis),
					fmt.Sprintf("%.1f", config.RateLimit),
					config.PollInterval.String(),
				}},
			},
			pointTable(curve),
		)
		ui.Printfln("%s", plotCurve(curve))
		return nil
	},
}

func pointTable(curve *curves.Curve) table.Table {
	var rows [][]string
	for _, point := range curve.Points() {
		rows = append(rows, []string{
			fmt.Sprintf("%.0f °C", point.Input),
			fmt.Sprintf("%.1f %%", point.Output),
		})
	}
	return table.Table{
		Headers: []string{"Temperature", "Duty"},
		Rows:    rows,
	}
}

// plotCurve plots the duty for every degree of the curve domain
func plotCurve(curve *curves.Curve) string {
	domain := curve.Domain()
	var values []float64
	for x := domain.MinInput; x <= domain.MaxInput; x++ {
		values = append(values, curve.Interpolate(x))
	}
	return asciigraph.Plot(
		values,
		asciigraph.Height(15),
		asciigraph.Width(100),
		asciigraph.Caption(fmt.Sprintf("Duty %% over %.0f..%.0f °C", domain.MinInput, domain.MaxInput)),
	)
}

func init() {
	Command.AddCommand(showCmd)
}
