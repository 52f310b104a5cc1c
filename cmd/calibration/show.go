package calibration

import (
	"fmt"

	"github.com/fwctl/fwctl/cmd/global"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the fan calibration table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		points, err := client().CalibrationTable(ctx)
		if err != nil {
			return err
		}
		global.PrintTables(pointTable(points))
		if len(points) > 1 {
			ui.Printfln("%s", plotTable(points))
		}
		return nil
	},
}

func pointTable(points []configuration.CalibrationPoint) table.Table {
	var rows [][]string
	for _, point := range points {
		rows = append(rows, []string{
			fmt.Sprintf("%.0f %%", point.Duty),
			fmt.Sprintf("%.0f", point.Response),
		})
	}
	return table.Table{
		Headers: []string{"Duty", "RPM"},
		Rows:    rows,
	}
}

func plotTable(points []configuration.CalibrationPoint) string {
	values := make([]float64, 0, len(points))
	for _, point := range points {
		values = append(values, point.Response)
	}
	return asciigraph.Plot(
		values,
		asciigraph.Height(15),
		asciigraph.Width(100),
		asciigraph.Caption(fmt.Sprintf("RPM over duty %.0f..%.0f %%", points[0].Duty, points[len(points)-1].Duty)),
	)
}

func init() {
	Command.AddCommand(showCmd)
}
