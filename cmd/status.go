package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fwctl/fwctl/cmd/global"
	"github.com/fwctl/fwctl/internal/api"
	"github.com/fwctl/fwctl/internal/controller"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the state of a running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		status, err := api.NewClient(global.ApiAddress).Status(ctx)
		if err != nil {
			return err
		}

		ui.Printfln("> generation %d, %d samples, calibrating: %v", status.Generation, status.Samples, status.Calibrating)
		global.PrintTables(fanStatusTable(status.Fan), channelTable(status.Power))
		if cpu := status.Power.Cpu; cpu != nil {
			ui.Printfln("> cpu policy: governor %s, epp %s, frequency %s", orNone(cpu.Governor), orNone(cpu.EppPreference), frequencyRange(*cpu))
		}
		return nil
	},
}

func fanStatusTable(fan controller.FanStatus) table.Table {
	return table.Table{
		Headers: []string{"Fan    ", "Mode", "Suspended", "Duty", "Target", "Sensor", "RPM"},
		Rows: [][]string{{
			"", string(fan.Mode), fmt.Sprintf("%v", fan.Suspended),
			formatOptional(fan.Duty, "%.0f %%"),
			formatOptional(fan.Target, "%.0f %%"),
			fan.DrivingSensor + " " + formatOptional(fan.DrivingValue, "%.1f °C"),
			formatOptional(fan.Rpm, "%.0f"),
		}},
	}
}

func channelTable(power controller.PowerStatus) table.Table {
	var rows [][]string
	for _, channel := range []controller.ChannelStatus{power.Tdp, power.Thermal} {
		rows = append(rows, []string{
			"", channel.Name, string(power.Mode), string(channel.Phase),
			formatOptional(channel.Target, "%.1f"),
			formatOptional(channel.State.LastObserved, "%.1f"),
			fmt.Sprintf("%d", channel.ReapplyCount),
		})
	}
	return table.Table{
		Headers: []string{"Power  ", "Channel", "Mode", "Phase", "Target", "Observed", "Reapplied"},
		Rows:    rows,
	}
}

func orNone(value string) string {
	if len(value) <= 0 {
		return "-"
	}
	return value
}

func frequencyRange(cpu controller.CpuPolicyTargets) string {
	if cpu.MinFreqMhz <= 0 || cpu.MaxFreqMhz <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f-%.0f MHz", cpu.MinFreqMhz, cpu.MaxFreqMhz)
}

func formatOptional(value *float64, format string) string {
	if value == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *value)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
