package calibration

import (
	"context"
	"fmt"
	"time"

	"github.com/fwctl/fwctl/cmd/global"
	"github.com/fwctl/fwctl/internal/api"
	"github.com/fwctl/fwctl/internal/calibration"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/spf13/cobra"
)

var (
	sweep        []float64
	wait         bool
	pollInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Starts a calibration run",
	Long: `Starts a calibration run on the daemon. The fan is driven through the sweep levels
and the measured RPM of every level is recorded. The controller of the domain is suspended meanwhile.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		status, err := client().StartCalibration(ctx, store.Domain(domain), sweep)
		cancel()
		if err != nil {
			return err
		}
		ui.Success("Calibration %s started", status.Id)
		if !wait {
			return nil
		}

		status, err = waitForCalibration(cmd.Context(), client(), store.Domain(domain), pollInterval, func(status calibration.Status) {
			ui.Info("Level %d/%d: %.0f %% (%d samples)", status.Progress.Level, status.Progress.Levels, status.Progress.Duty, status.Progress.Samples)
		})
		if err != nil {
			return err
		}
		global.PrintTables(statusTable(status))
		if status.State != calibration.StateCompleted {
			return fmt.Errorf("calibration %s: %s", status.State, status.Error)
		}
		global.PrintTables(pointTable(status.Table))
		return nil
	},
}

// waitForCalibration polls the session status until it is no longer running,
// onProgress is called whenever the progress changed.
func waitForCalibration(ctx context.Context, c *api.Client, domain store.Domain, interval time.Duration, onProgress func(status calibration.Status)) (calibration.Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last calibration.Progress
	for {
		requestCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		status, err := c.CalibrationStatus(requestCtx, domain)
		cancel()
		if err != nil {
			return status, err
		}
		if status.State != calibration.StateRunning {
			return status, nil
		}
		if status.Progress != last {
			last = status.Progress
			onProgress(status)
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	runCmd.Flags().Float64SliceVarP(&sweep, "sweep", "s", nil, "Duty levels to measure, defaults to the configured sweep")
	runCmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the calibration to finish")
	runCmd.Flags().DurationVarP(&pollInterval, "poll", "", 1*time.Second, "Status poll interval while waiting")
	Command.AddCommand(runCmd)
}
