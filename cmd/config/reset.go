package config

import (
	"errors"
	"os"

	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/persistence"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/spf13/cobra"
)

var resetCalibration bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Removes the persisted runtime settings",
	Long: `Removes the runtime settings persisted by the daemon, so the configuration file
is used again on the next start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configuration.DetectAndReadConfigFile()
		configuration.LoadConfig()

		pers := persistence.NewPersistence(configuration.CurrentConfig.DbPath)
		if err := resetPersistence(pers, resetCalibration); err != nil {
			return err
		}
		ui.Success("Persisted settings removed")
		return nil
	},
}

func resetPersistence(pers persistence.Persistence, calibration bool) error {
	if err := pers.DeleteSettings(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if !calibration {
		return nil
	}
	if err := pers.DeleteCalibration(string(store.DomainFan)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func init() {
	resetCmd.Flags().BoolVarP(&resetCalibration, "calibration", "", false, "Also remove the fan calibration table")
	Command.AddCommand(resetCmd)
}
