package calibration

import (
	"github.com/fwctl/fwctl/cmd/global"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the state of the last calibration run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		status, err := client().CalibrationStatus(ctx, store.Domain(domain))
		if err != nil {
			return err
		}
		global.PrintTables(statusTable(status))
		return nil
	},
}

func init() {
	Command.AddCommand(statusCmd)
}
