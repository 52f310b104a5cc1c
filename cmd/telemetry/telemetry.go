package telemetry

import (
	"github.com/spf13/cobra"
)

var Command = &cobra.Command{
	Use:              "telemetry",
	Short:            "Telemetry related commands, these talk to a running daemon",
	TraverseChildren: true,
}
