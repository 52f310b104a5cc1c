package calibration

import (
	"context"
	"fmt"
	"time"

	"github.com/fwctl/fwctl/cmd/global"
	"github.com/fwctl/fwctl/internal/api"
	"github.com/fwctl/fwctl/internal/calibration"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

const requestTimeout = 10 * time.Second

var domain string

var Command = &cobra.Command{
	Use:              "calibration",
	Short:            "Calibration related commands, these talk to a running daemon",
	TraverseChildren: true,
}

func init() {
	Command.PersistentFlags().StringVarP(
		&domain,
		"domain", "d",
		string(store.DomainFan),
		"Domain to calibrate",
	)
}

func client() *api.Client {
	return api.NewClient(global.ApiAddress)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, requestTimeout)
}

func statusTable(status calibration.Status) table.Table {
	finished := "-"
	if status.FinishedAt != nil {
		finished = status.FinishedAt.Local().Format(time.DateTime)
	}
	errorText := "-"
	if len(status.Error) > 0 {
		errorText = status.Error
	}
	return table.Table{
		Headers: []string{"Id", "Domain", "State", "Level", "Duty", "Samples", "Started", "Finished", "Error"},
		Rows: [][]string{{
			status.Id,
			string(status.Domain),
			string(status.State),
			fmt.Sprintf("%d/%d", status.Progress.Level, status.Progress.Levels),
			fmt.Sprintf("%.0f %%", status.Progress.Duty),
			fmt.Sprintf("%d", status.Progress.Samples),
			status.StartedAt.Local().Format(time.DateTime),
			finished,
			errorText,
		}},
	}
}
