package config

import (
	"github.com/fwctl/fwctl/internal"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/persistence"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/fwctl/fwctl/internal/util"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Prints the effective runtime settings as yaml",
	Long: `Prints the runtime settings the daemon would start with, persisted settings
take precedence over the configuration file. The output can be used as a configuration file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configuration.DetectAndReadConfigFile()
		configuration.LoadConfig()

		settings := internal.LoadSettings(
			persistence.NewPersistence(configuration.CurrentConfig.DbPath),
			configuration.CurrentConfig.Settings,
		)
		data, err := exportSettings(settings)
		if err != nil {
			return err
		}

		if len(exportOutput) <= 0 {
			ui.Printf("%s", string(data))
			return nil
		}
		if err := util.WriteFileAtomic(exportOutput, data); err != nil {
			return err
		}
		ui.Success("Settings written to %s", exportOutput)
		return nil
	},
}

func exportSettings(settings configuration.Settings) ([]byte, error) {
	return yaml.Marshal(settings)
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to the given file instead of stdout")
	Command.AddCommand(exportCmd)
}
