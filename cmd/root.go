package cmd

import (
	"fmt"
	"os"

	"github.com/fwctl/fwctl/cmd/calibration"
	"github.com/fwctl/fwctl/cmd/config"
	"github.com/fwctl/fwctl/cmd/curve"
	"github.com/fwctl/fwctl/cmd/global"
	"github.com/fwctl/fwctl/cmd/telemetry"
	"github.com/fwctl/fwctl/internal"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/ui"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fwctl",
	Short: "A daemon to control fan, power and charging of Framework laptops.",
	Long: `fwctl is a daemon that controls the fan, the power limits
and the battery charging of a Framework laptop through its embedded controller.`,
	// this is the default command to run when no subcommand is specified
	Run: func(cmd *cobra.Command, args []string) {
		setupUi()
		printHeader()

		configPath := configuration.DetectAndReadConfigFile()
		ui.Info("Using configuration file at: %s", configPath)
		configuration.LoadConfig()
		err := configuration.Validate(configPath)
		if err != nil {
			ui.ErrorAndNotify("Config Validation Error", err.Error())
			return
		}

		internal.RunDaemon()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&global.CfgFile, "config", "c", "", "config file (default is $HOME/fwctl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&global.NoColor, "no-color", "", false, "Disable all terminal output coloration")
	rootCmd.PersistentFlags().BoolVarP(&global.NoStyle, "no-style", "", false, "Disable all terminal output styling")
	rootCmd.PersistentFlags().BoolVarP(&global.Verbose, "verbose", "v", false, "More verbose output")
	rootCmd.PersistentFlags().StringVarP(&global.ApiAddress, "api", "", global.DefaultApiAddress, "Address of the REST API of a running daemon")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setupUi()
	}

	rootCmd.AddCommand(config.Command)
	rootCmd.AddCommand(curve.Command)
	rootCmd.AddCommand(calibration.Command)
	rootCmd.AddCommand(telemetry.Command)
}

func setupUi() {
	ui.SetDebugEnabled(global.Verbose)

	if global.NoColor {
		pterm.DisableColor()
	}
	if global.NoStyle {
		pterm.DisableStyling()
	}
}

func printHeader() {
	err := pterm.DefaultBigText.WithLetters(
		pterm.NewLettersFromStringWithStyle("fw", pterm.NewStyle(pterm.FgLightRed)),
		pterm.NewLettersFromStringWithStyle("ctl", pterm.NewStyle(pterm.FgWhite)),
	).Render()
	if err != nil {
		fmt.Println("fwctl")
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.OnInitialize(func() {
		configuration.InitConfig(global.CfgFile)
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
