// internal/commands/show.go
package loadpilot

import (
	"github.com/mwiater/loadpilot/internal/appconfig"
	"github.com/spf13/cobra"
)

// showCmd groups commands that print the effective settings.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show settings",
}

var showConfigRaw bool

// showConfigCmd implements the 'show config' command, which displays the current configuration settings.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the config file is loaded properly and overridden by flags and LOADPILOT_* environment variables accordingly.`,
	Run: func(cmd *cobra.Command, args []string) {
		appconfig.ShowConfig(cmd.OutOrStdout(), *GetConfig(), showConfigRaw)
	},
}

func init() {
	showConfigCmd.Flags().BoolVar(&showConfigRaw, "raw", false, "dump the raw configuration struct")
	showCmd.AddCommand(showConfigCmd)
	rootCmd.AddCommand(showCmd)
}
