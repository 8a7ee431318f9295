package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "appconfig",
		Short: "Process-wide configuration store with local and Redis backing",
		Long: fmt.Sprintf(`appconfig (%s)

Serves a configuration item store over HTTP. Items live either in process
memory or in Redis and may expire after a per-item timeout. Settings are
read from flags or APPCONFIG_* environment variables.`, Version),
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newItemCmd())
	root.AddCommand(newEnvCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "appconfig %s\n", Version)
		},
	})

	return root
}
