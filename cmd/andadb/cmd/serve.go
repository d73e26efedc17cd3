package cmd

import (
	"github.com/spf13/cobra"
)

// newServeCmd is a thin alias for 'daemon start --foreground', for
// users who think of andadb as a server process rather than a
// CLI-with-a-background-helper.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the KIP daemon in the foreground (alias for 'daemon start -f')",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStart(cmd.Context(), cmd, true)
		},
	}
	return cmd
}
