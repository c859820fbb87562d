package cmd

import (
	"github.com/Sternrassler/snowball-gateway/pkg/snowball"
	"github.com/spf13/cobra"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the operations the gateway can call",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return renderOps(cmd.OutOrStdout(), snowball.Operations())
	},
}
