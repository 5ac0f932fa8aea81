package cli

import (
	"github.com/spf13/cobra"
)

var quotesCmd = &cobra.Command{
	Use:   "quotes",
	Short: "Display the current quote board for all tracked metals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Quotes(cmd.Context())
	},
}
