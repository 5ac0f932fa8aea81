package cli

import (
	"github.com/spf13/cobra"

	"metalpulse/internal/app"
)

var (
	exportSymbol    string
	exportDays      int
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a metal's price history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Symbol:    exportSymbol,
			Days:      exportDays,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSymbol, "symbol", "XAU", "Metal symbol to export (XAU, XAG, XPT, XPD)")
	exportCmd.Flags().IntVar(&exportDays, "days", 30, "Number of calendar days of history")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
