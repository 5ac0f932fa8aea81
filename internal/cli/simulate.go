package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateEmail     string
	simulateSymbol    string
	simulateDirection string
	simulateTarget    float64
	simulateCurrent   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次价格穿越并触发告警邮件",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateEmail == "" {
			return errors.New("--email 必须配置")
		}
		if simulateTarget <= 0 || simulateCurrent <= 0 {
			return errors.New("--target 与 --current 必须大于 0")
		}

		target := decimal.NewFromFloat(simulateTarget)
		current := decimal.NewFromFloat(simulateCurrent)
		return getApp().SimulateAlert(cmd.Context(), simulateEmail, simulateSymbol, simulateDirection, target, current)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateEmail, "email", "", "收件地址")
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "XAU", "金属代码")
	simulateCmd.Flags().StringVar(&simulateDirection, "direction", "above", "告警方向 (above/below)")
	simulateCmd.Flags().Float64Var(&simulateTarget, "target", 0, "目标价 (USD)")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "模拟当前价 (USD)")
}
