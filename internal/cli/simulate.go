package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateSymbol string
	simulateOld    float64
	simulateNew    float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次价格波动并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateSymbol == "" {
			return errors.New("--symbol 不能为空")
		}
		if simulateOld <= 0 || simulateNew <= 0 {
			return errors.New("--old 与 --new 必须大于 0")
		}

		oldPrice := decimal.NewFromFloat(simulateOld)
		newPrice := decimal.NewFromFloat(simulateNew)
		return getApp().SimulateAlert(cmd.Context(), simulateSymbol, oldPrice, newPrice)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "XAU", "要模拟的品种符号")
	simulateCmd.Flags().Float64Var(&simulateOld, "old", 0, "基准美元价格")
	simulateCmd.Flags().Float64Var(&simulateNew, "new", 0, "最新美元价格")
}
