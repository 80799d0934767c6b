package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var simulateHF string

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次健康因子跌破阈值并触发紧急告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		hf, err := decimal.NewFromString(simulateHF)
		if err != nil || !hf.IsPositive() {
			return errors.New("--hf 必须是大于 0 的数字")
		}
		return getApp().SimulateAlert(cmd.Context(), hf)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateHF, "hf", "1.05", "模拟的健康因子")
}
