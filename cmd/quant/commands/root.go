package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "fvgsim - 적정가치 갭 + 모멘텀 전략 백테스터",
	Long: `fvgsim Unified CLI

미국 중형 기술/헬스케어 종목을 대상으로 한 적정가치 갭(FVG) + 모멘텀 전략의
시점 일관(point-in-time) 백테스트 시뮬레이터.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant backtest run --from 2021-01-01 --to 2023-12-31 --data-dir ./data
  go run ./cmd/quant config validate strategy.yaml
  go run ./cmd/quant data import --dir ./data
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default: built-in defaults, or $STRATEGY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
