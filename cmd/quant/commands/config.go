package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonny/fvgsim/internal/strategyconfig"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "전략 설정 관리",
	Long: `전략 YAML 설정을 검증하거나 적용될 설정을 출력합니다.

Example:
  go run ./cmd/quant config validate strategy.yaml
  go run ./cmd/quant config show --strategy strategy.yaml`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "설정 파일 검증",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := strategyFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			path = os.Getenv("STRATEGY_CONFIG")
		}
		if path == "" {
			return fmt.Errorf("no strategy file given")
		}

		cfg, _, err := strategyconfig.Load(path)
		if err != nil {
			PrintError(err.Error())
			return err
		}
		hash, err := strategyconfig.Hash(cfg)
		if err != nil {
			return err
		}

		PrintSuccess(fmt.Sprintf("%s is valid", path))
		PrintKeyValue("Strategy", fmt.Sprintf("%s v%s", cfg.Meta.StrategyID, cfg.Meta.Version), 10)
		PrintKeyValue("Hash", hash, 10)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "적용될 설정 출력 (YAML)",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()

		cfg, err := e.strategy()
		if err != nil {
			return err
		}
		hash, err := strategyconfig.Hash(cfg)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Printf("# config_hash: %s\n", hash)
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
