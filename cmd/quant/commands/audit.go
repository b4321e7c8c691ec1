package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/fvgsim/internal/audit"
	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/risk"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "저장된 실행 결과 감사",
	Long: `sim 스키마에 저장된 백테스트 결과를 조회하고 리스크를 재분석합니다.

명령어:
  list    최근 실행 목록
  show    실행 상세 (성과 리포트, 거래 내역)
  risk    저장된 equity curve 기반 부트스트랩 VaR`,
}

var (
	auditLimit  int
	auditTrades bool

	// risk 플래그
	riskSimulations int
	riskHolding     int
	riskSeed        int64
	riskOutput      string
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "최근 실행 목록",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		runs, err := e.auditRepo().ListRuns(cmd.Context(), auditLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs stored")
			return nil
		}

		widths := []int{36, 12, 10, 10, 10, 9, 8}
		PrintTableHeader([]string{"Run ID", "Strategy", "From", "To", "State", "Return", "MDD"}, widths)
		for _, r := range runs {
			ret, mdd := "-", "-"
			if r.Report != nil {
				ret = pct(r.Report.TotalReturn)
				mdd = fmt.Sprintf("%.1f%%", r.Report.MaxDrawdown*100)
			}
			state := string(r.State)
			if r.Truncated {
				state += "*"
			}
			PrintTableRow([]string{
				r.RunID.String(),
				r.StrategyID,
				r.From.Format(contracts.DateLayout),
				r.To.Format(contracts.DateLayout),
				state,
				ret,
				mdd,
			}, widths)
		}
		return nil
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show <run_id>",
	Short: "실행 상세",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, cleanup, err := loadRun(cmd, args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		PrintHeader("Run "+run.RunID.String(),
			fmt.Sprintf("Strategy  : %s (%s)", run.StrategyID, shortHash(run.ConfigHash)),
			fmt.Sprintf("Period    : %s ~ %s", run.From.Format(contracts.DateLayout), run.To.Format(contracts.DateLayout)),
			fmt.Sprintf("State     : %s (truncated: %v)", run.State, run.Truncated),
			fmt.Sprintf("Created   : %s", run.CreatedAt.Format("2006-01-02 15:04:05")),
		)
		printReport(run.Report)
		fmt.Println()

		if auditTrades {
			fmt.Println("📒 Trades")
			printTrades(run.Trades)
		}
		return nil
	},
}

var auditRiskCmd = &cobra.Command{
	Use:   "risk <run_id>",
	Short: "부트스트랩 VaR 재분석",
	Long: `저장된 일별 수익률을 재표본추출(bootstrap)하여 보유기간 VaR/CVaR를 계산합니다.
동일한 --seed는 항상 동일한 결과를 냅니다.

Example:
  go run ./cmd/quant audit risk <run_id>
  go run ./cmd/quant audit risk <run_id> --simulations 50000 --holding 5
  go run ./cmd/quant audit risk <run_id> --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runAuditRisk,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditRiskCmd)

	auditListCmd.Flags().IntVar(&auditLimit, "limit", 20, "최대 출력 수")
	auditShowCmd.Flags().BoolVar(&auditTrades, "trades", false, "거래 내역 출력")

	d := risk.DefaultBootstrapConfig()
	auditRiskCmd.Flags().IntVar(&riskSimulations, "simulations", d.NumSimulations, "시뮬레이션 횟수")
	auditRiskCmd.Flags().IntVar(&riskHolding, "holding", d.HoldingPeriod, "보유 기간 (거래일)")
	auditRiskCmd.Flags().Int64Var(&riskSeed, "seed", d.Seed, "난수 시드")
	auditRiskCmd.Flags().StringVar(&riskOutput, "output", "text", "출력 형식 (text, json)")
}

func loadRun(cmd *cobra.Command, arg string) (*audit.RunRecord, func(), error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid run id: %w", err)
	}

	e, err := setup(cmd.Context(), true)
	if err != nil {
		return nil, nil, err
	}
	run, err := e.auditRepo().GetRun(cmd.Context(), id)
	if err != nil {
		e.close()
		return nil, nil, err
	}
	return run, e.close, nil
}

// riskReport is the --output json shape of audit risk
type riskReport struct {
	RunID     uuid.UUID             `json:"run_id"`
	Daily     risk.VaRResult        `json:"daily"`
	Limits    *risk.CheckResult     `json:"limits"`
	Bootstrap *risk.BootstrapResult `json:"bootstrap"`
}

func runAuditRisk(cmd *cobra.Command, args []string) error {
	run, cleanup, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	returns := audit.DailyReturns(run.Equity)
	engine := risk.NewEngine(risk.DefaultLimits())

	cfg := risk.DefaultBootstrapConfig()
	cfg.NumSimulations = riskSimulations
	cfg.HoldingPeriod = riskHolding
	cfg.Seed = riskSeed

	boot, err := engine.Bootstrap(returns, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	report := riskReport{
		RunID:     run.RunID,
		Daily:     engine.VaR(returns, 0.95),
		Limits:    engine.CheckLimits(returns),
		Bootstrap: boot,
	}

	if riskOutput == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printRiskReport(report)
	return nil
}

func printRiskReport(r riskReport) {
	PrintHeader("Risk Report", "Run : "+r.RunID.String())

	const w = 16
	fmt.Println("📉 Daily (historical)")
	PrintKeyValue("VaR 95", fmt.Sprintf("%.2f%%", r.Daily.VaR*100), w)
	PrintKeyValue("CVaR 95", fmt.Sprintf("%.2f%%", r.Daily.CVaR*100), w)
	fmt.Println()

	b := r.Bootstrap
	fmt.Printf("🎲 Bootstrap (%d paths, %d days, seed %d)\n", b.Config.NumSimulations, b.Config.HoldingPeriod, b.Config.Seed)
	PrintKeyValue("Input Samples", fmt.Sprintf("%d", b.InputSampleCount), w)
	PrintKeyValue("Mean Return", pct(b.MeanReturn), w)
	PrintKeyValue("Std Dev", fmt.Sprintf("%.2f%%", b.StdDev*100), w)
	PrintKeyValue("VaR 95", fmt.Sprintf("%.2f%%", b.VaR95*100), w)
	PrintKeyValue("CVaR 95", fmt.Sprintf("%.2f%%", b.CVaR95*100), w)
	for _, p := range []int{1, 5, 25, 50, 75, 95, 99} {
		if v, ok := b.Percentiles[p]; ok {
			PrintKeyValue(fmt.Sprintf("P%d", p), pct(v), w)
		}
	}
	fmt.Println()

	if r.Limits.Passed {
		PrintSuccess("Within risk limits")
		return
	}
	for _, v := range r.Limits.Violations {
		PrintError(v)
	}
}
