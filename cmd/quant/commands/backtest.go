package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fvgsim/internal/backtest"
	"github.com/wonny/fvgsim/internal/audit"
	"github.com/wonny/fvgsim/internal/contracts"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "백테스팅 시뮬레이션",
	Long: `과거 데이터로 FVG + 모멘텀 전략을 일 단위로 시뮬레이션합니다.

모든 판단은 해당 일자에 공시된 데이터만 사용하며, 종가 기준 시그널은
다음 거래일 시가에 체결됩니다.

Example:
  go run ./cmd/quant backtest run --from 2021-01-01 --to 2023-12-31 --data-dir ./data
  go run ./cmd/quant backtest run --from 2021-01-01 --to 2023-12-31 --persist`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		Long: `지정된 기간 동안 백테스트를 실행합니다.

Flags:
  --from        시작 날짜 (YYYY-MM-DD, 필수)
  --to          종료 날짜 (YYYY-MM-DD, 기본: 어제)
  --capital     초기 자본 (기본: 1,000,000)
  --data-dir    CSV 데이터셋 디렉토리 (없으면 DATABASE_URL 사용)
  --benchmark   성과 비교용 티커
  --persist     결과를 sim 스키마에 저장
  --bootstrap   보유기간 VaR 부트스트랩 횟수 (0: 비활성)
  --out         전체 결과 JSON 파일 경로

Ctrl+C는 진행 중인 거래일을 마친 뒤 중단하고 부분 결과를 출력합니다.`,
		RunE: runBacktest,
	}

	// Flags
	backtestFrom      string
	backtestTo        string
	backtestCapital   float64
	backtestDataDir   string
	backtestBenchmark string
	backtestPersist   bool
	backtestBootstrap int
	backtestSeed      int64
	backtestOut       string
	backtestTrades    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "시작 날짜 (YYYY-MM-DD, 필수)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: 어제)")
	backtestRunCmd.Flags().Float64Var(&backtestCapital, "capital", 1_000_000, "초기 자본")
	backtestRunCmd.Flags().StringVar(&backtestDataDir, "data-dir", "", "CSV 데이터셋 디렉토리")
	backtestRunCmd.Flags().StringVar(&backtestBenchmark, "benchmark", "", "벤치마크 티커")
	backtestRunCmd.Flags().BoolVar(&backtestPersist, "persist", false, "결과 DB 저장")
	backtestRunCmd.Flags().IntVar(&backtestBootstrap, "bootstrap", 0, "부트스트랩 시뮬레이션 횟수")
	backtestRunCmd.Flags().Int64Var(&backtestSeed, "seed", 1, "부트스트랩 시드")
	backtestRunCmd.Flags().StringVar(&backtestOut, "out", "", "결과 JSON 파일")
	backtestRunCmd.Flags().BoolVar(&backtestTrades, "trades", false, "거래 내역 출력")

	backtestRunCmd.MarkFlagRequired("from")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	from, err := time.Parse(contracts.DateLayout, backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	to := contracts.Day(time.Now()).AddDate(0, 0, -1)
	if backtestTo != "" {
		if to, err = time.Parse(contracts.DateLayout, backtestTo); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}

	// Ctrl+C: 거래일 경계에서 중단
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, backtestPersist || backtestDataDir == "")
	if err != nil {
		return err
	}
	defer e.close()

	strategy, err := e.strategy()
	if err != nil {
		return err
	}
	loader, err := e.loader(backtestDataDir)
	if err != nil {
		return err
	}

	engine := backtest.NewEngine(*strategy, loader, e.log,
		engineOptions(e, backtestBootstrap, backtestSeed, nil)...)

	PrintHeader("fvgsim Backtest",
		fmt.Sprintf("Strategy  : %s v%s", strategy.Meta.StrategyID, strategy.Meta.Version),
		fmt.Sprintf("Period    : %s ~ %s", from.Format(contracts.DateLayout), to.Format(contracts.DateLayout)),
		fmt.Sprintf("Capital   : %s", formatMoney(backtestCapital)),
	)

	res, runErr := engine.Run(ctx, backtest.RunRequest{
		From:      from,
		To:        to,
		Capital:   backtestCapital,
		Benchmark: backtestBenchmark,
	})

	var abort *backtest.RunAbort
	switch {
	case res == nil:
		return fmt.Errorf("backtest failed: %w", runErr)
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		PrintWarning("Interrupted: partial result up to the last completed day")
	case errors.As(runErr, &abort):
		printAbort(abort)
		return runErr
	default:
		return fmt.Errorf("backtest failed: %w", runErr)
	}

	printBacktestResult(res)

	if backtestOut != "" {
		if err := writeJSON(backtestOut, res); err != nil {
			return err
		}
		PrintSuccess("Result written to " + backtestOut)
	}

	if backtestPersist {
		if err := persistRun(ctx, e.auditRepo(), res); err != nil {
			return err
		}
		PrintSuccess("Run saved: " + res.RunID.String())
	}

	// 취소는 정상 종료: 잘린 결과는 출력/저장 완료
	return nil
}

// runSaver is the part of the audit repository the CLI writes through
type runSaver interface {
	SaveRun(ctx context.Context, run *audit.RunRecord) error
}

// persistRun saves res even when ctx was cancelled by Ctrl+C, so a
// truncated run is still recorded
func persistRun(ctx context.Context, store runSaver, res *backtest.Result) error {
	if err := store.SaveRun(context.WithoutCancel(ctx), res.RunRecord()); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func printBacktestResult(res *backtest.Result) {
	fmt.Println()
	PrintSuccess(fmt.Sprintf("Backtest finished: %s (%d days, %.2fs)",
		res.State, len(res.EquityCurve), res.Elapsed.Seconds()))
	PrintDoubleSeparator()
	fmt.Println()

	const w = 16
	fmt.Println("📊 Summary")
	PrintKeyValue("Run ID", res.RunID.String(), w)
	PrintKeyValue("Config Hash", shortHash(res.ConfigHash), w)
	PrintKeyValue("Commission", formatMoney(res.TotalCommission), w)
	PrintKeyValue("Open Positions", fmt.Sprintf("%d", len(res.OpenPositions)), w)
	PrintKeyValue("Signals", fmt.Sprintf("%d", len(res.Ledger.Signals)), w)
	if res.Quality != nil && !res.Quality.Passed() {
		PrintKeyValue("Rejected Input", fmt.Sprintf("%d bars, %d records",
			res.Quality.RejectedBars, res.Quality.RejectedFundamentals), w)
	}
	fmt.Println()

	printReport(res.Report)
	fmt.Println()

	rejections := make(map[string]int)
	for _, r := range res.Ledger.Rejections {
		rejections[r.Reason]++
	}
	printCounts("🚫 Rejected Signals", rejections)

	exclusions := make(map[string]int)
	for _, x := range res.Ledger.Exclusions {
		exclusions[x.Reason]++
	}
	printCounts("🔍 Exclusions", exclusions)

	if backtestTrades {
		fmt.Println("📒 Trades")
		printTrades(res.Trades)
		fmt.Println()
	}
}

func printAbort(abort *backtest.RunAbort) {
	PrintError("Run aborted on " + abort.Date.Format(contracts.DateLayout))
	const w = 10
	PrintKeyValue("Cause", abort.Err.Error(), w)
	PrintKeyValue("Equity", formatMoney(abort.State.Equity), w)
	PrintKeyValue("Cash", formatMoney(abort.State.Cash), w)
	PrintKeyValue("State", string(abort.State.RunState), w)
	for _, p := range abort.State.Positions {
		PrintKeyValue(p.Ticker, fmt.Sprintf("%.2f shares @ %.2f", p.Shares, p.EntryPrice), w)
	}
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
