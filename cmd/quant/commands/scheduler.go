package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fvgsim/internal/backtest"
	"github.com/wonny/fvgsim/internal/scheduler"
	"github.com/wonny/fvgsim/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

이 명령어는:
- 스케줄러 데몬 시작
- 등록된 작업 조회
- 작업 즉시 실행

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run rolling_backtest`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- rolling_backtest: 평일 오전 6시 (최근 N년 재시뮬레이션 후 저장)
- run_retention: 매일 오전 3시 15분 (오래된 실행 결과 삭제)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	// Flags
	schedBacktestCron string
	schedYears        int
	schedCapital      float64
	schedBenchmark    string
	schedRetention    time.Duration
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	pf := schedulerCmd.PersistentFlags()
	pf.StringVar(&schedBacktestCron, "backtest-cron", "0 0 6 * * 1-5", "rolling_backtest 스케줄 (초 포함 cron)")
	pf.IntVar(&schedYears, "years", 3, "rolling_backtest 윈도우 (년)")
	pf.Float64Var(&schedCapital, "capital", 1_000_000, "초기 자본")
	pf.StringVar(&schedBenchmark, "benchmark", "", "벤치마크 티커")
	pf.DurationVar(&schedRetention, "retention", 90*24*time.Hour, "실행 결과 보존 기간")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== fvgsim Scheduler ===")
	fmt.Println()

	e, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer e.close()

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		next, _ := sched.NextRun(jobName)
		fmt.Printf("  - %-18s next: %s\n", jobName, next.Format("2006-01-02 15:04:05"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	e, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer e.close()

	stats := sched.GetJobStats()

	widths := []int{18, 16, 20}
	PrintTableHeader([]string{"Job", "Schedule", "Next Run"}, widths)
	for _, name := range sched.GetAllJobs() {
		next, _ := sched.NextRun(name)
		PrintTableRow([]string{name, stats[name].Schedule, next.Format("2006-01-02 15:04")}, widths)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	e, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer e.close()

	result, err := sched.RunJob(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %s: %s", jobName, result.Duration.Round(time.Millisecond), result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s finished in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}

func initScheduler(cmd *cobra.Command) (*env, *scheduler.Scheduler, error) {
	e, err := setup(cmd.Context(), true)
	if err != nil {
		return nil, nil, err
	}

	strategy, err := e.strategy()
	if err != nil {
		e.close()
		return nil, nil, err
	}
	loader, err := e.loader("")
	if err != nil {
		e.close()
		return nil, nil, err
	}

	repo := e.auditRepo()
	engine := backtest.NewEngine(*strategy, loader, e.log, engineOptions(e, 0, 0, nil)...)

	sched := scheduler.New(e.log)

	// Register jobs
	backtestJob := jobs.NewBacktestJob(jobs.BacktestJobConfig{
		Schedule:  schedBacktestCron,
		Years:     schedYears,
		Capital:   schedCapital,
		Benchmark: schedBenchmark,
	}, engine, repo, e.log)

	for _, job := range []scheduler.Job{
		backtestJob,
		jobs.NewRetentionJob(repo, schedRetention, e.log),
	} {
		if err := sched.AddJob(job); err != nil {
			e.close()
			return nil, nil, err
		}
	}

	return e, sched, nil
}
