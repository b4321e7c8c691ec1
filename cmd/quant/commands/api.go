package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fvgsim/internal/api"
	"github.com/wonny/fvgsim/internal/api/handlers"
	"github.com/wonny/fvgsim/internal/backtest"
	"github.com/wonny/fvgsim/internal/metrics"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 저장된 백테스트 결과 조회
- 새 백테스트 실행 및 저장
- Prometheus 메트릭 노출 (METRICS_ENABLED=true)

Endpoints:
  GET  /health           - Health check
  GET  /metrics          - Prometheus metrics
  GET  /api/runs         - 실행 목록 (?limit=N)
  GET  /api/runs/{id}    - 실행 상세 (equity curve, trades 포함)
  POST /api/runs         - 백테스트 실행

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080 --read-only`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	apiReadOnly bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: $PORT)")
	apiCmd.Flags().BoolVar(&apiReadOnly, "read-only", false, "POST /api/runs 비활성")
}

// recordingRunner counts run outcomes around the engine
type recordingRunner struct {
	engine   *backtest.Engine
	recorder *metrics.Recorder
}

func (r recordingRunner) Run(ctx context.Context, req backtest.RunRequest) (*backtest.Result, error) {
	res, err := r.engine.Run(ctx, req)
	if res == nil {
		return res, err
	}

	var abort *backtest.RunAbort
	switch {
	case err == nil:
		r.recorder.ObserveRun(metrics.OutcomeCompleted, res.Elapsed)
	case errors.As(err, &abort):
		r.recorder.ObserveRun(metrics.OutcomeAborted, res.Elapsed)
	default:
		r.recorder.ObserveRun(metrics.OutcomeCancelled, res.Elapsed)
	}
	return res, err
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== fvgsim API Server ===")

	ctx := cmd.Context()
	e, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	// Override port if flag is set
	if apiPort != "" {
		e.cfg.Port = apiPort
	}

	e.log.WithFields(map[string]interface{}{
		"port":      e.cfg.Port,
		"env":       e.cfg.Env,
		"read_only": apiReadOnly,
		"cache":     e.rdb.Enabled(),
	}).Info("Initializing API server")

	recorder := metrics.NewRecorder()
	var metricsHandler http.Handler
	if e.cfg.MetricsEnabled {
		metricsHandler = recorder.Handler()
	}

	var runner handlers.Runner
	if !apiReadOnly {
		strategy, err := e.strategy()
		if err != nil {
			return err
		}
		loader, err := e.loader("")
		if err != nil {
			return err
		}
		engine := backtest.NewEngine(*strategy, loader, e.log, engineOptions(e, 0, 0, recorder)...)
		runner = recordingRunner{engine: engine, recorder: recorder}
	}

	runHandler := handlers.NewRunHandler(e.auditRepo(), runner, e.log)
	router := api.NewRouter(runHandler, metricsHandler, e.log)
	server := api.New(e.cfg, e.log, router)

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", e.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	if metricsHandler != nil {
		fmt.Println("  GET  /metrics")
	}
	fmt.Println("  GET  /api/runs")
	fmt.Println("  GET  /api/runs/{id}")
	if runner != nil {
		fmt.Println("  POST /api/runs")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	e.log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	e.log.Info("Server stopped")
	return nil
}
