package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/s0_data"
	"github.com/wonny/fvgsim/internal/s0_data/quality"
)

// dataCmd represents the data command
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "입력 데이터셋 관리",
	Long: `CSV 데이터셋(instruments.csv, bars.csv, fundamentals.csv)을 검증하거나
PostgreSQL에 적재합니다.

Example:
  go run ./cmd/quant data check --dir ./data
  go run ./cmd/quant data import --dir ./data`,
}

var (
	dataDir      string
	dataMaxIssue int
)

var dataCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "데이터 품질 검사",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := s0_data.ReadCSVDir(dataDir)
		if err != nil {
			return err
		}

		_, report := s0_data.NewStore(ds, quality.NewValidator())
		printQuality(ds, report)
		if !report.Passed() {
			return fmt.Errorf("%d bars and %d records rejected",
				report.RejectedBars, report.RejectedFundamentals)
		}
		return nil
	},
}

var dataImportCmd = &cobra.Command{
	Use:   "import",
	Short: "CSV 데이터셋을 DB에 적재",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := s0_data.ReadCSVDir(dataDir)
		if err != nil {
			return err
		}

		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		// 거부된 데이터도 그대로 적재: 백테스트 시점에 다시 검증된다
		repo := s0_data.NewRepository(e.db.Pool)
		if err := repo.SaveDataset(cmd.Context(), ds); err != nil {
			return fmt.Errorf("import dataset: %w", err)
		}

		PrintSuccess(fmt.Sprintf("Imported %d instruments, %d bars, %d fundamental records",
			len(ds.Instruments), len(ds.Bars), len(ds.Fundamentals)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataCheckCmd)
	dataCmd.AddCommand(dataImportCmd)

	dataCmd.PersistentFlags().StringVar(&dataDir, "dir", "./data", "CSV 데이터셋 디렉토리")
	dataCheckCmd.Flags().IntVar(&dataMaxIssue, "max-issues", 20, "출력할 최대 이슈 수")
}

func printQuality(ds *s0_data.Dataset, report *quality.Report) {
	PrintHeader("Data Quality Check", "Directory : "+dataDir)

	const w = 14
	PrintKeyValue("Instruments", fmt.Sprintf("%d", len(ds.Instruments)), w)
	PrintKeyValue("Bars", fmt.Sprintf("%d (rejected %d)", report.Bars, report.RejectedBars), w)
	PrintKeyValue("Fundamentals", fmt.Sprintf("%d (rejected %d)", report.Fundamentals, report.RejectedFundamentals), w)
	fmt.Println()

	if report.Passed() {
		PrintSuccess("All input passed")
		return
	}

	widths := []int{8, 10, 18, 30}
	PrintTableHeader([]string{"Ticker", "Date", "Field", "Reason"}, widths)
	for i, issue := range report.Issues {
		if i == dataMaxIssue {
			fmt.Printf("   ... %d more\n", len(report.Issues)-i)
			break
		}
		PrintTableRow([]string{issue.Ticker, issue.Date.Format(contracts.DateLayout), issue.Field, issue.Reason}, widths)
	}
}
