package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/fvgsim/internal/audit"
	"github.com/wonny/fvgsim/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted command header
func PrintHeader(title string, lines ...string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	if len(lines) > 0 {
		PrintSeparator()
		for _, l := range lines {
			fmt.Printf("  %s\n", l)
		}
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	total := 0
	for i, w := range widths {
		total += w
		if i < len(widths)-1 {
			total += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", total))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// formatMoney renders an amount with thousands separators and two decimals
func formatMoney(v float64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	whole := int64(v)
	cents := int64((v-float64(whole))*100 + 0.5)
	if cents == 100 {
		whole, cents = whole+1, 0
	}
	return fmt.Sprintf("%s%s.%02d", sign, formatNumber(whole), cents)
}

func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	var result []rune
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, c)
	}
	return string(result)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func pct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v*100)
}

// printReport prints the performance section shared by backtest and audit
func printReport(r *audit.PerformanceReport) {
	if r == nil {
		return
	}
	const w = 16

	fmt.Println("💰 Performance")
	PrintKeyValue("Start Equity", formatMoney(r.StartEquity), w)
	PrintKeyValue("End Equity", formatMoney(r.EndEquity), w)
	PrintKeyValue("Total Return", pct(r.TotalReturn), w)
	PrintKeyValue("CAGR", pct(r.CAGR), w)
	if r.Benchmark != nil {
		PrintKeyValue("Benchmark", fmt.Sprintf("%s %s (excess %s, beta %.2f)",
			r.Benchmark.Ticker, pct(r.Benchmark.Return), pct(r.Benchmark.Excess), r.Benchmark.Beta), w)
	}
	fmt.Println()

	fmt.Println("📉 Risk")
	PrintKeyValue("Volatility", fmt.Sprintf("%.2f%%", r.Volatility*100), w)
	PrintKeyValue("Sharpe", fmt.Sprintf("%.2f", r.Sharpe), w)
	PrintKeyValue("Sortino", fmt.Sprintf("%.2f", r.Sortino), w)
	PrintKeyValue("Calmar", fmt.Sprintf("%.2f", r.Calmar), w)
	PrintKeyValue("Max Drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdown*100), w)
	PrintKeyValue("VaR 95 (1d)", fmt.Sprintf("%.2f%%", r.VaR95*100), w)
	PrintKeyValue("CVaR 95 (1d)", fmt.Sprintf("%.2f%%", r.CVaR95*100), w)
	if b := r.Bootstrap; b != nil {
		PrintKeyValue(fmt.Sprintf("VaR 95 (%dd)", b.Config.HoldingPeriod), fmt.Sprintf("%.2f%%", b.VaR95*100), w)
		PrintKeyValue(fmt.Sprintf("CVaR 95 (%dd)", b.Config.HoldingPeriod), fmt.Sprintf("%.2f%%", b.CVaR95*100), w)
	}
	fmt.Println()

	fmt.Println("📈 Trading")
	PrintKeyValue("Trades", fmt.Sprintf("%d", r.Trades), w)
	PrintKeyValue("Win Rate", fmt.Sprintf("%.1f%%", r.WinRate*100), w)
	PrintKeyValue("Avg Win / Loss", fmt.Sprintf("%s / %s", pct(r.AvgWin), pct(r.AvgLoss)), w)
	PrintKeyValue("Profit Factor", fmt.Sprintf("%.2f", r.ProfitFactor), w)
	PrintKeyValue("Avg Holding", fmt.Sprintf("%.1f days", r.AvgHoldingDays), w)

	if r.Degenerate {
		PrintWarning("Not enough samples: metrics are zero-filled")
	}
}

// printTrades prints the trade log, oldest exit first
func printTrades(trades []contracts.TradeRecord) {
	if len(trades) == 0 {
		fmt.Println("   (no closed trades)")
		return
	}
	widths := []int{8, 10, 10, 10, 9, 9, 12, 22}
	PrintTableHeader([]string{"Ticker", "Entry", "Exit", "Days", "In", "Out", "PnL", "Reason"}, widths)
	for _, t := range trades {
		PrintTableRow([]string{
			t.Ticker,
			t.EntryDate.Format(contracts.DateLayout),
			t.ExitDate.Format(contracts.DateLayout),
			fmt.Sprintf("%d", t.HoldingDays),
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.ExitPrice),
			formatMoney(t.PnL),
			string(t.CloseReason),
		}, widths)
	}
}

// printCounts prints a reason histogram, most frequent first
func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Println(title)
	for _, k := range keys {
		PrintKeyValue(k, fmt.Sprintf("%d", counts[k]), 20)
	}
	fmt.Println()
}
