package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/wonny/screener/internal/portfolio"
	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/internal/worker"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// Every command prints through these helpers
// ═══════════════════════════════════════════════════════════

// PrintRunHeader prints a formatted run header
func PrintRunHeader(title string, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	for _, k := range keys {
		fmt.Printf("  %-9s : %s\n", k, fields[k])
	}
	PrintSeparator()
}

// PrintRows prints matched rows as a table. Columns follow the display
// order of the first row; withWindow adds the backtest window column.
func PrintRows(rows []results.Row, withWindow bool) {
	if len(rows) == 0 {
		PrintInfo("No stocks matched")
		return
	}

	cols := rows[0].Keys
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	header := make([]string, 0, len(cols)+2)
	if withWindow {
		header = append(header, "Window")
	}
	header = append(header, cols...)
	header = append(header, "")
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, r := range rows {
		cells := make([]string, 0, len(header))
		if withWindow {
			cells = append(cells, fmt.Sprintf("%d", r.Window))
		}
		for _, c := range cols {
			cells = append(cells, cell(r.Display[c]))
		}
		if r.Fallback {
			cells = append(cells, "(fallback)")
		} else {
			cells = append(cells, "")
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return x
	case float64:
		return humanize.FormatFloat("#,###.##", x)
	case int:
		return humanize.Comma(int64(x))
	default:
		return fmt.Sprint(x)
	}
}

// PrintSummary prints run counters
func PrintSummary(s worker.Summary) {
	PrintSeparator()
	fmt.Printf("  Run       : %s\n", s.RunID)
	fmt.Printf("  Screened  : %s / %s\n", humanize.Comma(int64(s.Dispatched)), humanize.Comma(int64(s.Total)))
	fmt.Printf("  Matched   : %d (+%d fallback)\n", s.Matched, s.Fallback)
	fmt.Printf("  Skipped   : %d not eligible, %d unexpected\n", s.NotEligible, s.Unexpected)
	if s.SinkErrors > 0 {
		fmt.Printf("  Dropped   : %d rows failed to store\n", s.SinkErrors)
	}

	if len(s.Reasons) > 0 {
		reasons := make([]string, 0, len(s.Reasons))
		for r, n := range s.Reasons {
			reasons = append(reasons, fmt.Sprintf("%s=%d", r, n))
		}
		sort.Strings(reasons)
		fmt.Printf("  Reasons   : %s\n", strings.Join(reasons, ", "))
	}
	fmt.Printf("  Duration  : %.2fs\n", s.Duration.Seconds())
	PrintDoubleSeparator()
}

// PrintLedger prints the portfolio ledger and its totals
func PrintLedger(p *portfolio.Portfolio) {
	entries := p.Entries()
	if len(entries) == 0 {
		PrintInfo("Portfolio ledger is empty")
		return
	}

	fmt.Println()
	fmt.Printf("  Portfolio : %s\n", p.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Date\tTicker\tAction\tLTP\tGrowth\tRunning\tProfits\t")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f%%\t%.2f\t%.2f\t\n",
			e.Date, e.Ticker, e.Action(), e.LTP, e.Growth, e.RunningTotal, e.Profits)
	}
	_ = w.Flush()

	PrintSeparator()
	fmt.Printf("  Initial   : %.2f\n", p.InitialValue())
	fmt.Printf("  Current   : %.2f\n", p.CurrentValue())
	fmt.Printf("  Profit    : %.2f\n", p.Profit())
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

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}
