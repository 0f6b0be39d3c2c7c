package analytics

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/olekukonko/tablewriter"

	"trademaestro/internal/domain"
)

// WriteReport renders the overall and per-symbol performance tables to w.
// It is used for the shutdown summary.
func WriteReport(w io.Writer, trades []*domain.TradeRecord) {
	overall := Summarize(trades)

	fmt.Fprintf(w, "\nPerformance summary (%d trades)\n", overall.TotalTrades)
	if overall.TotalTrades == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	table.Append("Total profit", fmt.Sprintf("%.2f", overall.TotalProfit))
	table.Append("Win rate", fmt.Sprintf("%.1f%%", overall.WinRate*100))
	table.Append("Profit factor", formatFactor(overall.ProfitFactor))
	table.Append("Average win", fmt.Sprintf("%.2f", overall.AverageWin))
	table.Append("Average loss", fmt.Sprintf("%.2f", overall.AverageLoss))
	table.Append("Largest win", fmt.Sprintf("%.2f", overall.LargestWin))
	table.Append("Largest loss", fmt.Sprintf("%.2f", overall.LargestLoss))
	table.Append("Expectancy", fmt.Sprintf("%.2f", overall.Expectancy))
	table.Append("Max drawdown", fmt.Sprintf("%.2f", overall.MaxDrawdown))
	table.Render()

	perSymbol := BySymbol(trades)
	symbols := make([]string, 0, len(perSymbol))
	for symbol := range perSymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	fmt.Fprintln(w, "\nPer-symbol breakdown")
	symbolTable := tablewriter.NewWriter(w)
	symbolTable.Header("Symbol", "Trades", "Win rate", "Profit", "Profit factor")
	for _, symbol := range symbols {
		s := perSymbol[symbol]
		symbolTable.Append(
			symbol,
			fmt.Sprintf("%d", s.TotalTrades),
			fmt.Sprintf("%.1f%%", s.WinRate*100),
			fmt.Sprintf("%.2f", s.TotalProfit),
			formatFactor(s.ProfitFactor),
		)
	}
	symbolTable.Render()
}

func formatFactor(f float64) string {
	if math.IsInf(f, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f", f)
}
