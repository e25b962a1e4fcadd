package backtest

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

/*
PrintSummary
Render the run statistics as a console table.
*/
func (r *Result) PrintSummary(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.Append([]string{"Backtest From", r.StartDate})
	table.Append([]string{"Backtest To", r.EndDate})
	table.Append([]string{"Trading Days", strconv.Itoa(r.TotalDays)})
	table.Append([]string{"Initial Capital", fmtF(r.Capital, 0)})
	table.Append([]string{"Final Balance", fmtF(r.EndBalance, 2)})
	table.Append([]string{"Total PnL", fmtF(r.TotalPnl, 2)})
	table.Append([]string{"Net PnL", fmtF(r.NetPnl, 2)})
	table.Append([]string{"Commission", fmtF(r.Commission, 2)})
	table.Append([]string{"Slippage", fmtF(r.Slippage, 2)})
	table.Append([]string{"Turnover", fmtF(r.Turnover, 0)})
	table.Append([]string{"Trade Count", strconv.Itoa(r.TradeCount)})
	table.Append([]string{"Total Return %", fmtF(r.TotalReturn, 2)})
	table.Append([]string{"Annual Return %", fmtF(r.AnnualReturn, 2)})
	table.Append([]string{"Max DrawDown %", fmtF(r.MaxDrawDown, 2)})
	table.Append([]string{"Sharpe", fmtF(r.Sharpe, 3)})
	table.Append([]string{"Zero-Cost Sharpe", fmtF(r.ZeroSharpe, 3)})
	table.Append([]string{"Calmar", fmtF(r.Calmar, 3)})
	table.Append([]string{"Win Rate %", fmtF(r.WinRate, 1)})
	table.Append([]string{"Avg Trade PnL", fmtF(r.AvgTradePnl, 2)})
	table.Append([]string{"Expectancy", fmtF(r.Expectancy, 2)})
	table.Append([]string{"Expectancy Ratio", fmtF(r.ExpectancyRatio, 3)})
	table.Render()
}

/*
PrintDaily
Render the per-day result table.
*/
func (r *Result) PrintDaily(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Date", "Close", "Trades", "Trading PnL", "Holding PnL",
		"Commission", "Slippage", "Net PnL"})
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, dr := range r.Days {
		table.Append([]string{
			dr.Date,
			fmtF(dr.ClosePrice, 2),
			strconv.Itoa(dr.TradeCount),
			fmtF(dr.TradingPnl, 2),
			fmtF(dr.HoldingPnl, 2),
			fmtF(dr.Commission, 2),
			fmtF(dr.Slippage, 2),
			fmtF(dr.NetPnl, 2),
		})
	}
	table.Render()
}

func fmtF(val float64, prec int) string {
	return strconv.FormatFloat(val, 'f', prec, 64)
}
