package backtest

import (
	"math"

	"go.uber.org/zap"

	"github.com/ctafram/ctago/btime"
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/log"
	"github.com/ctafram/ctago/utils"
)

/*
DailyResult
Per-day accumulation for one symbol: the day's trades, the closing price
and the mark-to-market PnL split into the trading part (positions changed
today) and the holding part (overnight inventory marked against the
previous close).
*/
type DailyResult struct {
	Date       string
	ClosePrice float64
	PreClose   float64

	Trades     []*core.Trade
	TradeCount int

	StartPos float64 // signed net position entering the day
	EndPos   float64

	TradingPnl float64
	HoldingPnl float64
	TotalPnl   float64
	Commission float64
	Slippage   float64
	Turnover   float64
	NetPnl     float64
}

func (e *Engine) dayResult(bar *core.Bar) *DailyResult {
	date := btime.ToDateStr(bar.TimeMS, core.DateFmtDay)
	dr, ok := e.daily[date]
	if !ok {
		dr = &DailyResult{Date: date}
		e.daily[date] = dr
		e.dayOrder = append(e.dayOrder, date)
	}
	return dr
}

func (e *Engine) markDaily(bar *core.Bar) {
	e.dayResult(bar).ClosePrice = bar.Close
}

// calcDaily walks the days in order, carrying the net position and the
// previous close through the mark-to-market formulas.
func (dr *DailyResult) calcPnl(preClose, startPos float64, cfg *Config) {
	dr.PreClose = preClose
	dr.StartPos = startPos
	dr.EndPos = startPos
	if preClose == 0 {
		// first day has no mark for overnight inventory
		dr.HoldingPnl = 0
	} else {
		dr.HoldingPnl = startPos * (dr.ClosePrice - preClose) * cfg.Size
	}
	for _, td := range dr.Trades {
		sign := 1.0
		if td.Direction == core.DirectionShort {
			sign = -1.0
		}
		posChange := sign * td.Volume
		dr.EndPos += posChange
		turnover := td.Price * td.Volume * cfg.Size
		dr.TradingPnl += posChange * (dr.ClosePrice - td.Price) * cfg.Size
		dr.Turnover += turnover
		dr.Commission += turnover * cfg.Rate
		dr.Slippage += td.Volume * cfg.Size * cfg.Slippage
	}
	dr.TotalPnl = dr.TradingPnl + dr.HoldingPnl
	dr.NetPnl = dr.TotalPnl - dr.Commission - dr.Slippage
}

/*
TradeResult
One FIFO-paired round trip: an entry fill matched with an exit fill. Volume
is signed, positive for long round trips.
*/
type TradeResult struct {
	EntryPrice float64
	ExitPrice  float64
	EntryMS    int64
	ExitMS     int64
	Volume     float64

	Turnover   float64
	Commission float64
	Slippage   float64
	Pnl        float64
	NetPnl     float64
}

func newTradeResult(entry, exit *core.Trade, volume, sign float64, cfg *Config) *TradeResult {
	tr := &TradeResult{
		EntryPrice: entry.Price,
		ExitPrice:  exit.Price,
		EntryMS:    entry.TimeMS,
		ExitMS:     exit.TimeMS,
		Volume:     sign * volume,
	}
	size := cfg.Size
	notional := (entry.Price + exit.Price) * volume * size
	if cfg.Inverse {
		tr.Turnover = notional / exit.Price
		tr.Commission = notional * cfg.Rate / exit.Price
		tr.Pnl = (exit.Price - entry.Price) * volume * size / exit.Price * sign
	} else {
		tr.Turnover = notional
		tr.Commission = notional * cfg.Rate
		tr.Pnl = (exit.Price - entry.Price) * volume * size * sign
	}
	tr.Slippage = cfg.Slippage * 2 * size * volume
	tr.NetPnl = tr.Pnl - tr.Commission - tr.Slippage
	return tr
}

type openLot struct {
	trade  *core.Trade
	remain float64
}

/*
pairTrades
Match exits with entries first-in-first-out, per direction. A close fill
exceeding open inventory is logged and the excess dropped; the run
continues.
*/
func pairTrades(trades []*core.Trade, cfg *Config) []*TradeResult {
	var results []*TradeResult
	var longs, shorts []*openLot
	for _, td := range trades {
		if td.Offset == core.OffsetOpen {
			lot := &openLot{trade: td, remain: td.Volume}
			if td.Direction == core.DirectionLong {
				longs = append(longs, lot)
			} else {
				shorts = append(shorts, lot)
			}
			continue
		}
		// a close in direction d exits the opposite-direction inventory
		book := &longs
		sign := 1.0
		if td.Direction == core.DirectionLong {
			book = &shorts
			sign = -1.0
		}
		remain := td.Volume
		for remain > 0 && len(*book) > 0 {
			lot := (*book)[0]
			vol := min(remain, lot.remain)
			results = append(results, newTradeResult(lot.trade, td, vol, sign, cfg))
			lot.remain -= vol
			remain -= vol
			// float residue must not leave a phantom lot behind
			if utils.EqualNearly(remain, 0) {
				remain = 0
			}
			if lot.remain <= 0 || utils.EqualNearly(lot.remain, 0) {
				*book = (*book)[1:]
			}
		}
		if remain > 0 {
			log.Warn("close volume exceeds open inventory, excess dropped",
				zap.String("trade", td.VtTradeID), zap.Float64("excess", remain))
		}
	}
	return results
}

/*
Result
Aggregated outcome of one backtest: the daily balance curve statistics plus
the FIFO round-trip statistics. Metrics exposes every scalar by name for
the optimizer's scoring target.
*/
type Result struct {
	Days       []*DailyResult
	RoundTrips []*TradeResult

	StartDate string
	EndDate   string
	TotalDays int

	Capital    float64
	EndBalance float64
	TotalPnl   float64
	NetPnl     float64
	Commission float64
	Slippage   float64
	Turnover   float64
	TradeCount int

	TotalReturn  float64 // percent on capital
	AnnualReturn float64
	MaxDrawDown  float64 // percent, reported negative
	MaxDDVal     float64
	Sharpe       float64
	ZeroSharpe   float64 // hypothetical frictionless Sharpe
	Calmar       float64

	WinRate     float64
	AvgTradePnl float64
	// expected net PnL per round trip and the risk reward expectancy ratio
	Expectancy      float64
	ExpectancyRatio float64
}

func (e *Engine) calcResult() *Result {
	res := &Result{
		Capital:    e.cfg.Capital,
		RoundTrips: pairTrades(e.trades, &e.cfg),
		TradeCount: len(e.trades),
	}
	preClose, startPos := 0.0, 0.0
	for _, date := range e.dayOrder {
		dr := e.daily[date]
		dr.calcPnl(preClose, startPos, &e.cfg)
		preClose, startPos = dr.ClosePrice, dr.EndPos
		res.Days = append(res.Days, dr)
	}
	if len(res.Days) > 0 {
		res.StartDate = res.Days[0].Date
		res.EndDate = res.Days[len(res.Days)-1].Date
	}
	res.TotalDays = len(res.Days)
	netPnls := make([]float64, 0, len(res.Days))
	grossPnls := make([]float64, 0, len(res.Days))
	returns := make([]float64, 0, len(res.Days))
	grossReturns := make([]float64, 0, len(res.Days))
	balance := e.cfg.Capital
	grossBalance := e.cfg.Capital
	for _, dr := range res.Days {
		res.TotalPnl += dr.TotalPnl
		res.NetPnl += dr.NetPnl
		res.Commission += dr.Commission
		res.Slippage += dr.Slippage
		res.Turnover += dr.Turnover
		netPnls = append(netPnls, dr.NetPnl)
		grossPnls = append(grossPnls, dr.TotalPnl)
		if balance > 0 {
			returns = append(returns, dr.NetPnl/balance)
		}
		if grossBalance > 0 {
			grossReturns = append(grossReturns, dr.TotalPnl/grossBalance)
		}
		balance += dr.NetPnl
		grossBalance += dr.TotalPnl
	}
	res.EndBalance = balance
	if e.cfg.Capital > 0 {
		res.TotalReturn = res.NetPnl / e.cfg.Capital * 100
	}
	if res.TotalDays > 0 {
		res.AnnualReturn = res.TotalReturn / float64(res.TotalDays) * core.AnnualTradeDays
	}
	ddPct, ddVal, _, _, _, _ := utils.CalcMaxDrawDown(netPnls, e.cfg.Capital)
	res.MaxDrawDown = -ddPct * 100
	res.MaxDDVal = -ddVal
	res.Sharpe = utils.SharpeRatio(returns, 0, core.AnnualTradeDays)
	res.ZeroSharpe = utils.SharpeRatio(grossReturns, 0, core.AnnualTradeDays)
	if res.MaxDrawDown != 0 {
		res.Calmar = utils.CalmarRatio(res.AnnualReturn, math.Abs(res.MaxDrawDown))
	}
	wins := 0
	for _, tr := range res.RoundTrips {
		if tr.NetPnl > 0 {
			wins++
		}
	}
	if n := len(res.RoundTrips); n > 0 {
		res.WinRate = float64(wins) / float64(n) * 100
		sum := 0.0
		tripPnls := make([]float64, 0, n)
		for _, tr := range res.RoundTrips {
			sum += tr.NetPnl
			tripPnls = append(tripPnls, tr.NetPnl)
		}
		res.AvgTradePnl = sum / float64(n)
		res.Expectancy, res.ExpectancyRatio = utils.CalcExpectancy(tripPnls)
	}
	return res
}

/*
Metrics exposes the scalar statistics by name; the optimizer scores on one
of these keys.
*/
func (r *Result) Metrics() map[string]float64 {
	return map[string]float64{
		"totalPnl":        r.TotalPnl,
		"netPnl":          r.NetPnl,
		"commission":      r.Commission,
		"slippage":        r.Slippage,
		"turnover":        r.Turnover,
		"endBalance":      r.EndBalance,
		"totalReturn":     r.TotalReturn,
		"annualReturn":    r.AnnualReturn,
		"maxDrawDown":     r.MaxDrawDown,
		"sharpe":          r.Sharpe,
		"zeroSharpe":      r.ZeroSharpe,
		"calmar":          r.Calmar,
		"winRate":         r.WinRate,
		"avgTradePnl":     r.AvgTradePnl,
		"expectancy":      r.Expectancy,
		"expectancyRatio": r.ExpectancyRatio,
		"tradeCount":      float64(r.TradeCount),
	}
}
