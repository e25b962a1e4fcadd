package backtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctafram/ctago/btime"
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/cta"
	"github.com/ctafram/ctago/store"
)

const btSymbol = "rb2405.bt"

func btConfig(startMS, endMS int64) Config {
	return Config{
		VtSymbol:  btSymbol,
		Freq:      "1m",
		StartMS:   startMS,
		EndMS:     endMS,
		Capital:   1_000_000,
		Size:      10,
		PriceTick: 1,
		Rate:      0.001,
		Slippage:  0.2,
	}
}

func btBar(timeMS int64, open, high, low, closeP, vol float64) *core.Bar {
	return &core.Bar{
		Symbol: "rb2405", VtSymbol: btSymbol, TimeMS: timeMS,
		Open: open, High: high, Low: low, Close: closeP, Volume: vol,
	}
}

func seedBars(t *testing.T, bars []*core.Bar) *store.MemStore {
	t.Helper()
	st := store.NewMemStore()
	require.Nil(t, st.InsertBars("rb2405", "1m", bars))
	return st
}

func runBT(t *testing.T, cfg Config, st store.BarStore, strat *cta.Strategy) (*Engine, *Result) {
	t.Helper()
	// replay marks the global last price per bar; keep cases independent
	t.Cleanup(core.ResetPrices)
	e, err := NewEngine(cfg, st)
	require.Nil(t, err)
	e.Progress = false
	res, err := e.Run(strat)
	require.Nil(t, err)
	return e, res
}

func TestBuyLimitFillsNextBar(t *testing.T) {
	start := btime.ParseTimeMS("2023-11-14 01:00:00")
	bars := []*core.Bar{
		btBar(start, 100, 101, 99, 100, 10),
		btBar(start+60000, 100, 125, 90, 110, 10),
	}
	var seen []*core.Trade
	sent := false
	strat := &cta.Strategy{
		Name: "t",
		OnBar: func(j *cta.Job, bar *core.Bar) {
			if !sent {
				sent = true
				_, err := j.Buy(btSymbol, 105, 1, core.PriceTypeLimit, false)
				require.Nil(t, err)
			}
		},
		OnTrade: func(j *cta.Job, td *core.Trade) {
			seen = append(seen, td)
		},
	}
	e, _ := runBT(t, btConfig(start, start+120000), seedBars(t, bars), strat)
	require.Equal(t, 1, len(seen))
	td := seen[0]
	// crossed against the bar after the one that placed it, at the better
	// of limit price and that bar's open
	assert.Equal(t, bars[1].TimeMS, td.TimeMS)
	assert.Equal(t, 100.0, td.Price)
	assert.Equal(t, core.DirectionLong, td.Direction)
	assert.Equal(t, core.OffsetOpen, td.Offset)
	assert.Equal(t, 1, len(e.Trades()))
}

func TestShortLimitPriceImprovement(t *testing.T) {
	start := btime.ParseTimeMS("2023-11-14 01:00:00")
	bars := []*core.Bar{
		btBar(start, 100, 101, 99, 100, 10),
		btBar(start+60000, 100, 125, 90, 110, 10),
	}
	var seen []*core.Trade
	sent := false
	strat := &cta.Strategy{
		Name: "t",
		OnBar: func(j *cta.Job, bar *core.Bar) {
			if !sent {
				sent = true
				_, err := j.Short(btSymbol, 95, 1, core.PriceTypeLimit, false)
				require.Nil(t, err)
			}
		},
		OnTrade: func(j *cta.Job, td *core.Trade) { seen = append(seen, td) },
	}
	runBT(t, btConfig(start, start+120000), seedBars(t, bars), strat)
	require.Equal(t, 1, len(seen))
	// short limit below the open fills at the open, never worse
	assert.Equal(t, 100.0, seen[0].Price)
	assert.Equal(t, core.DirectionShort, seen[0].Direction)
}

func TestFillsFollowSendOrder(t *testing.T) {
	start := btime.ParseTimeMS("2023-11-14 01:00:00")
	bars := []*core.Bar{
		btBar(start, 100, 101, 99, 100, 10),
		btBar(start+60000, 100, 125, 90, 110, 10),
	}
	var fills []string
	sent := false
	strat := &cta.Strategy{
		Name: "t",
		OnBar: func(j *cta.Job, bar *core.Bar) {
			if sent {
				return
			}
			sent = true
			for i := 0; i < 8; i++ {
				_, err := j.Buy(btSymbol, 105, 1, core.PriceTypeLimit, false)
				require.Nil(t, err)
			}
		},
		OnTrade: func(j *cta.Job, td *core.Trade) {
			fills = append(fills, td.VtOrderID)
		},
	}
	runBT(t, btConfig(start, start+120000), seedBars(t, bars), strat)
	// all eight cross on the same bar and must fill first sent, first filled
	require.Equal(t, 8, len(fills))
	for i, id := range fills {
		assert.Equal(t, fmt.Sprintf("bt.%d", i+1), id)
	}
}

func TestLimitNoFillWithoutTouch(t *testing.T) {
	start := btime.ParseTimeMS("2023-11-14 01:00:00")
	bars := []*core.Bar{
		btBar(start, 100, 101, 99, 100, 10),
		btBar(start+60000, 100, 102, 99, 101, 10),
	}
	sent := false
	strat := &cta.Strategy{
		Name: "t",
		OnBar: func(j *cta.Job, bar *core.Bar) {
			if !sent {
				sent = true
				_, err := j.Buy(btSymbol, 95, 1, core.PriceTypeLimit, false)
				require.Nil(t, err)
			}
		},
	}
	e, _ := runBT(t, btConfig(start, start+120000), seedBars(t, bars), strat)
	// low never went below the limit; the order is still working
	assert.Empty(t, e.Trades())
	assert.Equal(t, 1, len(e.limitOrders))
}

func TestBuyStopTriggersAtPrice(t *testing.T) {
	start := btime.ParseTimeMS("2023-11-14 01:00:00")
	bars := []*core.Bar{
		btBar(start, 100, 101, 99, 100, 10),
		btBar(start+60000, 100, 125, 90, 110, 10),
	}
	var seen []*core.Trade
	var stopStates []string
	sent := false
	strat := &cta.Strategy{
		Name: "t",
		OnBar: func(j *cta.Job, bar *core.Bar) {
			if !sent {
				sent = true
				_, err := j.Buy(btSymbol, 120, 1, core.PriceTypeLimit, true)
				require.Nil(t, err)
			}
		},
		OnStopOrder: func(j *cta.Job, so *core.StopOrder) {
			stopStates = append(stopStates, so.Status)
		},
		OnTrade: func(j *cta.Job, td *core.Trade) { seen = append(seen, td) },
	}
	runBT(t, btConfig(start, start+120000), seedBars(t, bars), strat)
	require.Equal(t, 1, len(seen))
	// the bar opened below the trigger, so the fill is at the trigger
	assert.Equal(t, 120.0, seen[0].Price)
	assert.Equal(t, []string{core.StopWaiting, core.StopTriggered}, stopStates)
}

func TestBuyStopGapOpen(t *testing.T) {
	start := btime.ParseTimeMS("2023-11-14 01:00:00")
	bars := []*core.Bar{
		btBar(start, 100, 101, 99, 100, 10),
		btBar(start+60000, 130, 135, 128, 132, 10),
	}
	var seen []*core.Trade
	sent := false
	strat := &cta.Strategy{
		Name: "t",
		OnBar: func(j *cta.Job, bar *core.Bar) {
			if !sent {
				sent = true
				_, err := j.Buy(btSymbol, 120, 1, core.PriceTypeLimit, true)
				require.Nil(t, err)
			}
		},
		OnTrade: func(j *cta.Job, td *core.Trade) { seen = append(seen, td) },
	}
	runBT(t, btConfig(start, start+120000), seedBars(t, bars), strat)
	require.Equal(t, 1, len(seen))
	// gap over the trigger fills at the open, never better than reality
	assert.Equal(t, 130.0, seen[0].Price)
}

func TestPatchCancelDefersInBatch(t *testing.T) {
	start := btime.ParseTimeMS("2023-11-14 01:00:00")
	bars := []*core.Bar{
		btBar(start, 100, 101, 99, 100, 10),
		btBar(start+60000, 100, 125, 90, 110, 10),
		btBar(start+120000, 100, 125, 90, 110, 10),
	}
	var cancelled []string
	var other string
	sent := false
	strat := &cta.Strategy{
		Name: "t",
		OnBar: func(j *cta.Job, bar *core.Bar) {
			if !sent {
				sent = true
				_, err := j.Buy(btSymbol, 105, 1, core.PriceTypeLimit, false)
				require.Nil(t, err)
				ids, err := j.Buy(btSymbol, 50, 1, core.PriceTypeLimit, false)
				require.Nil(t, err)
				other = ids[0]
			}
		},
		OnTrade: func(j *cta.Job, td *core.Trade) {
			// cancel the sibling inside the fill callback
			require.Nil(t, j.CancelOrder(other))
		},
		OnOrder: func(j *cta.Job, od *core.Order) {
			if od.Status == core.StatusCancelled {
				cancelled = append(cancelled, od.VtOrderID)
			}
		},
	}
	cfg := btConfig(start, start+180000)
	cfg.PatchCancel = true
	e, _ := runBT(t, cfg, seedBars(t, bars), strat)
	assert.Equal(t, 1, len(e.Trades()))
	assert.Equal(t, []string{other}, cancelled)
	assert.Empty(t, e.limitOrders)
}

func TestDailyAndResultStatistics(t *testing.T) {
	d1 := btime.ParseTimeMS("2023-11-14 01:00:00")
	d1b := btime.ParseTimeMS("2023-11-14 02:00:00")
	d2 := btime.ParseTimeMS("2023-11-15 01:00:00")
	bars := []*core.Bar{
		btBar(d1, 100, 100, 100, 100, 10),
		btBar(d1b, 100, 112, 95, 110, 10),
		btBar(d2, 110, 120, 108, 115, 10),
	}
	sent := false
	strat := &cta.Strategy{
		Name: "t",
		OnBar: func(j *cta.Job, bar *core.Bar) {
			if !sent {
				sent = true
				_, err := j.Buy(btSymbol, 1000, 2, core.PriceTypeLimit, false)
				require.Nil(t, err)
			}
		},
	}
	_, res := runBT(t, btConfig(d1, d2+60000), seedBars(t, bars), strat)
	require.Equal(t, 2, res.TotalDays)
	require.Equal(t, 1, res.TradeCount)

	day1 := res.Days[0]
	// 2 lots filled at the open 100, marked to the 110 close
	assert.InDelta(t, 200.0, day1.TradingPnl, 1e-9)
	assert.InDelta(t, 0.0, day1.HoldingPnl, 1e-9)
	assert.InDelta(t, 2000.0, day1.Turnover, 1e-9)
	assert.InDelta(t, 2.0, day1.Commission, 1e-9)
	assert.InDelta(t, 4.0, day1.Slippage, 1e-9)
	assert.InDelta(t, 194.0, day1.NetPnl, 1e-9)
	assert.Equal(t, 2.0, day1.EndPos)

	day2 := res.Days[1]
	// overnight inventory marked against the previous close
	assert.InDelta(t, 100.0, day2.HoldingPnl, 1e-9)
	assert.InDelta(t, 0.0, day2.TradingPnl, 1e-9)
	assert.InDelta(t, 100.0, day2.NetPnl, 1e-9)

	assert.InDelta(t, 300.0, res.TotalPnl, 1e-9)
	assert.InDelta(t, 294.0, res.NetPnl, 1e-9)
	assert.InDelta(t, 1_000_294.0, res.EndBalance, 1e-9)
	assert.InDelta(t, 0.0294, res.TotalReturn, 1e-9)
	assert.Equal(t, "2023-11-14", res.StartDate)
	assert.Equal(t, "2023-11-15", res.EndDate)
}

func TestSendWhileNotTradingRejected(t *testing.T) {
	start := btime.ParseTimeMS("2023-11-14 01:00:00")
	st := seedBars(t, []*core.Bar{btBar(start, 100, 101, 99, 100, 10)})
	e, err := NewEngine(btConfig(start, start+60000), st)
	require.Nil(t, err)
	strat := &cta.Strategy{Name: "t"}
	job := cta.NewJob(strat, e)
	_, serr := job.Buy(btSymbol, 100, 1, core.PriceTypeLimit, false)
	assert.NotNil(t, serr)
}

func TestEmptyWindowRejected(t *testing.T) {
	_, err := NewEngine(Config{VtSymbol: btSymbol, Freq: "1m", StartMS: 10, EndMS: 10}, store.NewMemStore())
	assert.NotNil(t, err)
	_, err = NewEngine(Config{VtSymbol: btSymbol, Freq: "nope", StartMS: 0, EndMS: 10}, store.NewMemStore())
	assert.NotNil(t, err)
}
