package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctafram/ctago/core"
)

func fifoTrade(dir, offset string, price, vol float64, timeMS int64) *core.Trade {
	return &core.Trade{
		VtTradeID: "t", VtSymbol: btSymbol,
		Direction: dir, Offset: offset, Price: price, Volume: vol, TimeMS: timeMS,
	}
}

func TestPairTradesFIFO(t *testing.T) {
	cfg := &Config{Size: 1}
	trades := []*core.Trade{
		fifoTrade(core.DirectionLong, core.OffsetOpen, 100, 2, 1),
		fifoTrade(core.DirectionLong, core.OffsetOpen, 110, 1, 2),
		fifoTrade(core.DirectionShort, core.OffsetClose, 120, 2, 3),
		fifoTrade(core.DirectionShort, core.OffsetClose, 130, 1, 4),
	}
	rts := pairTrades(trades, cfg)
	require.Equal(t, 2, len(rts))
	// oldest entry exits first
	assert.Equal(t, 100.0, rts[0].EntryPrice)
	assert.Equal(t, 120.0, rts[0].ExitPrice)
	assert.Equal(t, 2.0, rts[0].Volume)
	assert.InDelta(t, 40.0, rts[0].Pnl, 1e-9)
	assert.Equal(t, 110.0, rts[1].EntryPrice)
	assert.Equal(t, 130.0, rts[1].ExitPrice)
	assert.InDelta(t, 20.0, rts[1].Pnl, 1e-9)
}

func TestPairTradesPartialExit(t *testing.T) {
	cfg := &Config{Size: 1}
	trades := []*core.Trade{
		fifoTrade(core.DirectionLong, core.OffsetOpen, 100, 3, 1),
		fifoTrade(core.DirectionShort, core.OffsetClose, 110, 1, 2),
		fifoTrade(core.DirectionShort, core.OffsetClose, 120, 2, 3),
	}
	rts := pairTrades(trades, cfg)
	require.Equal(t, 2, len(rts))
	assert.Equal(t, 1.0, rts[0].Volume)
	assert.Equal(t, 2.0, rts[1].Volume)
	assert.InDelta(t, 10.0, rts[0].Pnl, 1e-9)
	assert.InDelta(t, 40.0, rts[1].Pnl, 1e-9)
}

func TestPairTradesShortSide(t *testing.T) {
	cfg := &Config{Size: 1}
	trades := []*core.Trade{
		fifoTrade(core.DirectionShort, core.OffsetOpen, 100, 1, 1),
		fifoTrade(core.DirectionLong, core.OffsetClose, 90, 1, 2),
	}
	rts := pairTrades(trades, cfg)
	require.Equal(t, 1, len(rts))
	assert.Equal(t, -1.0, rts[0].Volume)
	assert.InDelta(t, 10.0, rts[0].Pnl, 1e-9)
}

func TestPairTradesExcessCloseDropped(t *testing.T) {
	cfg := &Config{Size: 1}
	trades := []*core.Trade{
		fifoTrade(core.DirectionLong, core.OffsetOpen, 100, 1, 1),
		fifoTrade(core.DirectionShort, core.OffsetClose, 110, 3, 2),
	}
	rts := pairTrades(trades, cfg)
	require.Equal(t, 1, len(rts))
	assert.Equal(t, 1.0, rts[0].Volume)
}

func TestPairTradesFloatResidue(t *testing.T) {
	cfg := &Config{Size: 1}
	// 0.3 closed in three 0.1 fills; binary float residue must not leave a
	// phantom lot for the next close to pair against
	trades := []*core.Trade{
		fifoTrade(core.DirectionLong, core.OffsetOpen, 100, 0.3, 1),
		fifoTrade(core.DirectionShort, core.OffsetClose, 110, 0.1, 2),
		fifoTrade(core.DirectionShort, core.OffsetClose, 110, 0.1, 3),
		fifoTrade(core.DirectionShort, core.OffsetClose, 110, 0.1, 4),
		fifoTrade(core.DirectionLong, core.OffsetOpen, 105, 1, 5),
		fifoTrade(core.DirectionShort, core.OffsetClose, 115, 1, 6),
	}
	rts := pairTrades(trades, cfg)
	require.Equal(t, 4, len(rts))
	assert.Equal(t, 105.0, rts[3].EntryPrice)
	assert.Equal(t, 1.0, rts[3].Volume)
}

func TestResultExpectancy(t *testing.T) {
	e := &Engine{
		cfg:   Config{Capital: 1000, Size: 1},
		daily: make(map[string]*DailyResult),
		trades: []*core.Trade{
			fifoTrade(core.DirectionLong, core.OffsetOpen, 100, 1, 1),
			fifoTrade(core.DirectionShort, core.OffsetClose, 110, 1, 2),
			fifoTrade(core.DirectionLong, core.OffsetOpen, 100, 1, 3),
			fifoTrade(core.DirectionShort, core.OffsetClose, 96, 1, 4),
		},
	}
	res := e.calcResult()
	// one +10 and one -4 round trip: 0.5*10 - 0.5*4
	assert.InDelta(t, 3.0, res.Expectancy, 1e-9)
	// risk reward 2.5 at 50% win rate: (1+2.5)*0.5 - 1
	assert.InDelta(t, 0.75, res.ExpectancyRatio, 1e-9)
	m := res.Metrics()
	assert.InDelta(t, 3.0, m["expectancy"], 1e-9)
	assert.InDelta(t, 0.75, m["expectancyRatio"], 1e-9)
}

func TestTradeResultInverse(t *testing.T) {
	cfg := &Config{Size: 1, Inverse: true}
	entry := fifoTrade(core.DirectionLong, core.OffsetOpen, 100, 1, 1)
	exit := fifoTrade(core.DirectionShort, core.OffsetClose, 110, 1, 2)
	tr := newTradeResult(entry, exit, 1, 1, cfg)
	// coin-margined: pnl settles in base currency at the exit price
	assert.InDelta(t, 10.0/110.0, tr.Pnl, 1e-9)
	assert.InDelta(t, 210.0/110.0, tr.Turnover, 1e-9)
}

func TestTradeResultCosts(t *testing.T) {
	cfg := &Config{Size: 10, Rate: 0.001, Slippage: 0.2}
	entry := fifoTrade(core.DirectionLong, core.OffsetOpen, 100, 2, 1)
	exit := fifoTrade(core.DirectionShort, core.OffsetClose, 110, 2, 2)
	tr := newTradeResult(entry, exit, 2, 1, cfg)
	assert.InDelta(t, 200.0, tr.Pnl, 1e-9)
	assert.InDelta(t, 4200.0, tr.Turnover, 1e-9)
	assert.InDelta(t, 4.2, tr.Commission, 1e-9)
	// slippage charged on both legs
	assert.InDelta(t, 8.0, tr.Slippage, 1e-9)
	assert.InDelta(t, 187.8, tr.NetPnl, 1e-9)
}

func TestDailyCalcPnl(t *testing.T) {
	cfg := &Config{Size: 10, Rate: 0.001, Slippage: 0.2}
	dr := &DailyResult{
		Date:       "2023-11-14",
		ClosePrice: 110,
		Trades: []*core.Trade{
			fifoTrade(core.DirectionLong, core.OffsetOpen, 100, 2, 1),
			fifoTrade(core.DirectionShort, core.OffsetClose, 108, 1, 2),
		},
	}
	dr.calcPnl(0, 0, cfg)
	assert.InDelta(t, 180.0, dr.TradingPnl, 1e-9)
	assert.InDelta(t, 0.0, dr.HoldingPnl, 1e-9)
	assert.InDelta(t, 3080.0, dr.Turnover, 1e-9)
	assert.InDelta(t, 3.08, dr.Commission, 1e-9)
	assert.InDelta(t, 6.0, dr.Slippage, 1e-9)
	assert.InDelta(t, 170.92, dr.NetPnl, 1e-9)
	assert.Equal(t, 1.0, dr.EndPos)

	next := &DailyResult{Date: "2023-11-15", ClosePrice: 115}
	next.calcPnl(dr.ClosePrice, dr.EndPos, cfg)
	assert.InDelta(t, 50.0, next.HoldingPnl, 1e-9)
	assert.InDelta(t, 50.0, next.NetPnl, 1e-9)
}
