package strat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctafram/ctago/backtest"
	"github.com/ctafram/ctago/btime"
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/cta"
	"github.com/ctafram/ctago/store"
)

func flatBar(timeMS int64, open, high, low, cls float64) *core.Bar {
	return &core.Bar{
		Symbol: "rb2405", TimeMS: timeMS,
		Open: open, High: high, Low: low, Close: cls, Volume: 1,
	}
}

func TestDoubleSMACrossover(t *testing.T) {
	st, err := cta.NewStrategyOf("DoubleSMA")
	require.Nil(t, err)
	st.Params = map[string]interface{}{
		"freq": "1m", "fastLen": 2, "slowLen": 3, "volume": 1,
	}
	var job *cta.Job
	st.OnStart = func(j *cta.Job) { job = j }

	start := btime.ParseTimeMS("2023-11-14 01:00:00")
	minMS := int64(60_000)
	bars := []*core.Bar{
		flatBar(start, 100, 100, 100, 100),
		flatBar(start+1*minMS, 100, 100, 100, 100),
		flatBar(start+2*minMS, 100, 100, 100, 100),
		// dead cross: shorts one at the close
		flatBar(start+3*minMS, 80, 80, 80, 80),
		// short limit 80 crosses on the high
		flatBar(start+4*minMS, 80, 85, 75, 80),
		flatBar(start+5*minMS, 80, 80, 80, 80),
		// golden cross: covers the short and buys one
		flatBar(start+6*minMS, 120, 120, 120, 120),
		// both long limits cross on the low
		flatBar(start+7*minMS, 120, 125, 110, 120),
	}
	ms := store.NewMemStore()
	require.Nil(t, ms.InsertBars("rb2405", "1m", bars))

	cfg := backtest.Config{
		VtSymbol: "rb2405.bt", Freq: "1m",
		StartMS: start, EndMS: start + 8*minMS,
		Capital: 1_000_000, Size: 10, PriceTick: 1,
	}
	e, err := backtest.NewEngine(cfg, ms)
	require.Nil(t, err)
	e.Progress = false
	res, err := e.Run(st)
	require.Nil(t, err)
	require.NotNil(t, res)

	trades := e.Trades()
	require.Len(t, trades, 3)
	assert.Equal(t, core.DirectionShort, trades[0].Direction)
	assert.Equal(t, core.OffsetOpen, trades[0].Offset)
	assert.Equal(t, 80.0, trades[0].Price)
	// the cover and the new long fill on the same bar in either order
	offsets := map[string]float64{}
	for _, td := range trades[1:] {
		assert.Equal(t, core.DirectionLong, td.Direction)
		assert.Equal(t, 120.0, td.Price)
		offsets[td.Offset] = td.Volume
	}
	assert.Equal(t, map[string]float64{
		core.OffsetClose: 1,
		core.OffsetOpen:  1,
	}, offsets)

	require.NotNil(t, job)
	assert.Equal(t, 1.0, job.GetPos("rb2405.bt"))
	assert.Equal(t, "golden", job.Vars["lastCross"])
}
