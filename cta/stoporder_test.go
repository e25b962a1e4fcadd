package cta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/event"
)

func tickAt(price float64) *event.Event {
	return &event.Event{Type: event.TypeTick, Data: &core.Tick{
		VtSymbol: ctpSymbol, LastPrice: price,
	}}
}

func TestStopOrderLifecycle(t *testing.T) {
	e, gw, j := newTestEngine(t, "DCE")
	var states []string
	j.Strat.OnStopOrder = func(j *Job, so *core.StopOrder) {
		states = append(states, so.Status)
	}
	id, err := e.SendStopOrder(j, core.OrderBuy, ctpSymbol, 120, 1)
	require.Nil(t, err)
	assert.True(t, isStopOrderID(id))
	assert.Contains(t, j.WorkingStopIDs(), id)

	// below the trigger nothing happens
	e.processTickEvent(tickAt(119))
	assert.Empty(t, gw.sent)

	// at the trigger the stop converts to an aggressive limit order
	e.processTickEvent(&event.Event{Type: event.TypeTick, Data: &core.Tick{
		VtSymbol: ctpSymbol, LastPrice: 120, UpperLimit: 125,
	}})
	require.Equal(t, 1, len(gw.sent))
	assert.Equal(t, 125.0, gw.sent[0].Price)
	assert.Equal(t, core.DirectionLong, gw.sent[0].Direction)
	assert.Equal(t, core.OffsetOpen, gw.sent[0].Offset)
	assert.Empty(t, j.WorkingStopIDs())
	assert.Equal(t, []string{core.StopWaiting, core.StopTriggered}, states)
}

func TestShortStopTriggersDownward(t *testing.T) {
	e, gw, j := newTestEngine(t, "DCE")
	_, err := e.SendStopOrder(j, core.OrderShort, ctpSymbol, 90, 1)
	require.Nil(t, err)
	e.processTickEvent(tickAt(91))
	assert.Empty(t, gw.sent)
	e.processTickEvent(&event.Event{Type: event.TypeTick, Data: &core.Tick{
		VtSymbol: ctpSymbol, LastPrice: 89, LowerLimit: 85,
	}})
	require.Equal(t, 1, len(gw.sent))
	assert.Equal(t, 85.0, gw.sent[0].Price)
	assert.Equal(t, core.DirectionShort, gw.sent[0].Direction)
}

func TestStopFillPriceFallbacks(t *testing.T) {
	tick := &core.Tick{LastPrice: 100, UpperLimit: 110, LowerLimit: 90}
	assert.Equal(t, 110.0, stopFillPrice(core.DirectionLong, tick))
	assert.Equal(t, 90.0, stopFillPrice(core.DirectionShort, tick))

	tick = &core.Tick{LastPrice: 100}
	tick.Asks[4] = core.PriceVol{Price: 104, Volume: 1}
	tick.Bids[4] = core.PriceVol{Price: 96, Volume: 1}
	assert.Equal(t, 104.0, stopFillPrice(core.DirectionLong, tick))
	assert.Equal(t, 96.0, stopFillPrice(core.DirectionShort, tick))

	tick = &core.Tick{LastPrice: 100}
	assert.Equal(t, 100.0, stopFillPrice(core.DirectionLong, tick))
	assert.Equal(t, 100.0, stopFillPrice(core.DirectionShort, tick))
}

func TestStopStaysArmedOnSendFailure(t *testing.T) {
	e, gw, j := newTestEngine(t, "DCE")
	id, err := e.SendStopOrder(j, core.OrderBuy, ctpSymbol, 120, 1)
	require.Nil(t, err)
	gw.sendErr = errs.NewMsg(core.ErrGatewayUnavailable, "venue down")
	e.processTickEvent(tickAt(121))
	// conversion failed, the stop keeps waiting for the next tick
	assert.Contains(t, j.WorkingStopIDs(), id)
	assert.Equal(t, core.StopWaiting, e.stopOrders[id].Status)

	gw.sendErr = nil
	e.processTickEvent(tickAt(121))
	assert.Empty(t, j.WorkingStopIDs())
	require.Equal(t, 1, len(gw.sent))
}

func TestCancelStopOrder(t *testing.T) {
	e, _, j := newTestEngine(t, "DCE")
	id, err := e.SendStopOrder(j, core.OrderBuy, ctpSymbol, 120, 1)
	require.Nil(t, err)
	require.Nil(t, e.CancelOrder(j, id))
	assert.Empty(t, j.WorkingStopIDs())
	// cancelled stops never trigger
	e.processTickEvent(tickAt(150))
	assert.Empty(t, e.stopOrders)
}

func TestCancelStopOrderOwnership(t *testing.T) {
	e, _, j := newTestEngine(t, "DCE")
	id, err := e.SendStopOrder(j, core.OrderBuy, ctpSymbol, 120, 1)
	require.Nil(t, err)
	j2, aerr := e.AddStrategy(&Strategy{Name: "s2", SymbolList: []string{ctpSymbol}})
	require.Nil(t, aerr)
	j2.Inited = true
	j2.Trading = true
	assert.NotNil(t, e.CancelOrder(j2, id))
	assert.Contains(t, j.WorkingStopIDs(), id)
}

func TestStopOrderNeedsContract(t *testing.T) {
	e, _, j := newTestEngine(t, "DCE")
	_, err := e.SendStopOrder(j, core.OrderBuy, "cu2405.ctp", 120, 1)
	assert.NotNil(t, err)
}
