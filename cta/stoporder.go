package cta

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/log"
)

func isStopOrderID(id string) bool {
	return strings.HasPrefix(id, core.StopOrderPrefix+core.SymbolSep)
}

/*
SendStopOrder
Record a local stop order; nothing reaches the venue until a tick crosses
the trigger. Long-entering triggers fire at lastPrice >= trigger, short-
entering at lastPrice <= trigger.
*/
func (e *Engine) SendStopOrder(j *Job, orderType, vtSymbol string, price, volume float64) (string, *errs.Error) {
	direction, offset, err := resolveIntent(orderType)
	if err != nil {
		return "", err
	}
	if contract := e.reg.GetContract(vtSymbol); contract == nil {
		return "", errs.NewMsg(core.ErrInvalidSymbol, "no contract for %s", vtSymbol)
	}
	e.stopCounter++
	id := fmt.Sprintf("%s%s%d", core.StopOrderPrefix, core.SymbolSep, e.stopCounter)
	so := &core.StopOrder{
		StopOrderID: id,
		VtSymbol:    vtSymbol,
		Direction:   direction,
		Offset:      offset,
		Price:       price,
		Volume:      volume,
		PriceType:   core.PriceTypeLimit,
		Status:      core.StopWaiting,
		ByStrategy:  j.Name(),
		OrderType:   orderType,
	}
	e.stopOrders[id] = so
	j.workingStops[id] = true
	e.notifyStopOrder(j, so)
	return id, nil
}

func (e *Engine) cancelStopOrder(j *Job, id string) *errs.Error {
	so, ok := e.stopOrders[id]
	if !ok {
		return errs.NewMsg(core.ErrInvalidOrder, "unknown stop order: %s", id)
	}
	if so.ByStrategy != j.Name() {
		return errs.NewMsg(core.ErrInvalidOrder, "stop order %s not owned by %s", id, j.Name())
	}
	so.Status = core.StopCancelled
	delete(e.stopOrders, id)
	delete(j.workingStops, id)
	e.notifyStopOrder(j, so)
	return nil
}

/*
checkStopOrders
Scan working stop orders against a fresh tick. A triggered stop converts to
an aggressive limit order: at the venue price limit when the tick carries
one, else at the 5th book level, else at the last price. The stop leaves
the working set only once the converted order has a vtOrderID, so a send
failure keeps the stop armed.
*/
func (e *Engine) checkStopOrders(tick *core.Tick) {
	if len(e.stopOrders) == 0 {
		return
	}
	for id, so := range e.stopOrders {
		if so.VtSymbol != tick.VtSymbol || so.Status != core.StopWaiting {
			continue
		}
		crossed := (so.Direction == core.DirectionLong && tick.LastPrice >= so.Price) ||
			(so.Direction == core.DirectionShort && tick.LastPrice <= so.Price)
		if !crossed {
			continue
		}
		price := stopFillPrice(so.Direction, tick)
		j := e.jobs[so.ByStrategy]
		if j == nil {
			delete(e.stopOrders, id)
			continue
		}
		ids, err := e.SendOrder(j, so.OrderType, so.VtSymbol, price, so.Volume, so.PriceType)
		if err != nil || len(ids) == 0 {
			if err != nil {
				log.Warn("stop order conversion fail, stop stays armed",
					zap.String("stop", id), zap.String("err", err.Short()))
			}
			continue
		}
		so.Status = core.StopTriggered
		delete(e.stopOrders, id)
		delete(j.workingStops, id)
		e.notifyStopOrder(j, so)
		log.Info("stop order triggered", zap.String("stop", id),
			zap.String("symbol", so.VtSymbol), zap.Float64("trigger", so.Price),
			zap.Strings("orders", ids))
	}
}

// stopFillPrice picks the aggressive conversion price for a triggered stop.
func stopFillPrice(direction string, tick *core.Tick) float64 {
	if direction == core.DirectionLong {
		if tick.UpperLimit > 0 {
			return tick.UpperLimit
		}
		if p := tick.Asks[4].Price; p > 0 {
			return p
		}
	} else {
		if tick.LowerLimit > 0 {
			return tick.LowerLimit
		}
		if p := tick.Bids[4].Price; p > 0 {
			return p
		}
	}
	return tick.LastPrice
}

func (e *Engine) notifyStopOrder(j *Job, so *core.StopOrder) {
	if j.Strat.OnStopOrder != nil {
		e.safeCall(j, func() { j.Strat.OnStopOrder(j, so) })
	}
}
