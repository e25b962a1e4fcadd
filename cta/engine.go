package cta

import (
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/ctafram/ctago/btime"
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/data"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/event"
	"github.com/ctafram/ctago/gateway"
	"github.com/ctafram/ctago/log"
	"github.com/ctafram/ctago/registry"
	"github.com/ctafram/ctago/utils"
)

// cancel acks are awaited this long when stopping a strategy
const stopCancelWait = 5 * time.Second

/*
Engine
The live CTA engine: dispatches bus events to strategy jobs, mints client
order IDs, keeps the client/venue ID correlation, triggers local stop
orders, and maintains per-strategy position and evening (closable)
bookkeeping including the close-today split for SHFE-classed venues.

Event processors and the public lifecycle methods both take the engine
lock: processors run on the dispatcher goroutine while lifecycle calls
arrive on caller goroutines. Strategy-facing methods (SendOrder,
CancelOrder, CancelAll, SendStopOrder, GetArrayManager) run inside a
processor's critical section and must not take the lock themselves.
*/
type Engine struct {
	bus      *event.Bus
	reg      *registry.Registry
	gateways map[string]gateway.Gateway
	barMgrs  map[string]*data.SymbolBarManager // vtSymbol

	jobs       map[string]*Job   // strategy name
	symbolJobs map[string][]*Job // vtSymbol -> subscribed jobs

	orderJobs  map[string]*Job   // vtOrderID -> owning job
	clientToVt map[string]string // clientOrderID <-> vtOrderID bimap
	vtToClient map[string]string
	lastStatus map[string]string // vtOrderID -> last seen status
	sendFrozen map[string]bool   // close orders whose evening was frozen at send

	stopOrders  map[string]*core.StopOrder // working stop orders
	stopCounter int64
	timerCount  int64

	plugins []*Plugin

	idGen   *OrderIDGen
	syncDir string
	// Mailer delivers OrderUnknown notifications to the strategy operator;
	// nil disables mailing (transport is an external collaborator).
	Mailer func(to, subject, body string)

	lock deadlock.Mutex
}

func NewEngine(bus *event.Bus, reg *registry.Registry, syncDir string) *Engine {
	e := &Engine{
		bus:        bus,
		reg:        reg,
		gateways:   make(map[string]gateway.Gateway),
		barMgrs:    make(map[string]*data.SymbolBarManager),
		jobs:       make(map[string]*Job),
		symbolJobs: make(map[string][]*Job),
		orderJobs:  make(map[string]*Job),
		clientToVt: make(map[string]string),
		vtToClient: make(map[string]string),
		lastStatus: make(map[string]string),
		sendFrozen: make(map[string]bool),
		stopOrders: make(map[string]*core.StopOrder),
		idGen:      NewOrderIDGen(),
		syncDir:    syncDir,
	}
	bus.Register(event.TypeTick, e.processTickEvent)
	bus.Register(event.TypeOrder, e.processOrderEvent)
	bus.Register(event.TypeTrade, e.processTradeEvent)
	bus.Register(event.TypePosition, e.processPositionEvent)
	bus.Register(event.TypeTimer, e.processTimerEvent)
	bus.Register(event.TypeError, e.processErrorEvent)
	return e
}

func (e *Engine) AddGateway(gw gateway.Gateway) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.gateways[gw.Name()] = gw
}

func (e *Engine) Gateway(name string) gateway.Gateway {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.gateways[name]
}

func (e *Engine) AddStrategy(strat *Strategy) (*Job, *errs.Error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if _, ok := e.jobs[strat.Name]; ok {
		return nil, errs.NewMsg(core.ErrBadConfig, "duplicate strategy name: %s", strat.Name)
	}
	j := NewJob(strat, e)
	e.jobs[strat.Name] = j
	return j, nil
}

func (e *Engine) GetJob(name string) *Job {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.jobs[name]
}

/*
*****************************  event processing  ****************************
*/

func (e *Engine) processTickEvent(ev *event.Event) {
	tick, ok := ev.Data.(*core.Tick)
	if !ok {
		return
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	e.pluginsPreTick(tick)
	defer e.pluginsPostTick(tick)
	e.checkStopOrders(tick)
	if mgr, ok2 := e.barMgrs[tick.VtSymbol]; ok2 {
		mgr.OnTick(tick)
	}
	for _, j := range e.symbolJobs[tick.VtSymbol] {
		if j.Trading && j.Strat.OnTick != nil {
			j := j
			e.safeCall(j, func() { j.Strat.OnTick(j, tick) })
		}
	}
}

func (e *Engine) processOrderEvent(ev *event.Event) {
	od, ok := ev.Data.(*core.Order)
	if !ok {
		return
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	e.pluginsPreOrder(od)
	defer e.pluginsPostOrder(od)
	e.correlateIDs(od)
	j := e.orderJobs[od.VtOrderID]
	if j == nil {
		return
	}
	prev := e.lastStatus[od.VtOrderID]
	if prev != "" && !core.StatusAdvances(prev, od.Status) {
		log.Warn("out-of-order status ignored", zap.String("order", od.VtOrderID),
			zap.String("prev", prev), zap.String("cur", od.Status))
		return
	}
	e.lastStatus[od.VtOrderID] = od.Status
	e.adjustEvening(j, od)
	if od.Status == core.StatusUnknown {
		e.mailOperator(j, od)
	}
	if core.StatusFinished(od.Status) {
		delete(j.workingOrders, od.VtOrderID)
		delete(e.lastStatus, od.VtOrderID)
		delete(e.sendFrozen, od.VtOrderID)
	}
	if j.Strat.OnOrder != nil {
		e.safeCall(j, func() { j.Strat.OnOrder(j, od) })
	}
}

/*
adjustEvening
Evening (closable) bookkeeping per order status:
  - cancelled close order: refund the unfilled remainder
  - open order filled: newly opened quantity becomes closable
  - notTraded close order from a venue-side freeze not applied at send
    (restored orders): apply it now
*/
func (e *Engine) adjustEvening(j *Job, od *core.Order) {
	symbol := od.VtSymbol
	switch od.Status {
	case core.StatusCancelled, core.StatusRejected:
		if isCloseOffset(od.Offset) {
			key := core.PosKey(symbol, core.OppositeDir(od.Direction))
			j.Evening[key] += od.UnTraded()
		}
	case core.StatusAllTraded, core.StatusPartTraded:
		if od.Offset == core.OffsetOpen && od.ThisTraded > 0 {
			key := core.PosKey(symbol, od.Direction)
			j.Evening[key] += od.ThisTraded
		}
	case core.StatusNotTraded:
		if isCloseOffset(od.Offset) && !e.sendFrozen[od.VtOrderID] {
			key := core.PosKey(symbol, core.OppositeDir(od.Direction))
			j.Evening[key] -= od.TotalVolume
			e.sendFrozen[od.VtOrderID] = true
		}
	}
}

func containsJob(jobs []*Job, j *Job) bool {
	for _, it := range jobs {
		if it == j {
			return true
		}
	}
	return false
}

func isCloseOffset(offset string) bool {
	switch offset {
	case core.OffsetClose, core.OffsetCloseToday, core.OffsetCloseYesterday:
		return true
	}
	return false
}

func (e *Engine) processTradeEvent(ev *event.Event) {
	td, ok := ev.Data.(*core.Trade)
	if !ok {
		return
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	e.pluginsPreTrade(td)
	defer e.pluginsPostTrade(td)
	j := e.orderJobs[td.VtOrderID]
	if j == nil {
		return
	}
	symbol := td.VtSymbol
	if td.Offset == core.OffsetOpen {
		j.Pos[core.PosKey(symbol, td.Direction)] += td.Volume
	} else {
		key := core.PosKey(symbol, core.OppositeDir(td.Direction))
		j.Pos[key] -= td.Volume
		if j.Pos[key] < 0 {
			log.Warn("position clamped at zero", zap.String("key", key),
				zap.String("trade", td.VtTradeID))
			j.Pos[key] = 0
		}
		if td.Offset == core.OffsetCloseYesterday {
			j.YdPos[key] = max(0, j.YdPos[key]-td.Volume)
		}
	}
	if j.Strat.OnTrade != nil {
		e.safeCall(j, func() { j.Strat.OnTrade(j, td) })
	}
}

// processPositionEvent seeds the yesterday-position cache from gateway
// position snapshots requested at strategy init.
func (e *Engine) processPositionEvent(ev *event.Event) {
	pos, ok := ev.Data.(*core.Position)
	if !ok {
		return
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	for _, j := range e.symbolJobs[pos.VtSymbol] {
		key := core.PosKey(pos.VtSymbol, pos.Direction)
		if !j.Inited {
			j.Pos[key] = pos.Position
			j.Evening[key] = pos.Available()
		}
		j.YdPos[key] = pos.YdQty
	}
}

// processErrorEvent reacts to gateway-surfaced failures. A connection-class
// error drops memoized history so the retry after reconnect refetches the
// bars instead of replaying a stale window.
func (e *Engine) processErrorEvent(ev *event.Event) {
	err, ok := ev.Data.(*errs.Error)
	if !ok {
		return
	}
	switch err.Code {
	case core.ErrNetConnect, core.ErrNetTimeout, core.ErrNetReadFail,
		core.ErrNetWriteFail, core.ErrNetTemporary, core.ErrGatewayUnavailable:
	default:
		return
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	for _, mgr := range e.barMgrs {
		mgr.InvalidateHistCache()
	}
}

const syncEveryTimer = 60

func (e *Engine) processTimerEvent(_ *event.Event) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.timerCount++
	if e.timerCount%syncEveryTimer != 0 {
		return
	}
	for _, j := range e.jobs {
		if j.Trading {
			if err := e.SaveSync(j); err != nil {
				log.Warn("strategy sync save fail", zap.String("name", j.Name()),
					zap.String("err", err.Short()))
			}
		}
	}
}

func (e *Engine) correlateIDs(od *core.Order) {
	if od.ClientOrderID != "" && od.VtOrderID != "" {
		if _, ok := e.clientToVt[od.ClientOrderID]; !ok {
			e.clientToVt[od.ClientOrderID] = od.VtOrderID
			e.vtToClient[od.VtOrderID] = od.ClientOrderID
			// replies that echo only the client ID may arrive before the
			// send call returned; adopt the order for its job now
			if j, ok2 := e.orderJobs[od.ClientOrderID]; ok2 {
				e.orderJobs[od.VtOrderID] = j
				delete(e.orderJobs, od.ClientOrderID)
			}
		}
	}
	if od.VtOrderID == "" && od.ClientOrderID != "" {
		od.VtOrderID = e.clientToVt[od.ClientOrderID]
	}
}

func (e *Engine) mailOperator(j *Job, od *core.Order) {
	log.Warn("order status unknown, awaiting venue", zap.String("order", od.VtOrderID),
		zap.String("strategy", j.Name()))
	if e.Mailer != nil && j.Strat.MailAdd != "" {
		subject := fmt.Sprintf("[%s] order %s status unknown", j.Name(), od.VtOrderID)
		e.Mailer(j.Strat.MailAdd, subject, fmt.Sprintf(
			"order %s on %s entered unknown state at %s; next venue status supersedes",
			od.VtOrderID, od.VtSymbol, btime.ToDateStr(btime.TimeMS(), "")))
	}
}

/*
*****************************  order routing  *******************************
*/

// resolveIntent maps buy/sell/short/cover to direction and offset.
func resolveIntent(orderType string) (string, string, *errs.Error) {
	switch orderType {
	case core.OrderBuy:
		return core.DirectionLong, core.OffsetOpen, nil
	case core.OrderSell:
		return core.DirectionShort, core.OffsetClose, nil
	case core.OrderShort:
		return core.DirectionShort, core.OffsetOpen, nil
	case core.OrderCover:
		return core.DirectionLong, core.OffsetClose, nil
	}
	return "", "", errs.NewMsg(core.ErrInvalidOrder, "unknown order type: %s", orderType)
}

/*
SendOrder
Resolve the trade intent, split the close leg into close-yesterday and
close-today for venues that require it, and route the requests to the
owning gateway. Returns the vtOrderIDs of every emitted request.
*/
func (e *Engine) SendOrder(j *Job, orderType, vtSymbol string, price, volume float64, priceType string) ([]string, *errs.Error) {
	direction, offset, err := resolveIntent(orderType)
	if err != nil {
		return nil, err
	}
	symbol, gwName := core.SplitVtSymbol(vtSymbol)
	gw, ok := e.gateways[gwName]
	if !ok {
		return nil, errs.NewMsg(core.ErrGatewayUnavailable, "no gateway for %s", vtSymbol)
	}
	contract := e.reg.GetContract(vtSymbol)
	exchange := ""
	if contract != nil {
		exchange = contract.Exchange
		price = utils.RoundToTick(price, contract.PriceTick)
		if contract.MinVolume > 0 && volume < contract.MinVolume {
			return nil, errs.NewMsg(core.ErrInvalidOrder,
				"volume %v below contract minimum %v", volume, contract.MinVolume)
		}
	}
	reqs := e.buildRequests(j, symbol, exchange, vtSymbol, direction, offset, priceType, price, volume)
	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		req.ClientOrderID = e.idGen.Next(j.Name())
		req.ByStrategy = j.Name()
		vtOrderID, err2 := gw.SendOrder(req)
		if err2 != nil {
			return ids, err2
		}
		e.clientToVt[req.ClientOrderID] = vtOrderID
		e.vtToClient[vtOrderID] = req.ClientOrderID
		e.orderJobs[vtOrderID] = j
		j.workingOrders[vtOrderID] = true
		if isCloseOffset(req.Offset) {
			e.freezeEvening(j, vtSymbol, req, vtOrderID)
		}
		ids = append(ids, vtOrderID)
	}
	return ids, nil
}

/*
buildRequests
One request for the open leg or a non-split venue close. SHFE-classed
venues split the close at send time on the yesterday-position cache:
close-yesterday up to the cached quantity, close-today for the remainder,
emitted in that order.
*/
func (e *Engine) buildRequests(j *Job, symbol, exchange, vtSymbol, direction, offset, priceType string, price, volume float64) []*gateway.OrderReq {
	mk := func(off string, vol float64) *gateway.OrderReq {
		return &gateway.OrderReq{
			Symbol:    symbol,
			Exchange:  exchange,
			VtSymbol:  vtSymbol,
			Direction: direction,
			Offset:    off,
			PriceType: priceType,
			Price:     price,
			Volume:    vol,
		}
	}
	if offset != core.OffsetClose || !core.ExchangesCloseToday[exchange] {
		return []*gateway.OrderReq{mk(offset, volume)}
	}
	closeDir := core.OppositeDir(direction)
	ydQty := j.YdPos[core.PosKey(vtSymbol, closeDir)]
	if ydQty >= volume {
		return []*gateway.OrderReq{mk(core.OffsetCloseYesterday, volume)}
	}
	if ydQty <= 0 {
		return []*gateway.OrderReq{mk(core.OffsetCloseToday, volume)}
	}
	return []*gateway.OrderReq{
		mk(core.OffsetCloseYesterday, ydQty),
		mk(core.OffsetCloseToday, volume-ydQty),
	}
}

// freezeEvening decrements the closable quantity for a close send. A venue
// may reject an over-freeze; the engine still sends and only warns.
func (e *Engine) freezeEvening(j *Job, vtSymbol string, req *gateway.OrderReq, vtOrderID string) {
	key := core.PosKey(vtSymbol, core.OppositeDir(req.Direction))
	j.Evening[key] -= req.Volume
	e.sendFrozen[vtOrderID] = true
	if j.Evening[key] < 0 {
		log.Warn("close volume exceeds closable quantity",
			zap.String("key", key), zap.Float64("evening", j.Evening[key]),
			zap.String("strategy", j.Name()))
	}
}

/*
CancelOrder cancels a regular order or a local stop order by id.
*/
func (e *Engine) CancelOrder(j *Job, id string) *errs.Error {
	if isStopOrderID(id) {
		return e.cancelStopOrder(j, id)
	}
	od := e.reg.GetOrder(id)
	if od == nil {
		return errs.NewMsg(core.ErrInvalidOrder, "unknown order: %s", id)
	}
	gw, ok := e.gateways[od.Gateway]
	if !ok {
		return errs.NewMsg(core.ErrGatewayUnavailable, "no gateway for order %s", id)
	}
	return gw.CancelOrder(&gateway.CancelReq{
		Symbol:        od.Symbol,
		Exchange:      od.Exchange,
		VtOrderID:     od.VtOrderID,
		ClientOrderID: od.ClientOrderID,
	})
}

/*
CancelAll cancels the strategy's working orders and stop orders. Orders
already cancelling are excluded from the retry pass.
*/
func (e *Engine) CancelAll(j *Job) *errs.Error {
	var lastErr *errs.Error
	for id := range j.workingOrders {
		od := e.reg.GetOrder(id)
		if od != nil && od.Status == core.StatusCancelling {
			continue
		}
		if err := e.CancelOrder(j, id); err != nil {
			lastErr = err
			log.Warn("cancel order fail", zap.String("order", id),
				zap.String("err", err.Short()))
		}
	}
	for id := range j.workingStops {
		if err := e.cancelStopOrder(j, id); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

/*
*****************************  strategy lifecycle  **************************
*/

/*
InitStrategy
Subscribe market data, request seed positions, register bar frequencies
and kick history fetches, then run OnInit.
*/
func (e *Engine) InitStrategy(name string) *errs.Error {
	e.lock.Lock()
	defer e.lock.Unlock()
	j := e.jobs[name]
	if j == nil {
		return errs.NewMsg(core.ErrBadConfig, "unknown strategy: %s", name)
	}
	if j.Inited {
		return errs.NewMsg(core.ErrRunTime, "strategy %s already inited", name)
	}
	for _, vtSymbol := range j.Strat.SymbolList {
		symbol, gwName := core.SplitVtSymbol(vtSymbol)
		gw, ok := e.gateways[gwName]
		if !ok {
			return errs.NewMsg(core.ErrGatewayUnavailable, "no gateway for %s", vtSymbol)
		}
		if err := gw.Subscribe(symbol); err != nil {
			return err
		}
		if err := gw.InitPosition(symbol); err != nil {
			log.Warn("seed position request fail", zap.String("symbol", vtSymbol),
				zap.String("err", err.Short()))
		}
		if !containsJob(e.symbolJobs[vtSymbol], j) {
			e.symbolJobs[vtSymbol] = append(e.symbolJobs[vtSymbol], j)
		}
		mgr, ok := e.barMgrs[vtSymbol]
		if !ok {
			mgr = data.NewSymbolBarManager(vtSymbol, data.DefaultArraySize, gw)
			e.barMgrs[vtSymbol] = mgr
		}
		if err := e.registerFreqs(j, mgr); err != nil {
			return err
		}
	}
	if j.Strat.OnInit != nil {
		e.safeCall(j, func() { j.Strat.OnInit(j) })
	}
	j.Inited = true
	e.writeCtaLog(j, "strategy inited")
	return nil
}

func (e *Engine) registerFreqs(j *Job, mgr *data.SymbolBarManager) *errs.Error {
	freqs := append([]string{"1m"}, j.Strat.Freqs...)
	for _, freq := range freqs {
		freq := freq
		cb := e.barCallback(j, freq)
		if err := mgr.Register(freq, cb); err != nil {
			return err
		}
		if err := mgr.FetchHistBars(freq); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) barCallback(j *Job, freq string) data.FnBar {
	norm, _ := utils.NormFreq(freq)
	return func(bar *core.Bar) {
		if !j.Trading && !j.Inited {
			return
		}
		core.SetPrice(bar.VtSymbol, bar.Close)
		if hook, ok := j.Strat.FreqBars[norm]; ok && hook != nil {
			e.safeCall(j, func() { hook(j, bar) })
			return
		}
		if utils.IsHighFreq(norm) {
			if j.Strat.OnHFBar != nil {
				e.safeCall(j, func() { j.Strat.OnHFBar(j, bar) })
			}
			return
		}
		if norm == "1m" && j.Strat.OnBar != nil {
			e.safeCall(j, func() { j.Strat.OnBar(j, bar) })
		}
	}
}

func (e *Engine) StartStrategy(name string) *errs.Error {
	e.lock.Lock()
	defer e.lock.Unlock()
	j := e.jobs[name]
	if j == nil {
		return errs.NewMsg(core.ErrBadConfig, "unknown strategy: %s", name)
	}
	if !j.Inited || j.Trading {
		return errs.NewMsg(core.ErrRunTime, "strategy %s not startable", name)
	}
	j.Trading = true
	if j.Strat.OnStart != nil {
		e.safeCall(j, func() { j.Strat.OnStart(j) })
	}
	e.writeCtaLog(j, "strategy started")
	return nil
}

/*
StopStrategy
Cancel everything working, then wait up to 5s for cancel acks before
declaring the strategy stopped. Runs on the caller goroutine, never the
dispatcher.
*/
func (e *Engine) StopStrategy(name string) *errs.Error {
	e.lock.Lock()
	j := e.jobs[name]
	if j == nil {
		e.lock.Unlock()
		return errs.NewMsg(core.ErrBadConfig, "unknown strategy: %s", name)
	}
	if !j.Trading {
		e.lock.Unlock()
		return errs.NewMsg(core.ErrRunTime, "strategy %s not trading", name)
	}
	j.Trading = false
	_ = e.CancelAll(j)
	e.lock.Unlock()

	deadline := time.Now().Add(stopCancelWait)
	for time.Now().Before(deadline) {
		e.lock.Lock()
		working := len(j.workingOrders)
		e.lock.Unlock()
		if working == 0 {
			break
		}
		if !core.Sleep(100 * time.Millisecond) {
			break
		}
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	j.Inited = false
	if j.Strat.OnStop != nil {
		e.safeCall(j, func() { j.Strat.OnStop(j) })
	}
	if err := e.SaveSync(j); err != nil {
		log.Warn("strategy sync save fail", zap.String("name", name),
			zap.String("err", err.Short()))
	}
	e.writeCtaLog(j, "strategy stopped")
	return nil
}

/*
RestoreStrategy
Reload persisted variables and resume trading without running OnInit.
*/
func (e *Engine) RestoreStrategy(name string) *errs.Error {
	e.lock.Lock()
	defer e.lock.Unlock()
	j := e.jobs[name]
	if j == nil {
		return errs.NewMsg(core.ErrBadConfig, "unknown strategy: %s", name)
	}
	if j.Inited || j.Trading {
		return errs.NewMsg(core.ErrRunTime, "strategy %s not restorable", name)
	}
	if err := e.LoadSync(j); err != nil {
		return err
	}
	if j.Strat.OnRestore != nil {
		e.safeCall(j, func() { j.Strat.OnRestore(j) })
	}
	j.Inited = true
	j.Trading = true
	e.writeCtaLog(j, "strategy restored")
	return nil
}

/*
safeCall runs a strategy hook; a panic stops that strategy, cancels its
orders and leaves every other strategy untouched.
*/
func (e *Engine) safeCall(j *Job, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("strategy panic, stopping",
				zap.String("name", j.Name()),
				zap.String("reason", fmt.Sprintf("%v", r)))
			j.Trading = false
			j.Inited = false
			_ = e.CancelAll(j)
			e.writeCtaLog(j, fmt.Sprintf("stopped by panic: %v", r))
		}
	}()
	fn()
}

/*
*****************************  misc API  ************************************
*/

func (e *Engine) GetArrayManager(vtSymbol, freq string) *data.ArrayManager {
	mgr, ok := e.barMgrs[vtSymbol]
	if !ok {
		return nil
	}
	return mgr.GetArray(freq)
}

func (e *Engine) LoadHistoryBars(vtSymbol, freq string, size int) ([]*core.Bar, *errs.Error) {
	symbol, gwName := core.SplitVtSymbol(vtSymbol)
	gw, ok := e.gateways[gwName]
	if !ok {
		return nil, errs.NewMsg(core.ErrGatewayUnavailable, "no gateway for %s", vtSymbol)
	}
	return gw.LoadHistoryBars(symbol, freq, size, 0)
}

func (e *Engine) GetContract(vtSymbol string) *core.Contract {
	return e.reg.GetContract(vtSymbol)
}

func (e *Engine) WriteCtaLog(j *Job, content string) {
	e.writeCtaLog(j, content)
}

func (e *Engine) writeCtaLog(j *Job, content string) {
	rec := &core.LogRecord{
		TimeMS:  btime.TimeMS(),
		Level:   "info",
		Content: fmt.Sprintf("[%s] %s", j.Name(), content),
	}
	e.bus.Put(&event.Event{Type: event.TypeCtaLog, Data: rec})
	log.Info(content, zap.String("strategy", j.Name()))
}

// PutEvent pushes a strategy state snapshot for UI subscribers.
func (e *Engine) PutEvent(j *Job) {
	e.bus.Put(&event.Event{
		Type: event.StrategyType(j.Name()),
		Data: map[string]interface{}{
			"name":    j.Name(),
			"inited":  j.Inited,
			"trading": j.Trading,
			"pos":     j.Pos,
			"evening": j.Evening,
			"vars":    j.Vars,
		},
	})
}

/*
Stop shuts down every trading strategy and all gateways; called on process
shutdown before the bus is drained.
*/
func (e *Engine) Stop() {
	e.lock.Lock()
	var trading []string
	for name, j := range e.jobs {
		if j.Trading {
			trading = append(trading, name)
		}
	}
	gws := make([]gateway.Gateway, 0, len(e.gateways))
	for _, gw := range e.gateways {
		gws = append(gws, gw)
	}
	e.lock.Unlock()
	for _, name := range trading {
		if err := e.StopStrategy(name); err != nil {
			log.Warn("stop strategy fail", zap.String("name", name),
				zap.String("err", err.Short()))
		}
	}
	for _, gw := range gws {
		if err := gw.Close(); err != nil {
			log.Warn("close gateway fail", zap.String("name", gw.Name()),
				zap.String("err", err.Short()))
		}
	}
}
