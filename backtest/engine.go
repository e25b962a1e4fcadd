package backtest

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/ctafram/ctago/btime"
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/cta"
	"github.com/ctafram/ctago/data"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/log"
	"github.com/ctafram/ctago/store"
	"github.com/ctafram/ctago/utils"
)

/*
Config
One backtest run: a symbol, a replay frequency, a [Start, End) window and
the contract cost model. Slippage is a per-unit price amount charged on
both legs of a round trip.
*/
type Config struct {
	VtSymbol  string
	Freq      string
	StartMS   int64
	EndMS     int64
	Capital   float64
	Size      float64 // contract multiplier
	PriceTick float64
	Rate      float64 // commission rate on notional
	Slippage  float64
	Inverse   bool // USD-margined inverse contract PnL
	// PatchCancel defers cancels issued inside fill callbacks until the
	// current cross batch completes, mirroring venue cancel causality.
	PatchCancel bool
}

/*
Engine
Bar-replay simulator driving the same strategy template as live trading.
Runs single threaded in the caller: for every bar the working limit orders
cross first, then the stop orders, then OnBar fires. Orders sent during
OnBar therefore cross against the next bar, never their own.
*/
type Engine struct {
	cfg   Config
	store store.BarStore
	strat *cta.Strategy
	job   *cta.Job
	mgr   *data.SymbolBarManager

	freqMS int64
	bar    *core.Bar
	nowMS  int64 // engine-local clock; parallel optimizer runs share no state

	orderCount  int64
	stopCount   int64
	tradeCount  int64
	limitOrders map[string]*core.Order
	stopOrders  map[string]*core.StopOrder
	// send order is fill-priority order; map iteration would shuffle it
	limitIDs  []string
	stopIDs   []string
	allOrders map[string]*core.Order
	trades    []*core.Trade

	crossing       bool
	pendingCancels []string

	daily    map[string]*DailyResult
	dayOrder []string

	// Progress toggles the console progress bar; off under the optimizer.
	Progress bool
	logs     []string
}

func NewEngine(cfg Config, st store.BarStore) (*Engine, *errs.Error) {
	norm, err := utils.NormFreq(cfg.Freq)
	if err != nil {
		return nil, err
	}
	cfg.Freq = norm
	ms := utils.FreqToMSecs(norm)
	if cfg.StartMS >= cfg.EndMS {
		return nil, errs.NewMsg(core.ErrBadConfig, "empty backtest window")
	}
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	return &Engine{
		cfg:         cfg,
		store:       st,
		freqMS:      ms,
		limitOrders: make(map[string]*core.Order),
		stopOrders:  make(map[string]*core.StopOrder),
		allOrders:   make(map[string]*core.Order),
		daily:       make(map[string]*DailyResult),
		Progress:    true,
	}, nil
}

/*
Run
Replay the window against one strategy and return the aggregated result.
*/
func (e *Engine) Run(strat *cta.Strategy) (*Result, *errs.Error) {
	e.strat = strat
	e.job = cta.NewJob(strat, e)
	if err := e.setupBars(); err != nil {
		return nil, err
	}
	symbol, _ := core.SplitVtSymbol(e.cfg.VtSymbol)
	bars, err := e.store.LoadBars(symbol, e.cfg.Freq, e.cfg.StartMS, e.cfg.EndMS)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, errs.NewMsg(core.ErrInvalidBars, "no bars for %s %s in window",
			e.cfg.VtSymbol, e.cfg.Freq)
	}
	e.nowMS = e.cfg.StartMS
	if strat.OnInit != nil {
		strat.OnInit(e.job)
	}
	e.job.Inited = true
	e.job.Trading = true
	if strat.OnStart != nil {
		strat.OnStart(e.job)
	}
	var pb *progressbar.ProgressBar
	if e.Progress {
		pb = progressbar.Default(int64(len(bars)), "backtest")
	}
	for _, bar := range bars {
		e.newBar(bar)
		if pb != nil {
			_ = pb.Add(1)
		}
	}
	if pb != nil {
		_ = pb.Close()
	}
	e.job.Trading = false
	if strat.OnStop != nil {
		strat.OnStop(e.job)
	}
	return e.calcResult(), nil
}

func (e *Engine) setupBars() *errs.Error {
	e.mgr = data.NewSymbolBarManager(e.cfg.VtSymbol, data.DefaultArraySize, nil)
	freqs := append([]string{e.cfg.Freq}, e.strat.Freqs...)
	for _, freq := range freqs {
		norm, err := utils.NormFreq(freq)
		if err != nil {
			return err
		}
		if err := e.mgr.Register(norm, func(bar *core.Bar) {
			e.deliverBar(norm, bar)
		}); err != nil {
			return err
		}
	}
	e.mgr.DisableHistory()
	return nil
}

/*
newBar
Cross working orders against the incoming bar, then deliver it. Fill
decisions for bar n depend only on earlier bars and on bar n's own OHLC.
*/
func (e *Engine) newBar(bar *core.Bar) {
	if bar.VtSymbol == "" {
		bar.VtSymbol = e.cfg.VtSymbol
	}
	e.bar = bar
	e.nowMS = bar.TimeMS + e.freqMS
	e.crossing = true
	e.crossLimitOrders(bar)
	e.crossStopOrders(bar)
	e.crossing = false
	e.applyPendingCancels()
	if e.cfg.Freq == "1m" {
		e.mgr.OnBar(bar)
	} else {
		if am := e.mgr.GetArray(e.cfg.Freq); am != nil {
			am.Push(bar)
		}
		e.deliverBar(e.cfg.Freq, bar)
	}
	e.markDaily(bar)
}

func (e *Engine) deliverBar(freq string, bar *core.Bar) {
	core.SetPrice(bar.VtSymbol, bar.Close)
	if hook, ok := e.strat.FreqBars[freq]; ok && hook != nil {
		hook(e.job, bar)
		return
	}
	if utils.IsHighFreq(freq) {
		if e.strat.OnHFBar != nil {
			e.strat.OnHFBar(e.job, bar)
		}
		return
	}
	if freq == e.cfg.Freq && e.strat.OnBar != nil {
		e.strat.OnBar(e.job, bar)
	}
}

/*
*****************************  order crossing  ******************************
*/

// crossLimitOrders fills in send order; orders sent from inside a fill
// callback land behind the surviving older orders.
func (e *Engine) crossLimitOrders(bar *core.Bar) {
	ids := e.limitIDs
	e.limitIDs = nil
	var keep []string
	for _, id := range ids {
		od, ok := e.limitOrders[id]
		if !ok {
			// cancelled since the last bar
			continue
		}
		var fill float64
		if od.Price <= 0 {
			keep = append(keep, id)
			continue
		}
		if od.Direction == core.DirectionLong && bar.Low < od.Price {
			fill = min(od.Price, bar.Open)
		} else if od.Direction == core.DirectionShort && bar.High > od.Price {
			fill = max(od.Price, bar.Open)
		} else {
			keep = append(keep, id)
			continue
		}
		delete(e.limitOrders, id)
		e.fillOrder(od, fill)
	}
	e.limitIDs = append(keep, e.limitIDs...)
}

func (e *Engine) crossStopOrders(bar *core.Bar) {
	ids := e.stopIDs
	e.stopIDs = nil
	var keep []string
	for _, id := range ids {
		so, ok := e.stopOrders[id]
		if !ok {
			continue
		}
		var fill float64
		if so.Direction == core.DirectionLong && bar.High >= so.Price {
			fill = max(bar.Open, so.Price)
		} else if so.Direction == core.DirectionShort && bar.Low <= so.Price {
			fill = min(bar.Open, so.Price)
		} else {
			keep = append(keep, id)
			continue
		}
		delete(e.stopOrders, id)
		e.job.UntrackStop(id)
		so.Status = core.StopTriggered
		od := e.newOrder(so.Direction, so.Offset, so.Price, so.Volume, so.PriceType)
		if e.strat.OnStopOrder != nil {
			e.strat.OnStopOrder(e.job, so)
		}
		e.fillOrder(od, fill)
	}
	e.stopIDs = append(keep, e.stopIDs...)
}

// fillOrder books a full fill: order event, position update, trade event.
func (e *Engine) fillOrder(od *core.Order, price float64) {
	od.Status = core.StatusAllTraded
	od.TradedVolume = od.TotalVolume
	od.ThisTraded = od.TotalVolume
	od.PriceAvg = price
	e.job.UntrackOrder(od.VtOrderID)
	if e.strat.OnOrder != nil {
		e.strat.OnOrder(e.job, od)
	}
	e.tradeCount++
	td := &core.Trade{
		VtTradeID: fmt.Sprintf("bt.t%d", e.tradeCount),
		VtOrderID: od.VtOrderID,
		Symbol:    od.Symbol,
		VtSymbol:  od.VtSymbol,
		Direction: od.Direction,
		Offset:    od.Offset,
		Price:     price,
		Volume:    od.TotalVolume,
		TimeMS:    e.bar.TimeMS,
	}
	e.trades = append(e.trades, td)
	e.applyTrade(td)
	if dr := e.dayResult(e.bar); dr != nil {
		dr.Trades = append(dr.Trades, td)
		dr.TradeCount++
	}
	if e.strat.OnTrade != nil {
		e.strat.OnTrade(e.job, td)
	}
}

func (e *Engine) applyTrade(td *core.Trade) {
	if td.Offset == core.OffsetOpen {
		key := core.PosKey(td.VtSymbol, td.Direction)
		e.job.Pos[key] += td.Volume
		e.job.Evening[key] += td.Volume
		return
	}
	key := core.PosKey(td.VtSymbol, core.OppositeDir(td.Direction))
	e.job.Pos[key] -= td.Volume
	if e.job.Pos[key] < 0 {
		e.job.Pos[key] = 0
	}
}

/*
*****************************  cta.EngineAPI  *******************************
*/

func (e *Engine) newOrder(direction, offset string, price, volume float64, priceType string) *core.Order {
	e.orderCount++
	symbol, _ := core.SplitVtSymbol(e.cfg.VtSymbol)
	od := &core.Order{
		VtOrderID:   fmt.Sprintf("bt.%d", e.orderCount),
		Symbol:      symbol,
		VtSymbol:    e.cfg.VtSymbol,
		Direction:   direction,
		Offset:      offset,
		PriceType:   priceType,
		Price:       utils.RoundToTick(price, e.cfg.PriceTick),
		TotalVolume: volume,
		Status:      core.StatusNotTraded,
		CreateMS:    e.nowMS,
		ByStrategy:  e.strat.Name,
	}
	e.allOrders[od.VtOrderID] = od
	return od
}

func (e *Engine) SendOrder(j *cta.Job, orderType, vtSymbol string, price, volume float64, priceType string) ([]string, *errs.Error) {
	direction, offset, err := resolveBtIntent(orderType)
	if err != nil {
		return nil, err
	}
	od := e.newOrder(direction, offset, price, volume, priceType)
	e.limitOrders[od.VtOrderID] = od
	e.limitIDs = append(e.limitIDs, od.VtOrderID)
	j.TrackOrder(od.VtOrderID)
	return []string{od.VtOrderID}, nil
}

func resolveBtIntent(orderType string) (string, string, *errs.Error) {
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

func (e *Engine) SendStopOrder(j *cta.Job, orderType, vtSymbol string, price, volume float64) (string, *errs.Error) {
	direction, offset, err := resolveBtIntent(orderType)
	if err != nil {
		return "", err
	}
	e.stopCount++
	id := fmt.Sprintf("%s%sbt%d", core.StopOrderPrefix, core.SymbolSep, e.stopCount)
	so := &core.StopOrder{
		StopOrderID: id,
		VtSymbol:    e.cfg.VtSymbol,
		Direction:   direction,
		Offset:      offset,
		Price:       utils.RoundToTick(price, e.cfg.PriceTick),
		Volume:      volume,
		PriceType:   core.PriceTypeLimit,
		Status:      core.StopWaiting,
		ByStrategy:  e.strat.Name,
		OrderType:   orderType,
	}
	e.stopOrders[id] = so
	e.stopIDs = append(e.stopIDs, id)
	j.TrackStop(id)
	if e.strat.OnStopOrder != nil {
		e.strat.OnStopOrder(j, so)
	}
	return id, nil
}

func (e *Engine) CancelOrder(j *cta.Job, id string) *errs.Error {
	if e.cfg.PatchCancel && e.crossing {
		e.pendingCancels = append(e.pendingCancels, id)
		return nil
	}
	return e.doCancel(j, id)
}

func (e *Engine) applyPendingCancels() {
	for _, id := range e.pendingCancels {
		_ = e.doCancel(e.job, id)
	}
	e.pendingCancels = e.pendingCancels[:0]
}

func (e *Engine) doCancel(j *cta.Job, id string) *errs.Error {
	if so, ok := e.stopOrders[id]; ok {
		delete(e.stopOrders, id)
		j.UntrackStop(id)
		so.Status = core.StopCancelled
		if e.strat.OnStopOrder != nil {
			e.strat.OnStopOrder(j, so)
		}
		return nil
	}
	od, ok := e.limitOrders[id]
	if !ok {
		// already filled or cancelled during this batch
		return nil
	}
	delete(e.limitOrders, id)
	j.UntrackOrder(id)
	od.Status = core.StatusCancelled
	if e.strat.OnOrder != nil {
		e.strat.OnOrder(j, od)
	}
	return nil
}

func (e *Engine) CancelAll(j *cta.Job) *errs.Error {
	for _, id := range append([]string(nil), e.limitIDs...) {
		if _, ok := e.limitOrders[id]; ok {
			_ = e.CancelOrder(j, id)
		}
	}
	for _, id := range append([]string(nil), e.stopIDs...) {
		if _, ok := e.stopOrders[id]; ok {
			_ = e.CancelOrder(j, id)
		}
	}
	return nil
}

func (e *Engine) GetArrayManager(vtSymbol, freq string) *data.ArrayManager {
	return e.mgr.GetArray(freq)
}

// LoadHistoryBars serves warm-up bars preceding the test window.
func (e *Engine) LoadHistoryBars(vtSymbol, freq string, size int) ([]*core.Bar, *errs.Error) {
	norm, err := utils.NormFreq(freq)
	if err != nil {
		return nil, err
	}
	ms := utils.FreqToMSecs(norm)
	symbol, _ := core.SplitVtSymbol(vtSymbol)
	return e.store.LoadBars(symbol, norm, e.cfg.StartMS-int64(size)*ms, e.cfg.StartMS)
}

func (e *Engine) GetContract(vtSymbol string) *core.Contract {
	symbol, gw := core.SplitVtSymbol(e.cfg.VtSymbol)
	return &core.Contract{
		Symbol:       symbol,
		Gateway:      gw,
		VtSymbol:     e.cfg.VtSymbol,
		ProductClass: core.ProductFutures,
		PriceTick:    e.cfg.PriceTick,
		Size:         e.cfg.Size,
		MinVolume:    0,
	}
}

func (e *Engine) WriteCtaLog(j *cta.Job, content string) {
	line := fmt.Sprintf("%s [%s] %s",
		btime.ToDateStr(e.nowMS, ""), j.Name(), content)
	e.logs = append(e.logs, line)
	log.Debug("cta log", zap.String("line", line))
}

// Logs returns the strategy log lines collected during replay.
func (e *Engine) Logs() []string {
	return e.logs
}

func (e *Engine) PutEvent(j *cta.Job) {}

// Trades returns every fill of the replay in chronological order.
func (e *Engine) Trades() []*core.Trade {
	return e.trades
}
