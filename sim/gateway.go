package sim

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/ctafram/ctago/btime"
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/event"
	"github.com/ctafram/ctago/gateway"
	"github.com/ctafram/ctago/log"
	"github.com/ctafram/ctago/store"
	"github.com/ctafram/ctago/utils"
)

const defaultPoll = time.Second

/*
Gateway
In-process venue replaying a bar store in wall-clock time. Orders go into
a local book; on every poll the bars since the last cursor cross the book
with the standard bar-fill rules, and the resulting order, trade, position
and account events flow back through the bus exactly like a production
gateway.
*/
type Gateway struct {
	gateway.Base
	store  store.BarStore
	freq   string
	freqMS int64
	node   *snowflake.Node

	contracts map[string]*core.Contract // symbol
	capital   float64

	lock      deadlock.Mutex
	symbols   map[string]bool
	cursor    map[string]int64 // symbol -> next poll start
	orders    map[string]*core.Order
	positions map[string]*core.Position // symbol_dir
	balance   float64
	closePnl  float64

	poll   time.Duration
	done   chan struct{}
	closed bool
}

func New(name string, bus *event.Bus, st store.BarStore, freq string, capital float64) (*Gateway, *errs.Error) {
	norm, err := utils.NormFreq(freq)
	if err != nil {
		return nil, err
	}
	node, err_ := snowflake.NewNode(1)
	if err_ != nil {
		return nil, errs.New(core.ErrRunTime, err_)
	}
	return &Gateway{
		Base:      gateway.NewBase(name, bus),
		store:     st,
		freq:      norm,
		freqMS:    utils.FreqToMSecs(norm),
		node:      node,
		contracts: make(map[string]*core.Contract),
		capital:   capital,
		symbols:   make(map[string]bool),
		cursor:    make(map[string]int64),
		orders:    make(map[string]*core.Order),
		positions: make(map[string]*core.Position),
		balance:   capital,
		poll:      defaultPoll,
		done:      make(chan struct{}),
	}, nil
}

// SetContract registers the simulated instrument before Connect.
func (g *Gateway) SetContract(c *core.Contract) {
	g.contracts[c.Symbol] = c
}

func (g *Gateway) Connect() *errs.Error {
	for _, c := range g.contracts {
		g.OnContract(c)
	}
	g.emitAccount()
	go g.pollLoop()
	log.Info("sim gateway connected", zap.String("name", g.Name()))
	return nil
}

func (g *Gateway) Subscribe(symbol string) *errs.Error {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.symbols[symbol] {
		return nil
	}
	g.symbols[symbol] = true
	start, end, ok, err := g.store.Range(symbol, g.freq)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NewMsg(core.ErrInvalidSymbol, "no stored bars for %s %s", symbol, g.freq)
	}
	_ = end
	g.cursor[symbol] = start
	return nil
}

func (g *Gateway) pollLoop() {
	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()
	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.step()
		}
	}
}

// step advances every subscribed symbol by one bar per poll tick, keeping
// replay at wall-clock pace regardless of the stored frequency.
func (g *Gateway) step() {
	g.lock.Lock()
	defer g.lock.Unlock()
	for symbol := range g.symbols {
		since := g.cursor[symbol]
		bars, err := g.store.LoadBars(symbol, g.freq, since, since+g.freqMS)
		if err != nil {
			g.OnError(err)
			continue
		}
		g.cursor[symbol] = since + g.freqMS
		for _, bar := range bars {
			g.crossBook(symbol, bar)
			g.emitTick(symbol, bar)
		}
	}
}

func (g *Gateway) emitTick(symbol string, bar *core.Bar) {
	g.OnTick(&core.Tick{
		Symbol:       symbol,
		Exchange:     g.exchange(symbol),
		TimeMS:       bar.TimeMS + g.freqMS,
		LastPrice:    bar.Close,
		LastVolume:   bar.Volume,
		VolumeChange: bar.Volume > 0,
		Volume:       bar.Volume,
		OpenInterest: bar.OpenInterest,
	})
}

func (g *Gateway) exchange(symbol string) string {
	if c, ok := g.contracts[symbol]; ok {
		return c.Exchange
	}
	return ""
}

func (g *Gateway) size(symbol string) float64 {
	if c, ok := g.contracts[symbol]; ok && c.Size > 0 {
		return c.Size
	}
	return 1
}

/*
crossBook
Match working orders against a fresh bar: a long limit fills when the low
trades through the price, at the better of order price and bar open; a
short limit mirrors on the high. Market orders fill at the open.
*/
func (g *Gateway) crossBook(symbol string, bar *core.Bar) {
	for id, od := range g.orders {
		if od.Symbol != symbol {
			continue
		}
		var fill float64
		switch {
		case od.PriceType == core.PriceTypeMarket:
			fill = bar.Open
		case od.Direction == core.DirectionLong && bar.Low < od.Price && od.Price > 0:
			fill = min(od.Price, bar.Open)
		case od.Direction == core.DirectionShort && bar.High > od.Price && od.Price > 0:
			fill = max(od.Price, bar.Open)
		default:
			continue
		}
		delete(g.orders, id)
		g.fillOrder(od, fill, bar.TimeMS)
	}
}

func (g *Gateway) fillOrder(od *core.Order, price float64, timeMS int64) {
	od.Status = core.StatusAllTraded
	od.TradedVolume = od.TotalVolume
	od.ThisTraded = od.TotalVolume
	od.PriceAvg = price
	snap := *od
	g.OnOrder(&snap)
	g.applyFill(od, price)
	g.OnTrade(&core.Trade{
		VtTradeID: g.Name() + core.SymbolSep + g.node.Generate().String(),
		VtOrderID: od.VtOrderID,
		Symbol:    od.Symbol,
		Exchange:  od.Exchange,
		Direction: od.Direction,
		Offset:    od.Offset,
		Price:     price,
		Volume:    od.TotalVolume,
		TimeMS:    timeMS,
	})
	g.emitAccount()
}

func (g *Gateway) applyFill(od *core.Order, price float64) {
	size := g.size(od.Symbol)
	if od.Offset == core.OffsetOpen {
		pos := g.position(od.Symbol, od.Direction)
		total := pos.Position + od.TotalVolume
		pos.Price = (pos.Price*pos.Position + price*od.TotalVolume) / total
		pos.Position = total
		g.OnPosition(g.posSnap(pos))
		return
	}
	dir := core.OppositeDir(od.Direction)
	pos := g.position(od.Symbol, dir)
	vol := min(od.TotalVolume, pos.Position)
	sign := 1.0
	if dir == core.DirectionShort {
		sign = -1.0
	}
	pnl := (price - pos.Price) * vol * size * sign
	g.closePnl += pnl
	g.balance += pnl
	pos.Position -= vol
	if pos.Position <= 0 {
		pos.Position = 0
		pos.Price = 0
	}
	pos.YdQty = min(pos.YdQty, pos.Position)
	g.OnPosition(g.posSnap(pos))
}

func (g *Gateway) position(symbol, direction string) *core.Position {
	key := core.PosKey(symbol, direction)
	pos, ok := g.positions[key]
	if !ok {
		pos = &core.Position{Symbol: symbol, Direction: direction}
		g.positions[key] = pos
	}
	return pos
}

func (g *Gateway) posSnap(pos *core.Position) *core.Position {
	snap := *pos
	snap.VtSymbol = core.VtSymbol(pos.Symbol, g.Name())
	return &snap
}

func (g *Gateway) emitAccount() {
	g.OnAccount(&core.Account{
		AccountID:   "sim",
		Balance:     g.balance,
		Available:   g.balance,
		CloseProfit: g.closePnl,
	})
}

func (g *Gateway) SendOrder(req *gateway.OrderReq) (string, *errs.Error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.closed {
		return "", errs.NewMsg(core.ErrGatewayUnavailable, "sim gateway closed")
	}
	if req.Volume <= 0 {
		return "", errs.NewMsg(core.ErrInvalidOrder, "volume must be positive")
	}
	id := g.Name() + core.SymbolSep + g.node.Generate().String()
	od := &core.Order{
		VtOrderID:     id,
		ClientOrderID: req.ClientOrderID,
		VenueOrderID:  id,
		Symbol:        req.Symbol,
		Exchange:      req.Exchange,
		Direction:     req.Direction,
		Offset:        req.Offset,
		PriceType:     req.PriceType,
		Price:         req.Price,
		TotalVolume:   req.Volume,
		Status:        core.StatusNotTraded,
		CreateMS:      btime.TimeMS(),
		ByStrategy:    req.ByStrategy,
	}
	g.orders[id] = od
	snap := *od
	g.OnOrder(&snap)
	return id, nil
}

func (g *Gateway) CancelOrder(req *gateway.CancelReq) *errs.Error {
	g.lock.Lock()
	defer g.lock.Unlock()
	od, ok := g.orders[req.VtOrderID]
	if !ok {
		return errs.NewMsg(core.ErrInvalidOrder, "unknown order: %s", req.VtOrderID)
	}
	delete(g.orders, req.VtOrderID)
	od.Status = core.StatusCancelled
	snap := *od
	g.OnOrder(&snap)
	return nil
}

func (g *Gateway) BatchCancelOrder(reqs []*gateway.CancelReq) *errs.Error {
	var lastErr *errs.Error
	for _, req := range reqs {
		if err := g.CancelOrder(req); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (g *Gateway) LoadHistoryBars(symbol, freq string, size int, sinceMS int64) ([]*core.Bar, *errs.Error) {
	norm, err := utils.NormFreq(freq)
	if err != nil {
		return nil, err
	}
	ms := utils.FreqToMSecs(norm)
	g.lock.Lock()
	end := g.cursor[symbol]
	g.lock.Unlock()
	start := sinceMS
	if start <= 0 {
		start = end - int64(size)*ms
	}
	bars, err := g.store.LoadBars(symbol, norm, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) > size {
		bars = bars[len(bars)-size:]
	}
	return bars, nil
}

func (g *Gateway) InitPosition(symbol string) *errs.Error {
	g.lock.Lock()
	defer g.lock.Unlock()
	for _, dir := range []string{core.DirectionLong, core.DirectionShort} {
		if pos, ok := g.positions[core.PosKey(symbol, dir)]; ok {
			g.OnPosition(g.posSnap(pos))
		}
	}
	return nil
}

func (g *Gateway) Close() *errs.Error {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	close(g.done)
	return nil
}
