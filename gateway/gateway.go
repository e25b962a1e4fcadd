package gateway

import (
	"github.com/ctafram/ctago/btime"
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/event"
)

type OrderReq struct {
	Symbol        string
	Exchange      string
	VtSymbol      string
	Direction     string
	Offset        string
	PriceType     string
	Price         float64
	Volume        float64
	ClientOrderID string
	ByStrategy    string
}

type CancelReq struct {
	Symbol        string
	Exchange      string
	VtOrderID     string
	ClientOrderID string
}

/*
Gateway
Abstract venue adapter. Concrete adapters normalize venue order statuses
into the core.Status* set and attach the ClientOrderID on every order event
so the CTA engine can correlate replies.

LoadHistoryBars returns finite, time-ascending bars with per-bar volume;
it may return fewer bars than requested. InitPosition requests a seed
position snapshot whose reply arrives as a normal position event.
*/
type Gateway interface {
	Name() string
	Connect() *errs.Error
	Subscribe(symbol string) *errs.Error
	SendOrder(req *OrderReq) (string, *errs.Error)
	CancelOrder(req *CancelReq) *errs.Error
	BatchCancelOrder(reqs []*CancelReq) *errs.Error
	LoadHistoryBars(symbol, freq string, size int, sinceMS int64) ([]*core.Bar, *errs.Error)
	InitPosition(symbol string) *errs.Error
	Close() *errs.Error
}

/*
Base
Embeddable helper carrying the gateway name and the event bus, with typed
emit methods. Adapters push everything through these so ordering per
gateway is the bus queue order.
*/
type Base struct {
	GatewayName string
	Bus         *event.Bus
}

func NewBase(name string, bus *event.Bus) Base {
	return Base{GatewayName: name, Bus: bus}
}

func (g *Base) Name() string {
	return g.GatewayName
}

func (g *Base) OnTick(tick *core.Tick) {
	tick.Gateway = g.GatewayName
	if tick.VtSymbol == "" {
		tick.VtSymbol = core.VtSymbol(tick.Symbol, g.GatewayName)
	}
	if tick.LocalMS == 0 {
		tick.LocalMS = btime.UTCStamp()
	}
	g.Bus.Put(&event.Event{Type: event.TypeTick, Data: tick})
}

func (g *Base) OnContract(c *core.Contract) {
	c.Gateway = g.GatewayName
	if c.VtSymbol == "" {
		c.VtSymbol = core.VtSymbol(c.Symbol, g.GatewayName)
	}
	g.Bus.Put(&event.Event{Type: event.TypeContract, Data: c})
}

func (g *Base) OnOrder(od *core.Order) {
	od.Gateway = g.GatewayName
	if od.VtSymbol == "" {
		od.VtSymbol = core.VtSymbol(od.Symbol, g.GatewayName)
	}
	g.Bus.Put(&event.Event{Type: event.TypeOrder, Data: od})
}

func (g *Base) OnTrade(td *core.Trade) {
	td.Gateway = g.GatewayName
	if td.VtSymbol == "" {
		td.VtSymbol = core.VtSymbol(td.Symbol, g.GatewayName)
	}
	g.Bus.Put(&event.Event{Type: event.TypeTrade, Data: td})
}

func (g *Base) OnPosition(pos *core.Position) {
	g.Bus.Put(&event.Event{Type: event.TypePosition, Data: pos})
}

func (g *Base) OnAccount(acc *core.Account) {
	if acc.VtAccountID == "" {
		acc.VtAccountID = g.GatewayName + core.SymbolSep + acc.AccountID
	}
	acc.Gateway = g.GatewayName
	g.Bus.Put(&event.Event{Type: event.TypeAccount, Data: acc})
}

// OnError surfaces gateway failures (timeouts, 5xx) as error events rather
// than panics; the engine keeps running.
func (g *Base) OnError(err *errs.Error) {
	g.Bus.Put(&event.Event{Type: event.TypeError, Data: err})
}

func (g *Base) OnLog(level, content string) {
	g.Bus.Put(&event.Event{Type: event.TypeLog, Data: &core.LogRecord{
		TimeMS:  btime.TimeMS(),
		Level:   level,
		Gateway: g.GatewayName,
		Content: content,
	}})
}
