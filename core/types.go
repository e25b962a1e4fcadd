package core

import "strings"

const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

const (
	OffsetOpen           = "open"
	OffsetClose          = "close"
	OffsetCloseToday     = "closeToday"
	OffsetCloseYesterday = "closeYesterday"
	OffsetNone           = "none"
)

const (
	PriceTypeLimit  = "limit"
	PriceTypeMarket = "market"
	PriceTypeFAK    = "FAK"
	PriceTypeFOK    = "FOK"
)

// Order status automaton:
// submitted -> notTraded -> partTraded -> allTraded
// submitted -> rejected
// {notTraded, partTraded} -> cancelling -> cancelled
const (
	StatusSubmitted  = "submitted"
	StatusNotTraded  = "notTraded"
	StatusPartTraded = "partTraded"
	StatusAllTraded  = "allTraded"
	StatusCancelling = "cancelling"
	StatusCancelled  = "cancelled"
	StatusRejected   = "rejected"
	StatusUnknown    = "unknown"
)

// statusRank orders statuses along the automaton; transitions must not
// decrease. Unknown ranks lowest as it only appears on venue-silent recovery.
var statusRank = map[string]int{
	StatusUnknown:    0,
	StatusSubmitted:  1,
	StatusNotTraded:  2,
	StatusPartTraded: 3,
	StatusCancelling: 4,
	StatusAllTraded:  5,
	StatusCancelled:  5,
	StatusRejected:   5,
}

func StatusFinished(status string) bool {
	switch status {
	case StatusAllTraded, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// StatusWorking reports whether the venue still considers the order live.
// Cancelling orders count as working for strategy introspection.
func StatusWorking(status string) bool {
	switch status {
	case StatusSubmitted, StatusNotTraded, StatusPartTraded, StatusCancelling:
		return true
	}
	return false
}

// StatusAdvances reports whether moving from old to cur is legal on the
// automaton, i.e. the rank never decreases.
func StatusAdvances(old, cur string) bool {
	return statusRank[cur] >= statusRank[old]
}

const (
	ProductFutures = "futures"
	ProductSpot    = "spot"
	ProductOption  = "option"
	ProductIndex   = "index"
)

// ExchangesCloseToday lists SHFE-classed venues which distinguish
// close-today from close-yesterday on the close leg.
var ExchangesCloseToday = map[string]bool{
	"SHFE": true,
	"INE":  true,
}

const (
	StopOrderPrefix = "STOP"

	StopWaiting   = "waiting"
	StopTriggered = "triggered"
	StopCancelled = "cancelled"
)

// Order types issued by strategies, resolved to direction+offset at send.
const (
	OrderBuy   = "buy"   // open long
	OrderSell  = "sell"  // close long
	OrderShort = "short" // open short
	OrderCover = "cover" // close short
)

func VtSymbol(symbol, gateway string) string {
	return symbol + SymbolSep + gateway
}

// SplitVtSymbol returns the venue symbol and the gateway name.
// The gateway part is everything after the last separator, as venue symbols
// may themselves contain punctuation.
func SplitVtSymbol(vtSymbol string) (string, string) {
	idx := strings.LastIndex(vtSymbol, SymbolSep)
	if idx < 0 {
		return vtSymbol, ""
	}
	return vtSymbol[:idx], vtSymbol[idx+len(SymbolSep):]
}

func PosKey(symbol, direction string) string {
	return symbol + "_" + direction
}

func OppositeDir(direction string) string {
	if direction == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

type PriceVol struct {
	Price  float64
	Volume float64
}

/*
Tick
A single market data update from a gateway. VolumeChange indicates whether
LastVolume carries an incremental trade size to add to bar volume; when false
the tick is a quote-only update. Volume is the cumulative session volume and
must never be differenced across ticks (it may reset between sessions).
*/
type Tick struct {
	Symbol       string
	Exchange     string
	Gateway      string
	VtSymbol     string
	TimeMS       int64 // venue timestamp, 13-digit ms
	LocalMS      int64 // local receive timestamp
	LastPrice    float64
	LastVolume   float64
	VolumeChange bool
	Volume       float64
	OpenInterest float64
	UpperLimit   float64
	LowerLimit   float64
	Bids         [5]PriceVol
	Asks         [5]PriceVol
}

/*
Bar
OHLCV aggregate over one period. TimeMS is aligned to the start of the
period; bars of one frequency form a strictly increasing sequence.
*/
type Bar struct {
	Symbol       string
	Exchange     string
	VtSymbol     string
	TimeMS       int64
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	OpenInterest float64
}

func (b *Bar) Clone() *Bar {
	res := *b
	return &res
}

type Contract struct {
	Symbol       string
	Exchange     string
	Gateway      string
	VtSymbol     string
	ProductClass string
	PriceTick    float64
	Size         float64 // contract multiplier
	MinVolume    float64
}

type Order struct {
	VtOrderID     string // gateway + sep + orderID
	ClientOrderID string
	VenueOrderID  string
	Symbol        string
	Exchange      string
	Gateway       string
	VtSymbol      string
	Direction     string
	Offset        string
	PriceType     string
	Price         float64
	PriceAvg      float64
	TotalVolume   float64
	TradedVolume  float64
	ThisTraded    float64 // volume filled by the event carrying this snapshot
	Status        string
	CreateMS      int64
	RejectedInfo  string
	ByStrategy    string
}

func (o *Order) UnTraded() float64 {
	return o.TotalVolume - o.TradedVolume
}

type Trade struct {
	VtTradeID string
	VtOrderID string
	Symbol    string
	Exchange  string
	Gateway   string
	VtSymbol  string
	Direction string
	Offset    string
	Price     float64
	Volume    float64
	TimeMS    int64
}

type Position struct {
	VtSymbol  string
	Symbol    string
	Direction string
	Position  float64
	Frozen    float64
	Price     float64 // average cost
	YdQty     float64 // yesterday position, for close-today venues
}

func (p *Position) Available() float64 {
	return p.Position - p.Frozen
}

type Account struct {
	Gateway        string
	AccountID      string
	VtAccountID    string
	Balance        float64
	Available      float64
	Margin         float64
	PositionProfit float64
	CloseProfit    float64
}

type StopOrder struct {
	StopOrderID string
	VtSymbol    string
	Direction   string
	Offset      string
	Price       float64 // trigger price
	Volume      float64
	PriceType   string
	Status      string
	ByStrategy  string
	OrderType   string // the buy/sell/short/cover that created it
}

type LogRecord struct {
	TimeMS  int64
	Level   string
	Gateway string
	Content string
}
