package cta

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/data"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/utils"
)

/*
Strategy
User strategy template: a record of parameters and optional hooks. Missing
hooks are nil and simply skipped. The same record drives live trading and
backtesting; the engine behind the Job handle is the only difference.

OnBar receives the base 1-minute bar. Coarser frequencies registered in
Freqs are delivered through FreqBars["5m"] etc.; sub-minute frequencies
through OnHFBar. Frequencies completing on the same tick fire from the
longest period to the shortest.
*/
type Strategy struct {
	Name       string
	ClassName  string
	SymbolList []string
	Freqs      []string // bar frequencies beyond 1m to aggregate
	MailAdd    string

	// Params carries raw user parameters from the strategy config; use
	// DecodeParams inside OnInit to bind them to a typed struct.
	Params map[string]interface{}
	// SyncList names the Vars keys persisted for RestoreStrategy.
	SyncList []string

	OnInit    func(j *Job)
	OnStart   func(j *Job)
	OnStop    func(j *Job)
	OnRestore func(j *Job)

	OnTick      func(j *Job, tick *core.Tick)
	OnBar       func(j *Job, bar *core.Bar)
	OnHFBar     func(j *Job, bar *core.Bar)
	FreqBars    map[string]func(j *Job, bar *core.Bar)
	OnOrder     func(j *Job, od *core.Order)
	OnTrade     func(j *Job, td *core.Trade)
	OnStopOrder func(j *Job, so *core.StopOrder)
}

/*
DecodeParams
Bind raw user parameters onto a typed struct, weakly typed so JSON numbers
fill int fields.
*/
func DecodeParams(raw map[string]interface{}, target interface{}) *errs.Error {
	dec, err_ := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err_ != nil {
		return errs.New(core.ErrRunTime, err_)
	}
	if err_ = dec.Decode(raw); err_ != nil {
		return errs.New(core.ErrBadConfig, err_)
	}
	return nil
}

/*
EngineAPI
The opaque handle a Job uses to reach its engine. Both the live CTA engine
and the backtest engine implement it, so strategy code is identical in
both modes.
*/
type EngineAPI interface {
	SendOrder(j *Job, orderType, vtSymbol string, price, volume float64, priceType string) ([]string, *errs.Error)
	SendStopOrder(j *Job, orderType, vtSymbol string, price, volume float64) (string, *errs.Error)
	CancelOrder(j *Job, id string) *errs.Error
	CancelAll(j *Job) *errs.Error
	GetArrayManager(vtSymbol, freq string) *data.ArrayManager
	LoadHistoryBars(vtSymbol, freq string, size int) ([]*core.Bar, *errs.Error)
	GetContract(vtSymbol string) *core.Contract
	WriteCtaLog(j *Job, content string)
	PutEvent(j *Job)
}

/*
Job
Runtime state of one strategy instance, owned by its engine for the whole
strategy lifetime. Pos/Evening/YdPos are keyed symbol+"_"+direction and are
mutated only from dispatcher context; strategies read them without locks.
*/
type Job struct {
	Strat *Strategy
	eng   EngineAPI

	Inited  bool
	Trading bool

	Pos     map[string]float64 // position per symbol_dir
	Evening map[string]float64 // closable (position minus pending-close freeze)
	YdPos   map[string]float64 // yesterday position cache, close-today venues
	Vars    map[string]interface{}

	workingOrders map[string]bool // vtOrderID set
	workingStops  map[string]bool // stopOrderID set
}

func NewJob(strat *Strategy, eng EngineAPI) *Job {
	return &Job{
		Strat:         strat,
		eng:           eng,
		Pos:           make(map[string]float64),
		Evening:       make(map[string]float64),
		YdPos:         make(map[string]float64),
		Vars:          make(map[string]interface{}),
		workingOrders: make(map[string]bool),
		workingStops:  make(map[string]bool),
	}
}

func (j *Job) Name() string {
	return j.Strat.Name
}

// GetPos returns the signed net position: long minus short.
func (j *Job) GetPos(symbol string) float64 {
	return j.Pos[core.PosKey(symbol, core.DirectionLong)] -
		j.Pos[core.PosKey(symbol, core.DirectionShort)]
}

func (j *Job) send(orderType, vtSymbol string, price, volume float64, priceType string, stop bool) ([]string, *errs.Error) {
	if !j.Trading {
		return nil, errs.NewMsg(core.ErrInvalidOrder, "strategy %s not trading", j.Name())
	}
	if stop {
		id, err := j.eng.SendStopOrder(j, orderType, vtSymbol, price, volume)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}
	return j.eng.SendOrder(j, orderType, vtSymbol, price, volume, priceType)
}

// Buy opens a long position.
func (j *Job) Buy(vtSymbol string, price, volume float64, priceType string, stop bool) ([]string, *errs.Error) {
	return j.send(core.OrderBuy, vtSymbol, price, volume, priceType, stop)
}

// Sell closes a long position.
func (j *Job) Sell(vtSymbol string, price, volume float64, priceType string, stop bool) ([]string, *errs.Error) {
	return j.send(core.OrderSell, vtSymbol, price, volume, priceType, stop)
}

// Short opens a short position.
func (j *Job) Short(vtSymbol string, price, volume float64, priceType string, stop bool) ([]string, *errs.Error) {
	return j.send(core.OrderShort, vtSymbol, price, volume, priceType, stop)
}

// Cover closes a short position.
func (j *Job) Cover(vtSymbol string, price, volume float64, priceType string, stop bool) ([]string, *errs.Error) {
	return j.send(core.OrderCover, vtSymbol, price, volume, priceType, stop)
}

// CancelOrder cancels a regular or stop order by its id.
func (j *Job) CancelOrder(id string) *errs.Error {
	return j.eng.CancelOrder(j, id)
}

// CancelAll cancels every working order and stop order of this strategy.
func (j *Job) CancelAll() *errs.Error {
	return j.eng.CancelAll(j)
}

func (j *Job) GetArrayManager(vtSymbol, freq string) *data.ArrayManager {
	return j.eng.GetArrayManager(vtSymbol, freq)
}

func (j *Job) LoadHistoryBars(vtSymbol, freq string, size int) ([]*core.Bar, *errs.Error) {
	return j.eng.LoadHistoryBars(vtSymbol, freq, size)
}

func (j *Job) GetContract(vtSymbol string) *core.Contract {
	return j.eng.GetContract(vtSymbol)
}

// RoundPrice rounds a price to the contract's priceTick, when known.
func (j *Job) RoundPrice(vtSymbol string, price float64) float64 {
	if c := j.eng.GetContract(vtSymbol); c != nil {
		return utils.RoundToTick(price, c.PriceTick)
	}
	return price
}

func (j *Job) WriteCtaLog(content string) {
	j.eng.WriteCtaLog(j, content)
}

// PutEvent pushes the strategy's state snapshot to UI subscribers.
func (j *Job) PutEvent() {
	j.eng.PutEvent(j)
}

// TrackOrder and its counterparts maintain the working sets; only engines
// call them.
func (j *Job) TrackOrder(id string)   { j.workingOrders[id] = true }
func (j *Job) UntrackOrder(id string) { delete(j.workingOrders, id) }
func (j *Job) TrackStop(id string)    { j.workingStops[id] = true }
func (j *Job) UntrackStop(id string)  { delete(j.workingStops, id) }

func (j *Job) WorkingOrderIDs() []string {
	res := make([]string, 0, len(j.workingOrders))
	for id := range j.workingOrders {
		res = append(res, id)
	}
	return res
}

func (j *Job) WorkingStopIDs() []string {
	res := make([]string, 0, len(j.workingStops))
	for id := range j.workingStops {
		res = append(res, id)
	}
	return res
}
