package registry

import (
	"os"
	"path/filepath"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/event"
	"github.com/ctafram/ctago/log"
	"github.com/ctafram/ctago/utils"
)

/*
Registry
Passive in-memory maps of live market and account state, keyed by stable
IDs. Writes come only from the bus dispatcher; readers get snapshots that
are eventually consistent with the event stream.

Only the contract map is persisted, so that strategies querying priceTick
before the first contract event still succeed after a restart.
*/
type Registry struct {
	lock      deadlock.RWMutex
	ticks     map[string]*core.Tick     // vtSymbol -> last tick
	contracts map[string]*core.Contract // vtSymbol -> contract
	orders    map[string]*core.Order    // vtOrderID -> order
	working   map[string]*core.Order    // vtOrderID -> working order
	trades    map[string]*core.Trade    // vtTradeID -> trade
	positions map[string]*core.Position // vtSymbol_dir -> position
	accounts  map[string]*core.Account  // vtAccountID -> account

	cachePath string
}

func New() *Registry {
	return &Registry{
		ticks:     make(map[string]*core.Tick),
		contracts: make(map[string]*core.Contract),
		orders:    make(map[string]*core.Order),
		working:   make(map[string]*core.Order),
		trades:    make(map[string]*core.Trade),
		positions: make(map[string]*core.Position),
		accounts:  make(map[string]*core.Account),
		cachePath: defaultCachePath(),
	}
}

func defaultCachePath() string {
	name := core.BotName
	if name == "" {
		name = "ctago"
	}
	return filepath.Join(os.TempDir(), name+"_contracts.json")
}

/*
BindBus registers the registry on all data event types. Must be called
before Bus.Start so registry handlers run ahead of strategy handlers.
*/
func (r *Registry) BindBus(bus *event.Bus) {
	bus.Register(event.TypeTick, func(ev *event.Event) {
		if tick, ok := ev.Data.(*core.Tick); ok {
			r.setTick(tick)
		}
	})
	bus.Register(event.TypeContract, func(ev *event.Event) {
		if c, ok := ev.Data.(*core.Contract); ok {
			r.SetContract(c)
		}
	})
	bus.Register(event.TypeOrder, func(ev *event.Event) {
		if od, ok := ev.Data.(*core.Order); ok {
			r.setOrder(od)
		}
	})
	bus.Register(event.TypeTrade, func(ev *event.Event) {
		if td, ok := ev.Data.(*core.Trade); ok {
			r.setTrade(td)
		}
	})
	bus.Register(event.TypePosition, func(ev *event.Event) {
		if pos, ok := ev.Data.(*core.Position); ok {
			r.setPosition(pos)
		}
	})
	bus.Register(event.TypeAccount, func(ev *event.Event) {
		if acc, ok := ev.Data.(*core.Account); ok {
			r.setAccount(acc)
		}
	})
}

func (r *Registry) setTick(tick *core.Tick) {
	r.lock.Lock()
	r.ticks[tick.VtSymbol] = tick
	r.lock.Unlock()
	if tick.LastPrice > 0 {
		core.SetPrice(tick.VtSymbol, tick.LastPrice)
	}
}

func (r *Registry) GetTick(vtSymbol string) *core.Tick {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.ticks[vtSymbol]
}

func (r *Registry) SetContract(c *core.Contract) {
	r.lock.Lock()
	r.contracts[c.VtSymbol] = c
	r.lock.Unlock()
}

func (r *Registry) GetContract(vtSymbol string) *core.Contract {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.contracts[vtSymbol]
}

func (r *Registry) AllContracts() []*core.Contract {
	r.lock.RLock()
	defer r.lock.RUnlock()
	res := make([]*core.Contract, 0, len(r.contracts))
	for _, c := range r.contracts {
		res = append(res, c)
	}
	return res
}

func (r *Registry) setOrder(od *core.Order) {
	r.lock.Lock()
	r.orders[od.VtOrderID] = od
	if core.StatusWorking(od.Status) {
		r.working[od.VtOrderID] = od
	} else {
		delete(r.working, od.VtOrderID)
	}
	r.lock.Unlock()
}

func (r *Registry) GetOrder(vtOrderID string) *core.Order {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.orders[vtOrderID]
}

func (r *Registry) WorkingOrders() []*core.Order {
	r.lock.RLock()
	defer r.lock.RUnlock()
	res := make([]*core.Order, 0, len(r.working))
	for _, od := range r.working {
		res = append(res, od)
	}
	return res
}

func (r *Registry) setTrade(td *core.Trade) {
	r.lock.Lock()
	r.trades[td.VtTradeID] = td
	r.lock.Unlock()
}

func (r *Registry) setPosition(pos *core.Position) {
	r.lock.Lock()
	r.positions[core.PosKey(pos.VtSymbol, pos.Direction)] = pos
	r.lock.Unlock()
}

func (r *Registry) GetPosition(vtSymbol, direction string) *core.Position {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.positions[core.PosKey(vtSymbol, direction)]
}

func (r *Registry) setAccount(acc *core.Account) {
	r.lock.Lock()
	r.accounts[acc.VtAccountID] = acc
	r.lock.Unlock()
}

func (r *Registry) GetAccount(vtAccountID string) *core.Account {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.accounts[vtAccountID]
}

// SetCachePath overrides the default temp-dir contract cache location.
func (r *Registry) SetCachePath(path string) {
	r.cachePath = path
}

/*
SaveContracts persists the contract map; called at shutdown.
*/
func (r *Registry) SaveContracts() *errs.Error {
	r.lock.RLock()
	snapshot := make(map[string]*core.Contract, len(r.contracts))
	for k, v := range r.contracts {
		snapshot[k] = v
	}
	r.lock.RUnlock()
	return utils.WriteJsonFile(r.cachePath, snapshot)
}

/*
LoadContracts restores the persisted contract map at startup. A missing
cache file is not an error on first run.
*/
func (r *Registry) LoadContracts() {
	if !utils.Exists(r.cachePath) {
		return
	}
	var snapshot map[string]*core.Contract
	if err := utils.ReadJsonFile(r.cachePath, &snapshot); err != nil {
		log.Warn("load contract cache fail", zap.String("path", r.cachePath),
			zap.String("err", err.Short()))
		return
	}
	r.lock.Lock()
	for k, v := range snapshot {
		if _, ok := r.contracts[k]; !ok {
			r.contracts[k] = v
		}
	}
	r.lock.Unlock()
	log.Info("contract cache loaded", zap.Int("num", len(snapshot)))
}
