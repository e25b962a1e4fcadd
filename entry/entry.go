package entry

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ctafram/ctago/backtest"
	"github.com/ctafram/ctago/btime"
	"github.com/ctafram/ctago/config"
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/cta"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/event"
	"github.com/ctafram/ctago/log"
	"github.com/ctafram/ctago/optimize"
	"github.com/ctafram/ctago/registry"
	"github.com/ctafram/ctago/sim"
	"github.com/ctafram/ctago/store"
)

/*
CmdArgs
Flags shared by every subcommand.
*/
type CmdArgs struct {
	Config  string
	Logfile string
	Debug   bool
}

func setup(args *CmdArgs) (*config.Config, *errs.Error) {
	cfg, err := config.Load(args.Config)
	if err != nil {
		return nil, err
	}
	logfile := args.Logfile
	if logfile == "" {
		logfile = cfg.LogFile
	}
	log.Setup(args.Debug || cfg.Debug, logfile)
	if err := core.Setup(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(cfg *config.Config, write bool) (store.BarStore, *errs.Error) {
	if cfg.BarDb == "" {
		return nil, errs.NewMsg(core.ErrBadConfig, "bar_db not configured")
	}
	return store.NewSqliteStore(cfg.BarDb, write)
}

/*
RunLive
Start the live engine: event bus, registry, gateways and every configured
strategy. Blocks until SIGINT/SIGTERM, then drains the bus, closes the
gateways and persists the contract cache. Returns a process exit code.
*/
func RunLive(args *CmdArgs) int {
	cfg, err := setup(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Short())
		return core.ExitConfig
	}
	core.SetRunMode(core.RunModeLive)
	bus := event.NewBus(time.Second)
	reg := registry.New()
	reg.SetCachePath(filepath.Join(cfg.DataDir, "contracts.json"))
	reg.LoadContracts()
	reg.BindBus(bus)
	eng := cta.NewEngine(bus, reg, cfg.SyncDir)

	dispatcherDown := make(chan struct{}, 1)
	bus.OnPanic = func(ev *event.Event, reason interface{}) {
		log.Error("dispatcher panic", zap.String("type", string(ev.Type)),
			zap.String("reason", fmt.Sprintf("%v", reason)))
		select {
		case dispatcherDown <- struct{}{}:
		default:
		}
	}

	for _, name := range cfg.Gateways {
		gw, err := buildGateway(name, cfg, bus)
		if err != nil {
			log.Error("gateway setup fail", zap.String("name", name),
				zap.String("err", err.Short()))
			return core.ExitConfig
		}
		eng.AddGateway(gw)
	}
	strats, err := loadStrategies(cfg)
	if err != nil {
		log.Error("strategy config fail", zap.String("err", err.Short()))
		return core.ExitConfig
	}
	for _, st := range strats {
		if _, err := eng.AddStrategy(st); err != nil {
			log.Error("add strategy fail", zap.String("err", err.Short()))
			return core.ExitConfig
		}
	}

	bus.Start()
	if err := connectGateways(eng, cfg); err != nil {
		log.Error("gateway connect fail", zap.String("err", err.Short()))
		bus.Stop()
		return core.ExitConfig
	}
	for _, st := range strats {
		if err := eng.InitStrategy(st.Name); err != nil {
			log.Error("init strategy fail", zap.String("name", st.Name),
				zap.String("err", err.Short()))
			continue
		}
		if err := eng.StartStrategy(st.Name); err != nil {
			log.Error("start strategy fail", zap.String("name", st.Name),
				zap.String("err", err.Short()))
		}
	}
	log.Info("engine running", zap.String("name", cfg.Name),
		zap.Int("strategies", len(strats)))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	code := core.ExitOk
	select {
	case <-sigs:
		log.Info("shutdown signal received")
	case <-dispatcherDown:
		code = core.ExitDispatcher
	}
	core.StopAll()
	eng.Stop()
	bus.Stop()
	if err := reg.SaveContracts(); err != nil {
		log.Warn("save contracts fail", zap.String("err", err.Short()))
	}
	log.Sync()
	return code
}

// buildGateway resolves a configured gateway name. Concrete venue adapters
// plug in here; the in-process simulation venue ships with the engine.
func buildGateway(name string, cfg *config.Config, bus *event.Bus) (*sim.Gateway, *errs.Error) {
	if name != "sim" {
		return nil, errs.NewMsg(core.ErrBadConfig, "no adapter for gateway: %s", name)
	}
	st, err := openStore(cfg, false)
	if err != nil {
		return nil, err
	}
	gw, err := sim.New(name, bus, st, "1m", cfg.BackTest.Capital)
	if err != nil {
		return nil, err
	}
	for _, vtSymbol := range simSymbols(cfg) {
		symbol, _ := core.SplitVtSymbol(vtSymbol)
		gw.SetContract(&core.Contract{
			Symbol:       symbol,
			ProductClass: core.ProductFutures,
			PriceTick:    cfg.BackTest.PriceTick,
			Size:         cfg.BackTest.Size,
		})
	}
	return gw, nil
}

func simSymbols(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var res []string
	strats, err := loadStrategies(cfg)
	if err != nil {
		return nil
	}
	for _, st := range strats {
		for _, vtSymbol := range st.SymbolList {
			if !seen[vtSymbol] {
				seen[vtSymbol] = true
				res = append(res, vtSymbol)
			}
		}
	}
	return res
}

func connectGateways(eng *cta.Engine, cfg *config.Config) *errs.Error {
	for _, name := range cfg.Gateways {
		if name != "sim" {
			if _, err := config.LoadGatewayConn(cfg.DataDir, name); err != nil {
				return err
			}
		}
		gw := eng.Gateway(name)
		if gw == nil {
			return errs.NewMsg(core.ErrGatewayUnavailable, "gateway not registered: %s", name)
		}
		if err := gw.Connect(); err != nil {
			return err
		}
	}
	return nil
}

func loadStrategies(cfg *config.Config) ([]*cta.Strategy, *errs.Error) {
	if cfg.StratFile == "" {
		return nil, errs.NewMsg(core.ErrBadConfig, "strat_file not configured")
	}
	scs, err := config.LoadStrats(cfg.StratFile)
	if err != nil {
		return nil, err
	}
	res := make([]*cta.Strategy, 0, len(scs))
	for _, sc := range scs {
		st, err := cta.NewStrategyOf(sc.ClassName)
		if err != nil {
			return nil, err
		}
		st.Name = sc.Name
		st.SymbolList = sc.SymbolList
		st.Freqs = sc.Freqs
		st.MailAdd = sc.MailAdd
		st.Params = sc.Params
		res = append(res, st)
	}
	return res, nil
}

/*
RunBackTest
Replay the configured window against the first configured strategy and
print the summary and daily tables.
*/
func RunBackTest(args *CmdArgs) int {
	cfg, err := setup(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Short())
		return core.ExitConfig
	}
	core.SetRunMode(core.RunModeBackTest)
	btCfg, st, err := backtestSetup(cfg)
	if err != nil {
		log.Error("backtest config fail", zap.String("err", err.Short()))
		return core.ExitConfig
	}
	strats, err := loadStrategies(cfg)
	if err != nil || len(strats) == 0 {
		log.Error("no strategy configured")
		return core.ExitConfig
	}
	eng, err := backtest.NewEngine(*btCfg, st)
	if err != nil {
		log.Error("backtest setup fail", zap.String("err", err.Short()))
		return core.ExitConfig
	}
	res, err := eng.Run(strats[0])
	if err != nil {
		log.Error("backtest fail", zap.String("err", err.Short()))
		return core.ExitDispatcher
	}
	res.PrintSummary(os.Stdout)
	res.PrintDaily(os.Stdout)
	return core.ExitOk
}

func backtestSetup(cfg *config.Config) (*backtest.Config, store.BarStore, *errs.Error) {
	bt := cfg.BackTest
	startMS := btime.ParseTimeMS(bt.Start)
	endMS := btime.ParseTimeMS(bt.End)
	if startMS <= 0 || endMS <= startMS {
		return nil, nil, errs.NewMsg(core.ErrBadConfig, "bad backtest window: %s ~ %s",
			bt.Start, bt.End)
	}
	st, err := openStore(cfg, false)
	if err != nil {
		return nil, nil, err
	}
	return &backtest.Config{
		VtSymbol:    bt.Symbol,
		Freq:        bt.Freq,
		StartMS:     startMS,
		EndMS:       endMS,
		Capital:     bt.Capital,
		Size:        bt.Size,
		PriceTick:   bt.PriceTick,
		Rate:        bt.Rate,
		Slippage:    bt.Slippage,
		Inverse:     bt.Inverse,
		PatchCancel: bt.PatchCancel,
	}, st, nil
}

/*
RunOptimize
Sweep the configured parameter space over the backtest window in the
configured mode and print the ranked settings.
*/
func RunOptimize(args *CmdArgs) int {
	cfg, err := setup(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Short())
		return core.ExitConfig
	}
	core.SetRunMode(core.RunModeBackTest)
	btCfg, st, err := backtestSetup(cfg)
	if err != nil {
		log.Error("backtest config fail", zap.String("err", err.Short()))
		return core.ExitConfig
	}
	scs, err := config.LoadStrats(cfg.StratFile)
	if err != nil || len(scs) == 0 {
		log.Error("no strategy configured")
		return core.ExitConfig
	}
	base := scs[0]
	params := make([]*optimize.Param, 0, len(cfg.Optimize.Params))
	for _, p := range cfg.Optimize.Params {
		params = append(params, &optimize.Param{
			Name: p.Name, Min: p.Min, Max: p.Max, Values: p.Values, IsInt: p.IsInt,
		})
	}
	factory := func(setting map[string]float64) *cta.Strategy {
		strat, err := cta.NewStrategyOf(base.ClassName)
		if err != nil {
			return &cta.Strategy{Name: base.Name}
		}
		strat.Name = base.Name
		strat.SymbolList = base.SymbolList
		merged := make(map[string]interface{}, len(base.Params)+len(setting))
		for k, v := range base.Params {
			merged[k] = v
		}
		for k, v := range setting {
			merged[k] = v
		}
		strat.Params = merged
		return strat
	}
	ctx := optimize.NewContext(*btCfg, st, factory, cfg.Optimize.Metric, params)
	ctx.Rounds = cfg.Optimize.Rounds
	ctx.Workers = cfg.Optimize.Workers
	ctx.CacheDir = cfg.Optimize.CacheDir

	var results []*optimize.TaskResult
	var optErr *errs.Error
	switch cfg.Optimize.Mode {
	case "grid":
		results, optErr = ctx.RunGrid()
	case "genetic":
		results, optErr = optimize.DefaultGenetic().Run(ctx)
	default:
		best, score, err := ctx.RunSampler(cfg.Optimize.Mode)
		if err == nil {
			log.Info("best setting", zap.Any("params", best), zap.Float64("score", score))
		}
		results, optErr = ctx.Results(), err
	}
	if optErr != nil {
		log.Error("optimize fail", zap.String("err", optErr.Short()))
		return core.ExitDispatcher
	}
	optimize.PrintTop(os.Stdout, results, 20)
	return core.ExitOk
}
