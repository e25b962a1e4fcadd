package optimize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/ctafram/ctago/backtest"
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/cta"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/log"
	"github.com/ctafram/ctago/store"
	"github.com/ctafram/ctago/utils"
)

// StratFactory builds a fresh strategy instance for one parameter setting.
// A fresh instance per run keeps worker backtests independent.
type StratFactory func(params map[string]float64) *cta.Strategy

/*
TaskResult
Outcome of one setting: the score on the target metric, or the failure
text. Failed settings never abort a sweep.
*/
type TaskResult struct {
	Params map[string]float64 `json:"params"`
	Score  float64            `json:"score"`
	Err    string             `json:"err,omitempty"`
}

/*
Context
One optimization sweep: the search space, the scoring metric and the
backtest recipe. All state is explicit so concurrent sweeps never share
globals.
*/
type Context struct {
	Cfg     backtest.Config
	Store   store.BarStore
	Factory StratFactory
	Params  []*Param
	Metric  string // key into backtest Result.Metrics
	Rounds  int    // sampler budget; grid mode ignores it
	Workers int    // defaults to NumCPU
	// CacheDir enables on-disk memoization keyed by the setting hash, so an
	// interrupted sweep resumes without re-running finished settings.
	CacheDir string
	Seed     int64

	lock    sync.Mutex
	results []*TaskResult
}

func NewContext(cfg backtest.Config, st store.BarStore, factory StratFactory, metric string, params []*Param) *Context {
	return &Context{
		Cfg:     cfg,
		Store:   st,
		Factory: factory,
		Params:  params,
		Metric:  metric,
		Rounds:  60,
		Workers: runtime.NumCPU(),
	}
}

// Results returns every scored setting, best first.
func (c *Context) Results() []*TaskResult {
	c.lock.Lock()
	defer c.lock.Unlock()
	res := make([]*TaskResult, len(c.results))
	copy(res, c.results)
	sort.SliceStable(res, func(i, j int) bool {
		if (res[i].Err == "") != (res[j].Err == "") {
			return res[i].Err == ""
		}
		return res[i].Score > res[j].Score
	})
	return res
}

/*
Score
Run one backtest for a setting and return the target metric. Results are
memoized on disk when CacheDir is set; failures are recorded and scored
as negative infinity so samplers move away from them.
*/
func (c *Context) Score(params map[string]float64) (float64, *errs.Error) {
	if cached, ok := c.loadMemo(params); ok {
		c.record(cached)
		if cached.Err != "" {
			return cached.Score, errs.NewMsg(core.ErrRunTime, "%s", cached.Err)
		}
		return cached.Score, nil
	}
	tr := &TaskResult{Params: cloneParams(params)}
	res, err := c.runOne(params)
	if err != nil {
		tr.Err = err.Short()
		tr.Score = negInf
	} else {
		tr.Score = res.Metrics()[c.Metric]
	}
	c.saveMemo(tr)
	c.record(tr)
	if err != nil {
		log.Warn("backtest setting fail", zap.Any("params", params),
			zap.String("err", err.Short()))
		return tr.Score, err
	}
	return tr.Score, nil
}

const negInf = -1e30

func (c *Context) runOne(params map[string]float64) (res *backtest.Result, err *errs.Error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.NewMsg(core.ErrStrategyPanic, "setting panic: %v", r)
		}
	}()
	eng, err := backtest.NewEngine(c.Cfg, c.Store)
	if err != nil {
		return nil, err
	}
	eng.Progress = false
	return eng.Run(c.Factory(params))
}

func (c *Context) record(tr *TaskResult) {
	c.lock.Lock()
	c.results = append(c.results, tr)
	c.lock.Unlock()
}

func cloneParams(params map[string]float64) map[string]float64 {
	res := make(map[string]float64, len(params))
	for k, v := range params {
		res[k] = v
	}
	return res
}

/*
*****************************  memoization  *********************************
*/

func settingHash(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, params[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func (c *Context) memoPath(params map[string]float64) string {
	return filepath.Join(c.CacheDir, settingHash(params)+".json")
}

func (c *Context) loadMemo(params map[string]float64) (*TaskResult, bool) {
	if c.CacheDir == "" {
		return nil, false
	}
	path := c.memoPath(params)
	if !utils.Exists(path) {
		return nil, false
	}
	var tr TaskResult
	if err := utils.ReadJsonFile(path, &tr); err != nil {
		return nil, false
	}
	return &tr, true
}

func (c *Context) saveMemo(tr *TaskResult) {
	if c.CacheDir == "" {
		return
	}
	if err := utils.EnsureDir(c.CacheDir, 0o755); err != nil {
		log.Warn("create memo dir fail", zap.Error(err))
		return
	}
	if err := utils.WriteJsonFile(c.memoPath(tr.Params), tr); err != nil {
		log.Warn("save memo fail", zap.String("err", err.Short()))
	}
}

/*
*****************************  grid search  *********************************
*/

// expandGrid builds the Cartesian product of every dimension's grid.
func expandGrid(params []*Param) ([]map[string]float64, *errs.Error) {
	settings := []map[string]float64{{}}
	for _, p := range params {
		values := p.GridValues()
		if len(values) == 0 {
			return nil, errs.NewMsg(core.ErrBadConfig,
				"param %s has no enumerable values for grid search", p.Name)
		}
		next := make([]map[string]float64, 0, len(settings)*len(values))
		for _, base := range settings {
			for _, v := range values {
				setting := cloneParams(base)
				setting[p.Name] = v
				next = append(next, setting)
			}
		}
		settings = next
	}
	return settings, nil
}

/*
RunGrid
Score every setting of the Cartesian grid across a bounded worker pool,
one backtest per worker. Returns the results best first.
*/
func (c *Context) RunGrid() ([]*TaskResult, *errs.Error) {
	settings, err := expandGrid(c.Params)
	if err != nil {
		return nil, err
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pb := progressbar.Default(int64(len(settings)), "optimize")
	jobs := make(chan map[string]float64)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for setting := range jobs {
				_, _ = c.Score(setting)
				_ = pb.Add(1)
			}
		}()
	}
	for _, setting := range settings {
		jobs <- setting
	}
	close(jobs)
	wg.Wait()
	_ = pb.Close()
	return c.Results(), nil
}
