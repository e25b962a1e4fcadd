package data

import (
	"fmt"
	"slices"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/ctafram/ctago/btime"
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/gateway"
	"github.com/ctafram/ctago/log"
	"github.com/ctafram/ctago/utils"
)

const maxHistFetchFails = 3

/*
FreqState
Per-frequency state inside a SymbolBarManager: the sliding window of
completed bars, the generator producing new ones, and the staging area for
concatenating gateway history with locally generated bars.
*/
type FreqState struct {
	Freq string
	Secs int
	MS   int64
	Am   *ArrayManager
	cb   FnBar

	tickGen *TickGenerator   // high frequency (<1m), driven from ticks
	rollGen *RollupGenerator // >1m, rolls up from 1m bars; nil for 1m itself

	genBars  []*core.Bar // completed local bars stashed until concatenation
	genSince int64       // time of the first locally completed bar
	hist     []*core.Bar
	freshHist  bool // hist came from a fetch not yet judged against genBars
	ready      bool
	histClosed bool // history given up, serving generated-only

	fetching bool
	fetchedLock deadlock.Mutex
	fetched     []*core.Bar
	fetchErr    *errs.Error
	hasFetched  bool
}

func (st *FreqState) Ready() bool {
	return st.ready
}

/*
SymbolBarManager
Owns every registered (frequency -> window) for one symbol. Ticks fold into
a 1-minute generator whose finished bars drive all low-frequency rollups;
sub-minute frequencies are driven from ticks directly.

When several frequencies complete on the same tick, callbacks fire from the
longest period to the shortest, so a strategy observing the 15m bar has
already observed the matching 5m bar.

All state is owned by the dispatcher goroutine; only the async history
fetch hands its result over through a small locked slot, applied at the
next bar boundary so the dispatcher never blocks on gateway I/O.
*/
type SymbolBarManager struct {
	VtSymbol string
	Symbol   string
	Exchange string

	size   int
	gw     gateway.Gateway
	minGen *TickGenerator
	states map[string]*FreqState
	lows   []*FreqState // sorted by secs descending, 1m last
	highs  []*FreqState // sorted by secs descending
	retry  *btime.RetryWaits
	// rollup options applied to newly registered frequencies
	AlignPolicy  string
	WatershedMin int
}

func NewSymbolBarManager(vtSymbol string, size int, gw gateway.Gateway) *SymbolBarManager {
	symbol, _ := core.SplitVtSymbol(vtSymbol)
	m := &SymbolBarManager{
		VtSymbol:    vtSymbol,
		Symbol:      symbol,
		size:        size,
		gw:          gw,
		states:      make(map[string]*FreqState),
		retry:       btime.NewRetryWaits(0, nil),
		AlignPolicy: AlignSharp,
	}
	m.minGen, _ = NewTickGenerator("1m", m.on1mBar)
	return m
}

/*
Register
Normalize the frequency and record the callback. Frequencies below one
minute are "high" and update from ticks; one minute and above roll up from
the 1m stream.
*/
func (m *SymbolBarManager) Register(freq string, cb FnBar) *errs.Error {
	norm, err := utils.NormFreq(freq)
	if err != nil {
		return err
	}
	if st, ok := m.states[norm]; ok {
		st.cb = cb
		return nil
	}
	secs, _ := utils.FreqToSecs(norm)
	st := &FreqState{
		Freq: norm,
		Secs: secs,
		MS:   int64(secs) * 1000,
		Am:   NewArrayManager(m.size),
		cb:   cb,
	}
	if secs < core.SecsMin {
		st.tickGen, err = NewTickGenerator(norm, func(bar *core.Bar) {
			m.onGenBar(st, bar)
		})
		if err != nil {
			return err
		}
	} else if secs > core.SecsMin {
		st.rollGen, err = NewRollupGenerator(norm, "1m", m.AlignPolicy, m.WatershedMin, func(bar *core.Bar) {
			m.onGenBar(st, bar)
		})
		if err != nil {
			return err
		}
	}
	m.states[norm] = st
	m.rebuildOrders()
	return nil
}

func (m *SymbolBarManager) rebuildOrders() {
	m.lows = m.lows[:0]
	m.highs = m.highs[:0]
	for _, st := range m.states {
		if st.Secs < core.SecsMin {
			m.highs = append(m.highs, st)
		} else {
			m.lows = append(m.lows, st)
		}
	}
	byDesc := func(a, b *FreqState) int { return b.Secs - a.Secs }
	slices.SortFunc(m.lows, byDesc)
	slices.SortFunc(m.highs, byDesc)
}

func (m *SymbolBarManager) GetState(freq string) *FreqState {
	norm, err := utils.NormFreq(freq)
	if err != nil {
		return nil
	}
	return m.states[norm]
}

// GetArray returns the sliding window for a registered frequency, or nil.
func (m *SymbolBarManager) GetArray(freq string) *ArrayManager {
	st := m.GetState(freq)
	if st == nil {
		return nil
	}
	return st.Am
}

/*
OnTick
Fold a tick into every registered frequency. Low frequencies complete
through the 1m generator cascade first (longest periods emitting first),
then sub-minute frequencies from longest to shortest.
*/
func (m *SymbolBarManager) OnTick(tick *core.Tick) {
	m.minGen.UpdateTick(tick)
	for _, st := range m.highs {
		st.tickGen.UpdateTick(tick)
	}
}

// OnBar feeds an externally produced 1-minute bar; only the low-frequency
// path is driven.
func (m *SymbolBarManager) OnBar(bar *core.Bar) {
	m.on1mBar(bar)
}

func (m *SymbolBarManager) on1mBar(bar *core.Bar) {
	for _, st := range m.lows {
		if st.rollGen != nil {
			st.rollGen.UpdateBar(bar)
		} else {
			m.onGenBar(st, bar)
		}
	}
}

func (m *SymbolBarManager) onGenBar(st *FreqState, bar *core.Bar) {
	if st.ready {
		st.Am.Push(bar)
		if st.cb != nil {
			st.cb(bar)
		}
		return
	}
	if st.genSince == 0 {
		st.genSince = bar.TimeMS
	}
	st.genBars = append(st.genBars, bar)
	m.applyFetched(st)
	m.tryConcat(st)
	if !st.ready && !st.histClosed {
		m.maybeFetch(st)
	}
}

/*
FetchHistBars
Kick off an asynchronous history fetch for the frequency; up to size+1 bars
are requested. Results are memoized in the process cache keyed by
(symbol, frequency, size) and invalidated on disconnect.
*/
func (m *SymbolBarManager) FetchHistBars(freq string) *errs.Error {
	st := m.GetState(freq)
	if st == nil {
		return errs.NewMsg(core.ErrInvalidFreq, "frequency not registered: %s", freq)
	}
	m.maybeFetch(st)
	return nil
}

func (m *SymbolBarManager) retryKey(st *FreqState) string {
	return m.VtSymbol + ":" + st.Freq
}

func (m *SymbolBarManager) maybeFetch(st *FreqState) {
	if st.fetching || st.ready || st.histClosed || m.gw == nil {
		return
	}
	key := m.retryKey(st)
	if next := m.retry.NextRetry(key); next > btime.TimeMS() {
		return
	}
	st.fetching = true
	go func() {
		bars, err := m.loadHistCached(st)
		st.fetchedLock.Lock()
		st.fetched, st.fetchErr = bars, err
		st.hasFetched = true
		st.fetchedLock.Unlock()
	}()
}

func (m *SymbolBarManager) cacheKey(st *FreqState) string {
	return fmt.Sprintf("hist:%s:%s:%d", m.VtSymbol, st.Freq, m.size+1)
}

func (m *SymbolBarManager) loadHistCached(st *FreqState) ([]*core.Bar, *errs.Error) {
	if core.Cache != nil {
		if val, ok := core.Cache.Get(m.cacheKey(st)); ok {
			if bars, ok2 := val.([]*core.Bar); ok2 {
				return bars, nil
			}
		}
	}
	bars, err := m.gw.LoadHistoryBars(m.Symbol, st.Freq, m.size+1, 0)
	if err != nil {
		return nil, err
	}
	if core.Cache != nil {
		core.Cache.Set(m.cacheKey(st), bars, int64(len(bars)))
	}
	return bars, nil
}

// DisableHistory marks every registered frequency ready without a gateway
// fetch; replay drivers seed their own windows.
func (m *SymbolBarManager) DisableHistory() {
	for _, st := range m.states {
		st.histClosed = true
		st.ready = true
	}
}

// InvalidateHistCache drops memoized history, called on gateway disconnect.
func (m *SymbolBarManager) InvalidateHistCache() {
	if core.Cache == nil {
		return
	}
	for _, st := range m.states {
		core.Cache.Del(m.cacheKey(st))
	}
}

// applyFetched moves an async fetch result into dispatcher-owned state.
func (m *SymbolBarManager) applyFetched(st *FreqState) {
	st.fetchedLock.Lock()
	has := st.hasFetched
	bars, err := st.fetched, st.fetchErr
	st.fetched, st.fetchErr = nil, nil
	st.hasFetched = false
	st.fetchedLock.Unlock()
	if !has {
		return
	}
	st.fetching = false
	key := m.retryKey(st)
	if err != nil {
		m.retry.SetFail(key)
		if m.retry.FailNum(key) >= maxHistFetchFails {
			m.closeHistory(st, err)
		} else {
			log.Warn("load history bars fail",
				zap.String("symbol", m.VtSymbol), zap.String("freq", st.Freq),
				zap.String("err", err.Short()))
		}
		return
	}
	// the counter resets only once the window goes ready; a fetch that
	// returns bars which never concatenate is as failed as an errored one
	st.hist = bars
	st.freshHist = true
}

/*
histConcatFail counts a fetch whose bars cannot join the generated stream.
The memoized entry is dropped so the retry reaches the gateway instead of
replaying the same unconcatable bars, and after maxHistFetchFails
consecutive misses the frequency closes history like repeated errors do.
*/
func (m *SymbolBarManager) histConcatFail(st *FreqState) {
	if !st.freshHist {
		return
	}
	st.freshHist = false
	if core.Cache != nil {
		core.Cache.Del(m.cacheKey(st))
	}
	key := m.retryKey(st)
	m.retry.SetFail(key)
	if m.retry.FailNum(key) >= maxHistFetchFails {
		m.closeHistory(st, errs.NewMsg(core.ErrRunTime,
			"history bars never contiguous with generated bars"))
		return
	}
	log.Warn("history bars not contiguous, will refetch",
		zap.String("symbol", m.VtSymbol), zap.String("freq", st.Freq))
}

/*
closeHistory marks the frequency history-closed after repeated gateway
errors: the window is served from generated bars only.
*/
func (m *SymbolBarManager) closeHistory(st *FreqState, err *errs.Error) {
	st.histClosed = true
	st.ready = true
	for _, bar := range st.genBars {
		st.Am.Push(bar)
	}
	st.genBars = nil
	st.hist = nil
	log.Error("history unreachable, serving generated bars only",
		zap.String("symbol", m.VtSymbol), zap.String("freq", st.Freq),
		zap.String("err", err.Short()))
}

/*
tryConcat
History ends at h, generated bars start at genSince. The frequency becomes
ready when the first generated bar strictly after h joins contiguously
(gap exactly one period) and all later generated bars are contiguous too.
A history bar falling into the bucket still open locally is merged into the
open bar (max high, min low, summed volume, local close) so the strategy
sees the merged bar instead of the raw history tail.
*/
func (m *SymbolBarManager) tryConcat(st *FreqState) {
	if st.ready || len(st.hist) == 0 || len(st.genBars) == 0 {
		return
	}
	hist := st.hist
	last := hist[len(hist)-1]
	merged := false
	if st.rollGen != nil {
		merged = st.rollGen.MergeHist(last)
	} else if st.tickGen != nil {
		merged = st.tickGen.MergeHist(last)
	} else if cur := m.minGen.Current(); cur != nil && cur.TimeMS == last.TimeMS {
		merged = m.minGen.MergeHist(last)
	}
	if merged {
		hist = hist[:len(hist)-1]
		st.hist = hist
		if len(hist) == 0 {
			return
		}
		last = hist[len(hist)-1]
	}
	histEnd := last.TimeMS
	k := -1
	for i, bar := range st.genBars {
		if bar.TimeMS > histEnd {
			k = i
			break
		}
	}
	if k < 0 {
		// all generated bars predate the history tail; wait for newer ones
		return
	}
	if st.genBars[k].TimeMS-histEnd != st.MS {
		// gap at the join; these bars will never concatenate
		m.histConcatFail(st)
		st.hist = nil
		return
	}
	for i := k + 1; i < len(st.genBars); i++ {
		if st.genBars[i].TimeMS-st.genBars[i-1].TimeMS != st.MS {
			m.histConcatFail(st)
			st.hist = nil
			return
		}
	}
	for _, bar := range hist {
		st.Am.Push(bar)
	}
	for _, bar := range st.genBars[k:] {
		st.Am.Push(bar)
	}
	st.ready = true
	st.genBars = nil
	st.hist = nil
	st.freshHist = false
	m.retry.Reset(m.retryKey(st))
	log.Info("bar window ready", zap.String("symbol", m.VtSymbol),
		zap.String("freq", st.Freq), zap.Int("num", st.Am.Count()))
}
