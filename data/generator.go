package data

import (
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/utils"
)

type FnBar func(bar *core.Bar)

// Alignment policies for rolling 1m bars into coarser buckets.
const (
	AlignSharp = "sharp" // bucket boundary at t - t%f, wall-clock aligned
	AlignFull  = "full"  // fixed-size N-bar tumbling window
)

/*
TickGenerator
Folds ticks into 1-minute bars. When a tick's minute advances past the open
bar, the finished bar is emitted and a new one opened at the tick price.

Volume accumulates from LastVolume only when VolumeChange is set; the
cumulative session Volume field is never differenced because it may reset
between sessions.
*/
type TickGenerator struct {
	freqMS int64
	cur    *core.Bar
	cb     FnBar
}

func NewTickGenerator(freq string, cb FnBar) (*TickGenerator, *errs.Error) {
	secs, err := utils.FreqToSecs(freq)
	if err != nil {
		return nil, err
	}
	return &TickGenerator{freqMS: int64(secs) * 1000, cb: cb}, nil
}

func (g *TickGenerator) UpdateTick(tick *core.Tick) {
	barTime := utils.AlignTfMSecs(tick.TimeMS, g.freqMS)
	var done *core.Bar
	if g.cur != nil && barTime > g.cur.TimeMS {
		done = g.cur
		g.cur = nil
	}
	if g.cur == nil {
		g.cur = &core.Bar{
			Symbol:       tick.Symbol,
			Exchange:     tick.Exchange,
			VtSymbol:     tick.VtSymbol,
			TimeMS:       barTime,
			Open:         tick.LastPrice,
			High:         tick.LastPrice,
			Low:          tick.LastPrice,
			Close:        tick.LastPrice,
			OpenInterest: tick.OpenInterest,
		}
	} else {
		if tick.LastPrice > g.cur.High {
			g.cur.High = tick.LastPrice
		}
		if tick.LastPrice < g.cur.Low {
			g.cur.Low = tick.LastPrice
		}
		g.cur.Close = tick.LastPrice
		if tick.OpenInterest > 0 {
			g.cur.OpenInterest = tick.OpenInterest
		}
	}
	if tick.VolumeChange {
		g.cur.Volume += tick.LastVolume
	}
	// emit after the new bucket opens so history merging sees the open bar
	if done != nil {
		g.cb(done)
	}
}

// Current returns the open, not yet finished bar, or nil.
func (g *TickGenerator) Current() *core.Bar {
	return g.cur
}

// MergeHist merges a history bar whose bucket is still open locally.
func (g *TickGenerator) MergeHist(bar *core.Bar) bool {
	if g.cur == nil || g.cur.TimeMS != bar.TimeMS {
		return false
	}
	if bar.High > g.cur.High {
		g.cur.High = bar.High
	}
	if bar.Low < g.cur.Low {
		g.cur.Low = bar.Low
	}
	g.cur.Open = bar.Open
	g.cur.Volume += bar.Volume
	return true
}

func (g *TickGenerator) emit() {
	bar := g.cur
	g.cur = nil
	g.cb(bar)
}

/*
RollupGenerator
Folds finished sub-bars (usually 1m) into an N-minute/hour/day bucket.

Sharp policy aligns the bucket boundary to t - t%f and supports a market
close watershed: a wall-clock minute-of-day at which the open bar is force
closed (e.g. 15:00 for day-session futures). Full policy closes after a
fixed count of sub-bars regardless of clock alignment.

Rollup per bucket: open of first, max high, min low, close of last,
volume summed, openInterest last non-null.
*/
type RollupGenerator struct {
	freqMS       int64
	subMS        int64
	policy       string
	watershedMin int // minute of day forcing bar close, -1 to disable
	cur          *core.Bar
	subCount     int
	subNeed      int
	cb           FnBar
}

func NewRollupGenerator(freq, subFreq, policy string, watershedMin int, cb FnBar) (*RollupGenerator, *errs.Error) {
	secs, err := utils.FreqToSecs(freq)
	if err != nil {
		return nil, err
	}
	subSecs, err := utils.FreqToSecs(subFreq)
	if err != nil {
		return nil, err
	}
	if policy == "" {
		policy = AlignSharp
	}
	if watershedMin == 0 {
		watershedMin = -1
	}
	return &RollupGenerator{
		freqMS:       int64(secs) * 1000,
		subMS:        int64(subSecs) * 1000,
		policy:       policy,
		watershedMin: watershedMin,
		subNeed:      secs / subSecs,
		cb:           cb,
	}, nil
}

func (g *RollupGenerator) UpdateBar(bar *core.Bar) {
	if g.policy == AlignFull {
		g.updateFull(bar)
		return
	}
	bucket := utils.AlignTfMSecs(bar.TimeMS, g.freqMS)
	var done *core.Bar
	if g.cur != nil && bucket > g.cur.TimeMS {
		done = g.cur
		g.cur = nil
		g.subCount = 0
	}
	g.fold(bar, bucket)
	if done != nil {
		g.cb(done)
	}
	if g.watershedMin >= 0 {
		subEnd := bar.TimeMS + g.subMS
		minOfDay := int(subEnd % int64(core.SecsDay*1000) / int64(core.SecsMin*1000))
		if minOfDay == g.watershedMin {
			g.emit()
		}
	}
}

func (g *RollupGenerator) updateFull(bar *core.Bar) {
	if g.cur == nil {
		g.fold(bar, bar.TimeMS)
	} else {
		g.fold(bar, g.cur.TimeMS)
	}
	g.subCount++
	if g.subCount >= g.subNeed {
		g.emit()
	}
}

func (g *RollupGenerator) fold(bar *core.Bar, bucket int64) {
	if g.cur == nil {
		big := bar.Clone()
		big.TimeMS = bucket
		g.cur = big
		return
	}
	if bar.High > g.cur.High {
		g.cur.High = bar.High
	}
	if bar.Low < g.cur.Low {
		g.cur.Low = bar.Low
	}
	g.cur.Close = bar.Close
	g.cur.Volume += bar.Volume
	if bar.OpenInterest > 0 {
		g.cur.OpenInterest = bar.OpenInterest
	}
}

// MergeHist merges a history bar belonging to the bucket currently being
// generated. High/low widen, volumes sum, close takes the newer local one.
func (g *RollupGenerator) MergeHist(bar *core.Bar) bool {
	if g.cur == nil || g.cur.TimeMS != utils.AlignTfMSecs(bar.TimeMS, g.freqMS) {
		return false
	}
	if bar.High > g.cur.High {
		g.cur.High = bar.High
	}
	if bar.Low < g.cur.Low {
		g.cur.Low = bar.Low
	}
	g.cur.Open = bar.Open
	g.cur.Volume += bar.Volume
	return true
}

func (g *RollupGenerator) Current() *core.Bar {
	return g.cur
}

func (g *RollupGenerator) emit() {
	if g.cur == nil {
		return
	}
	bar := g.cur
	g.cur = nil
	g.subCount = 0
	g.cb(bar)
}
