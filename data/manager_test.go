package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
)

const minMS = int64(60000)

func errsTimeout() *errs.Error {
	return errs.NewMsg(core.ErrTimeout, "history timeout")
}

func alignedBase() int64 {
	base := int64(1700000100000)
	return base - base%(15*minMS)
}

func TestConcatHistAndGenerated(t *testing.T) {
	m := NewSymbolBarManager("rb2405.sim", 10, nil)
	var got []*core.Bar
	require.Nil(t, m.Register("1m", func(bar *core.Bar) {
		got = append(got, bar)
	}))
	st := m.states["1m"]
	base := alignedBase()
	// history ends at 10:02, generated bars start at 10:03
	st.hist = []*core.Bar{
		min1Bar(base, 1, 1, 1, 1, 1),
		min1Bar(base+minMS, 2, 2, 2, 2, 1),
		min1Bar(base+2*minMS, 3, 3, 3, 3, 1),
	}
	m.OnBar(min1Bar(base+3*minMS, 4, 4, 4, 4, 1))
	assert.True(t, st.ready)
	bars := st.Am.Bars()
	require.Equal(t, 4, len(bars))
	for i := 1; i < len(bars); i++ {
		assert.Equal(t, minMS, bars[i].TimeMS-bars[i-1].TimeMS)
	}
	// once ready, new bars flow straight through the callback
	m.OnBar(min1Bar(base+4*minMS, 5, 5, 5, 5, 1))
	require.Equal(t, 1, len(got))
	assert.Equal(t, base+4*minMS, got[0].TimeMS)
}

func TestConcatRejectsGap(t *testing.T) {
	m := NewSymbolBarManager("rb2405.sim", 10, nil)
	require.Nil(t, m.Register("1m", func(bar *core.Bar) {}))
	st := m.states["1m"]
	base := alignedBase()
	st.hist = []*core.Bar{min1Bar(base, 1, 1, 1, 1, 1)}
	// two-minute hole between history tail and first generated bar
	m.OnBar(min1Bar(base+3*minMS, 4, 4, 4, 4, 1))
	assert.False(t, st.ready)
}

func TestConcatMergesOpenBucket(t *testing.T) {
	m := NewSymbolBarManager("rb2405.sim", 10, nil)
	require.Nil(t, m.Register("5m", func(bar *core.Bar) {}))
	st := m.states["5m"]
	base := alignedBase()
	// complete two local 5m buckets, then open a third
	for i := int64(0); i < 10; i++ {
		p := float64(10 + i)
		m.OnBar(min1Bar(base+i*minMS, p, p, p, p, 1))
	}
	// history tail falls into the bucket about to open locally
	st.hist = []*core.Bar{
		{TimeMS: base - 5*minMS, Open: 1, High: 2, Low: 1, Close: 2, Volume: 10},
		{TimeMS: base + 10*minMS, Open: 3, High: 99, Low: 1, Close: 4, Volume: 20},
	}
	m.OnBar(min1Bar(base+10*minMS, 50, 51, 49, 50, 2))
	assert.True(t, st.ready)
	bars := st.Am.Bars()
	require.Equal(t, 3, len(bars))
	assert.Equal(t, base-5*minMS, bars[0].TimeMS)
	assert.Equal(t, base, bars[1].TimeMS)
	assert.Equal(t, base+5*minMS, bars[2].TimeMS)
	// the open bucket absorbed the history bar instead of dropping it
	cur := st.rollGen.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 3.0, cur.Open)
	assert.Equal(t, 99.0, cur.High)
	assert.Equal(t, 1.0, cur.Low)
	assert.Equal(t, 50.0, cur.Close)
	assert.Equal(t, 22.0, cur.Volume)
}

func TestPushOrderLongestFirst(t *testing.T) {
	m := NewSymbolBarManager("rb2405.sim", 10, nil)
	var order []string
	for _, freq := range []string{"1m", "5m", "15m"} {
		freq := freq
		require.Nil(t, m.Register(freq, func(bar *core.Bar) {
			order = append(order, freq)
		}))
	}
	m.DisableHistory()
	base := alignedBase()
	for i := int64(0); i < 15; i++ {
		p := float64(10 + i)
		m.OnBar(min1Bar(base+i*minMS, p, p, p, p, 1))
	}
	order = order[:0]
	// the bar entering the next 15m bucket closes 15m, 5m and 1m together
	m.OnBar(min1Bar(base+15*minMS, 30, 30, 30, 30, 1))
	assert.Equal(t, []string{"15m", "5m", "1m"}, order)
}

func TestUnconcatableFetchesCloseHistory(t *testing.T) {
	m := NewSymbolBarManager("rb2405.sim", 10, nil)
	require.Nil(t, m.Register("1m", func(bar *core.Bar) {}))
	st := m.states["1m"]
	base := alignedBase()
	key := m.retryKey(st)
	// three consecutive fetches return bars that can never join the
	// generated stream; each counts toward closing history
	for i := int64(0); i < 3; i++ {
		st.hist = []*core.Bar{min1Bar(base, 1, 1, 1, 1, 1)}
		st.freshHist = true
		m.OnBar(min1Bar(base+(3+i)*minMS, 4, 4, 4, 4, 1))
		assert.Equal(t, int(i)+1, m.retry.FailNum(key))
	}
	assert.True(t, st.histClosed)
	assert.True(t, st.ready)
	assert.Nil(t, st.genBars)
	assert.Equal(t, 3, st.Am.Count())
}

func TestUnjudgedHistCountedOncePerFetch(t *testing.T) {
	m := NewSymbolBarManager("rb2405.sim", 10, nil)
	require.Nil(t, m.Register("1m", func(bar *core.Bar) {}))
	st := m.states["1m"]
	base := alignedBase()
	st.hist = []*core.Bar{min1Bar(base, 1, 1, 1, 1, 1)}
	st.freshHist = true
	m.OnBar(min1Bar(base+3*minMS, 4, 4, 4, 4, 1))
	key := m.retryKey(st)
	assert.Equal(t, 1, m.retry.FailNum(key))
	// more bars before the next fetch arrives do not count again
	m.OnBar(min1Bar(base+4*minMS, 5, 5, 5, 5, 1))
	m.OnBar(min1Bar(base+5*minMS, 6, 6, 6, 6, 1))
	assert.Equal(t, 1, m.retry.FailNum(key))
	assert.False(t, st.histClosed)
}

func TestCloseHistoryAfterRepeatedFails(t *testing.T) {
	m := NewSymbolBarManager("rb2405.sim", 10, nil)
	require.Nil(t, m.Register("1m", func(bar *core.Bar) {}))
	st := m.states["1m"]
	base := alignedBase()
	m.OnBar(min1Bar(base, 1, 1, 1, 1, 1))
	assert.False(t, st.ready)
	m.closeHistory(st, errsTimeout())
	assert.True(t, st.ready)
	assert.True(t, st.histClosed)
	assert.Equal(t, 1, st.Am.Count())
}

func TestInvalidateHistCacheDropsMemo(t *testing.T) {
	if core.Cache == nil {
		require.Nil(t, core.Setup())
	}
	m := NewSymbolBarManager("rb2405.sim", 4, nil)
	require.Nil(t, m.Register("1m", func(bar *core.Bar) {}))
	st := m.states["1m"]
	key := m.cacheKey(st)
	core.Cache.Set(key, []*core.Bar{min1Bar(alignedBase(), 1, 1, 1, 1, 1)}, 1)
	core.Cache.Wait()
	_, ok := core.Cache.Get(key)
	require.True(t, ok)
	m.InvalidateHistCache()
	_, ok = core.Cache.Get(key)
	assert.False(t, ok)
}

func TestArrayManagerRing(t *testing.T) {
	am := NewArrayManager(3)
	base := alignedBase()
	for i := int64(0); i < 5; i++ {
		am.Push(min1Bar(base+i*minMS, float64(i), float64(i), float64(i), float64(i), 1))
	}
	assert.Equal(t, 3, am.Count())
	assert.True(t, am.Ready())
	assert.Equal(t, base+2*minMS, am.Get(0).TimeMS)
	assert.Equal(t, base+4*minMS, am.Last(0).TimeMS)
	assert.Equal(t, []float64{2, 3, 4}, am.Close())
	assert.Nil(t, am.Get(3))
}
