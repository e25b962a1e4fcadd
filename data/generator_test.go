package data

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ctafram/ctago/core"
)

func min1Bar(timeMS int64, o, h, l, c, v float64) *core.Bar {
	return &core.Bar{TimeMS: timeMS, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestRollup5m(t *testing.T) {
	var out []*core.Bar
	gen, err := NewRollupGenerator("5m", "1m", AlignSharp, -1, func(bar *core.Bar) {
		out = append(out, bar)
	})
	assert.Nil(t, err)
	base := int64(1700000100000)
	base -= base % 300000 // 5m aligned start
	subs := [][5]float64{
		{10, 12, 9, 11, 100},
		{11, 13, 10, 12, 50},
		{12, 14, 11, 13, 80},
		{13, 15, 12, 14, 60},
		{14, 16, 13, 15, 40},
	}
	for i, s := range subs {
		gen.UpdateBar(min1Bar(base+int64(i)*60000, s[0], s[1], s[2], s[3], s[4]))
	}
	// next bucket's first sub-bar closes the open one
	gen.UpdateBar(min1Bar(base+300000, 15, 15, 15, 15, 10))
	assert.Equal(t, 1, len(out))
	bar := out[0]
	assert.Equal(t, base, bar.TimeMS)
	assert.Equal(t, 10.0, bar.Open)
	assert.Equal(t, 16.0, bar.High)
	assert.Equal(t, 9.0, bar.Low)
	assert.Equal(t, 15.0, bar.Close)
	assert.Equal(t, 330.0, bar.Volume)
}

func TestRollupFullPolicy(t *testing.T) {
	var out []*core.Bar
	gen, err := NewRollupGenerator("3m", "1m", AlignFull, -1, func(bar *core.Bar) {
		out = append(out, bar)
	})
	assert.Nil(t, err)
	// offset start, full policy ignores clock alignment
	base := int64(1700000100000) + 60000
	for i := 0; i < 6; i++ {
		p := float64(10 + i)
		gen.UpdateBar(min1Bar(base+int64(i)*60000, p, p, p, p, 1))
	}
	assert.Equal(t, 2, len(out))
	assert.Equal(t, 3.0, out[0].Volume)
	assert.Equal(t, 10.0, out[0].Open)
	assert.Equal(t, 12.0, out[0].Close)
	assert.Equal(t, 13.0, out[1].Open)
}

func TestRollupWatershed(t *testing.T) {
	var out []*core.Bar
	// force close at 15:00 (minute 900 of day)
	gen, err := NewRollupGenerator("1h", "1m", AlignSharp, 900, func(bar *core.Bar) {
		out = append(out, bar)
	})
	assert.Nil(t, err)
	// 2023-11-14 14:58 UTC
	base := int64(1699973880000)
	for i := 0; i < 3; i++ {
		p := float64(100 + i)
		gen.UpdateBar(min1Bar(base+int64(i)*60000, p, p, p, p, 1))
	}
	// the 14:59 bar closes at 15:00, the watershed fires mid-hour
	assert.Equal(t, 1, len(out))
	assert.Equal(t, 2.0, out[0].Volume)
}

func TestTickGenerator(t *testing.T) {
	var out []*core.Bar
	gen, err := NewTickGenerator("1m", func(bar *core.Bar) {
		out = append(out, bar)
	})
	assert.Nil(t, err)
	base := int64(1700000100000)
	base -= base % 60000
	gen.UpdateTick(&core.Tick{TimeMS: base + 1000, LastPrice: 10, LastVolume: 5, VolumeChange: true})
	gen.UpdateTick(&core.Tick{TimeMS: base + 20000, LastPrice: 12, LastVolume: 3, VolumeChange: true})
	// quote-only update must not add volume
	gen.UpdateTick(&core.Tick{TimeMS: base + 30000, LastPrice: 9, LastVolume: 99, VolumeChange: false})
	gen.UpdateTick(&core.Tick{TimeMS: base + 61000, LastPrice: 11, LastVolume: 1, VolumeChange: true})
	assert.Equal(t, 1, len(out))
	bar := out[0]
	assert.Equal(t, 10.0, bar.Open)
	assert.Equal(t, 12.0, bar.High)
	assert.Equal(t, 9.0, bar.Low)
	assert.Equal(t, 9.0, bar.Close)
	assert.Equal(t, 8.0, bar.Volume)
	cur := gen.Current()
	assert.NotNil(t, cur)
	assert.Equal(t, 11.0, cur.Open)
}

func TestTickGeneratorMergeHist(t *testing.T) {
	gen, err := NewTickGenerator("1m", func(bar *core.Bar) {})
	assert.Nil(t, err)
	base := int64(1700000100000)
	base -= base % 60000
	gen.UpdateTick(&core.Tick{TimeMS: base + 1000, LastPrice: 10, LastVolume: 5, VolumeChange: true})
	merged := gen.MergeHist(&core.Bar{TimeMS: base, Open: 9, High: 13, Low: 8, Close: 10, Volume: 20})
	assert.True(t, merged)
	cur := gen.Current()
	assert.Equal(t, 9.0, cur.Open)
	assert.Equal(t, 13.0, cur.High)
	assert.Equal(t, 8.0, cur.Low)
	assert.Equal(t, 25.0, cur.Volume)

	// different bucket does not merge
	assert.False(t, gen.MergeHist(&core.Bar{TimeMS: base - 60000}))
}
