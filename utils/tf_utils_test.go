package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFreq(t *testing.T) {
	cases := []struct {
		in   string
		num  int
		unit string
	}{
		{"5m", 5, "m"},
		{"1h", 1, "h"},
		{"30s", 30, "s"},
		{"60", 60, "m"},
		{"1d", 1, "d"},
		{"2w", 2, "w"},
		{"15M", 15, "m"},
		{"4H", 4, "h"},
	}
	for _, c := range cases {
		num, unit, err := ParseFreq(c.in)
		require.Nil(t, err, c.in)
		assert.Equal(t, c.num, num, c.in)
		assert.Equal(t, c.unit, unit, c.in)
	}
	for _, bad := range []string{"", "m", "0m", "-5m", "5x", "1.5h"} {
		_, _, err := ParseFreq(bad)
		assert.NotNil(t, err, bad)
	}
}

func TestNormFreq(t *testing.T) {
	cases := map[string]string{
		"60":  "60m",
		"15M": "15m",
		"1H":  "1h",
		"5m":  "5m",
		"30s": "30s",
	}
	for in, want := range cases {
		got, err := NormFreq(in)
		require.Nil(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestFreqToSecs(t *testing.T) {
	cases := map[string]int{
		"30s": 30,
		"1m":  60,
		"5m":  300,
		"1h":  3600,
		"1d":  86400,
		"1w":  604800,
	}
	for in, want := range cases {
		secs, err := FreqToSecs(in)
		require.Nil(t, err, in)
		assert.Equal(t, want, secs, in)
	}
}

func TestIsHighFreq(t *testing.T) {
	assert.True(t, IsHighFreq("30s"))
	assert.True(t, IsHighFreq("59s"))
	assert.False(t, IsHighFreq("1m"))
	assert.False(t, IsHighFreq("60s"))
	assert.False(t, IsHighFreq("5m"))
	assert.False(t, IsHighFreq("bogus"))
}

func TestAlignTfMSecs(t *testing.T) {
	fiveMin := int64(300000)
	base := int64(1700000000000) - int64(1700000000000)%fiveMin
	assert.Equal(t, base, AlignTfMSecs(base, fiveMin))
	assert.Equal(t, base, AlignTfMSecs(base+1, fiveMin))
	assert.Equal(t, base, AlignTfMSecs(base+fiveMin-1, fiveMin))
	assert.Equal(t, base+fiveMin, AlignTfMSecs(base+fiveMin, fiveMin))
	// aligning twice changes nothing
	once := AlignTfMSecs(base+123456, fiveMin)
	assert.Equal(t, once, AlignTfMSecs(once, fiveMin))
	// non-positive bucket is a no-op
	assert.Equal(t, base+7, AlignTfMSecs(base+7, 0))
}

func TestGcdInts(t *testing.T) {
	assert.Equal(t, 60, GcdInts([]int{60, 300, 900}))
	assert.Equal(t, 1, GcdInts([]int{3, 7}))
	assert.Equal(t, 5, GcdInts([]int{5}))
	assert.Equal(t, 0, GcdInts(nil))
}
