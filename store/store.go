package store

import (
	"sort"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
)

/*
BarStore
Read side of a bar database consumed by the backtest engine and the
simulation gateway. Bars are returned strictly ascending by time; the range
is [startMS, endMS). Volume is per-bar, never cumulative-session.
*/
type BarStore interface {
	LoadBars(symbol, freq string, startMS, endMS int64) ([]*core.Bar, *errs.Error)
	// Range reports the first and last bar time available, ok=false when empty.
	Range(symbol, freq string) (int64, int64, bool, *errs.Error)
}

// BarWriter is the optional write side, used by loaders and tests.
type BarWriter interface {
	InsertBars(symbol, freq string, bars []*core.Bar) *errs.Error
}

/*
MemStore
In-memory BarStore used by tests and short simulation sessions.
*/
type MemStore struct {
	bars map[string][]*core.Bar // symbol|freq -> ascending bars
}

func NewMemStore() *MemStore {
	return &MemStore{bars: make(map[string][]*core.Bar)}
}

func memKey(symbol, freq string) string {
	return symbol + "|" + freq
}

func (s *MemStore) InsertBars(symbol, freq string, bars []*core.Bar) *errs.Error {
	key := memKey(symbol, freq)
	arr := append(s.bars[key], bars...)
	sort.Slice(arr, func(i, j int) bool { return arr[i].TimeMS < arr[j].TimeMS })
	s.bars[key] = arr
	return nil
}

func (s *MemStore) LoadBars(symbol, freq string, startMS, endMS int64) ([]*core.Bar, *errs.Error) {
	arr := s.bars[memKey(symbol, freq)]
	res := make([]*core.Bar, 0, len(arr))
	for _, bar := range arr {
		if bar.TimeMS >= startMS && (endMS <= 0 || bar.TimeMS < endMS) {
			res = append(res, bar)
		}
	}
	return res, nil
}

func (s *MemStore) Range(symbol, freq string) (int64, int64, bool, *errs.Error) {
	arr := s.bars[memKey(symbol, freq)]
	if len(arr) == 0 {
		return 0, 0, false, nil
	}
	return arr[0].TimeMS, arr[len(arr)-1].TimeMS, true, nil
}
