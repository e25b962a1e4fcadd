package core

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/ctafram/ctago/errs"
)

var (
	Ctx      context.Context
	StopAll  func()
	LiveMode bool
	Cache    *ristretto.Cache
)

func init() {
	Ctx, StopAll = context.WithCancel(context.Background())
}

func SetRunMode(mode string) {
	RunMode = mode
	LiveMode = RunMode == RunModeLive
}

func BackTestMode() bool {
	return RunMode == RunModeBackTest
}

func Setup() *errs.Error {
	var err_ error
	Cache, err_ = ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 26,
		BufferItems: 64,
	})
	if err_ != nil {
		return errs.New(ErrRunTime, err_)
	}
	return nil
}

/*
Sleep waits d unless the global context is cancelled first.
Returns false when interrupted by shutdown.
*/
func Sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-Ctx.Done():
		return false
	}
}
