package core

import "github.com/ctafram/ctago/errs"

const (
	ErrBadConfig = -1*iota - 100
	ErrInvalidPath
	ErrIOReadFail
	ErrIOWriteFail
	ErrDbConnFail
	ErrDbReadFail
	ErrDbExecFail
	ErrCacheErr
	ErrInvalidFreq
	ErrInvalidSymbol
	ErrInvalidBars
	ErrInvalidOrder
	ErrOrderRejected
	ErrHistUnreachable
	ErrGatewayUnavailable
	ErrStrategyPanic
	ErrRunTime
	ErrMarshalFail
	ErrTimeout
	ErrNetReadFail
	ErrNetWriteFail
	ErrNetTimeout
	ErrNetTemporary
	ErrNetConnect
)

var ErrCodeNames = map[int]string{
	ErrBadConfig:          "BadConfig",
	ErrInvalidPath:        "InvalidPath",
	ErrIOReadFail:         "IOReadFail",
	ErrIOWriteFail:        "IOWriteFail",
	ErrDbConnFail:         "DbConnFail",
	ErrDbReadFail:         "DbReadFail",
	ErrDbExecFail:         "DbExecFail",
	ErrCacheErr:           "CacheErr",
	ErrInvalidFreq:        "InvalidFreq",
	ErrInvalidSymbol:      "InvalidSymbol",
	ErrInvalidBars:        "InvalidBars",
	ErrInvalidOrder:       "InvalidOrder",
	ErrOrderRejected:      "OrderRejected",
	ErrHistUnreachable:    "HistoryUnreachable",
	ErrGatewayUnavailable: "GatewayUnavailable",
	ErrStrategyPanic:      "StrategyPanic",
	ErrRunTime:            "RunTime",
	ErrMarshalFail:        "MarshalFail",
	ErrTimeout:            "Timeout",
	ErrNetReadFail:        "NetReadFail",
	ErrNetWriteFail:       "NetWriteFail",
	ErrNetTimeout:         "NetTimeout",
	ErrNetTemporary:       "NetTemporary",
	ErrNetConnect:         "NetConnect",
}

func init() {
	for code, name := range ErrCodeNames {
		errs.CodeNames[code] = name
	}
}
