package core

var (
	BotName  string // current engine instance name
	RunMode  string // live/backtest/other
	StartAt  int64  // startup time, 13-digit ms timestamp
	IsWarmUp bool   // whether currently warming up strategies
)

const (
	SecsMin  = 60
	SecsHour = SecsMin * 60
	SecsDay  = SecsHour * 24
	SecsWeek = SecsDay * 7
	SecsMon  = SecsDay * 30
)

const (
	// SymbolSep joins the venue symbol and the gateway name into a vtSymbol.
	SymbolSep = "."

	DefaultDateFmt = "2006-01-02 15:04:05"
	DateFmtDay     = "2006-01-02"

	MSMinStamp = 157766400000 // 1975-01-01T00:00:00.000Z
)

const (
	RunModeLive     = "live"
	RunModeBackTest = "backtest"
	RunModeOther    = "other"
)

const (
	// AnnualTradeDays is the year convention for annualized statistics.
	AnnualTradeDays = 240

	// MaxFetchNum is the max bars requested from a gateway in one call.
	MaxFetchNum = 1000
)

// Exit codes of the process, written by entry.
const (
	ExitOk         = 0
	ExitConfig     = 2
	ExitDispatcher = 3
)
