package btime

import (
	"strconv"
	"time"
	"unicode"

	"github.com/ctafram/ctago/core"
)

var (
	// CurTimeMS pins the process clock in backtest mode, 13-digit ms.
	CurTimeMS    = int64(0)
	UTCLocale, _ = time.LoadLocation("UTC")
)

func init() {
	time.Local = UTCLocale
}

/*
UTCStamp
Wall-clock 13-digit millisecond timestamp.
*/
func UTCStamp() int64 {
	return time.Now().UnixMilli()
}

/*
TimeMS
Current 13-digit ms timestamp. In backtest mode this is the frozen process
clock (each replay engine carries its own per-run clock); everywhere else
the wall clock.
*/
func TimeMS() int64 {
	if core.BackTestMode() {
		if CurTimeMS == 0 {
			CurTimeMS = UTCStamp()
		}
		return CurTimeMS
	}
	return UTCStamp()
}

func MSToTime(timeMSecs int64) time.Time {
	seconds := timeMSecs / 1000
	nanos := (timeMSecs % 1000) * 1000000
	return time.Unix(seconds, nanos).UTC()
}

func Now() time.Time {
	return MSToTime(TimeMS())
}

func ToDateStr(timeMS int64, format string) string {
	if format == "" {
		format = core.DefaultDateFmt
	}
	return MSToTime(timeMS).Format(format)
}

func CountDigit(text string) int {
	count := 0
	for _, c := range text {
		if unicode.IsDigit(c) {
			count++
		}
	}
	return count
}

func dateToMS(layout, timeStr string) int64 {
	t, err := time.ParseInLocation(layout, timeStr, UTCLocale)
	if err != nil {
		panic(err)
	}
	return t.UnixMilli()
}

/*
ParseTimeMS
Parse a time string to a 13-digit ms timestamp. Supported forms:
2006, 200601, 20060102, 10-digit stamp, 13-digit stamp,
2006-01-02, 2006-01-02 15:04, 2006-01-02 15:04:05
*/
func ParseTimeMS(timeStr string) int64 {
	textLen := len(timeStr)
	digitNum := CountDigit(timeStr)
	switch {
	case textLen == 4 && digitNum == 4:
		return dateToMS("2006", timeStr)
	case textLen == 6 && digitNum == 6:
		return dateToMS("200601", timeStr)
	case textLen == 8 && digitNum == 8:
		return dateToMS("20060102", timeStr)
	case textLen == 10 && digitNum == 10:
		secs, err := strconv.ParseInt(timeStr, 10, 64)
		if err != nil {
			return dateToMS(core.DateFmtDay, timeStr)
		}
		return secs * 1000
	case textLen == 10 && digitNum == 8:
		return dateToMS(core.DateFmtDay, timeStr)
	case textLen == 13 && digitNum == 13:
		msecs, err := strconv.ParseInt(timeStr, 10, 64)
		if err != nil {
			panic(err)
		}
		return msecs
	case textLen == 16 && digitNum == 12:
		return dateToMS("2006-01-02 15:04", timeStr)
	case textLen == 19 && digitNum == 14:
		return dateToMS(core.DefaultDateFmt, timeStr)
	}
	panic("unsupported time format: " + timeStr)
}
