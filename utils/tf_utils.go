package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
)

var (
	freqRegex = regexp.MustCompile(`^([1-9][0-9]*)([smhdw]?)$`)

	unitSecs = map[string]int{
		"s": 1,
		"m": core.SecsMin,
		"h": core.SecsHour,
		"d": core.SecsDay,
		"w": core.SecsWeek,
	}
)

/*
ParseFreq
Parse a frequency string like "5m", "1h", "30s" into (count, unit). The unit
is case-insensitive and defaults to minutes when omitted.
*/
func ParseFreq(freq string) (int, string, *errs.Error) {
	match := freqRegex.FindStringSubmatch(strings.ToLower(freq))
	if match == nil {
		return 0, "", errs.NewMsg(core.ErrInvalidFreq, "invalid frequency: %s", freq)
	}
	num, _ := strconv.Atoi(match[1])
	unit := match[2]
	if unit == "" {
		unit = "m"
	}
	return num, unit, nil
}

// NormFreq returns the canonical "<n><unit>" form, e.g. "60" -> "60m".
func NormFreq(freq string) (string, *errs.Error) {
	num, unit, err := ParseFreq(freq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d%s", num, unit), nil
}

func FreqToSecs(freq string) (int, *errs.Error) {
	num, unit, err := ParseFreq(freq)
	if err != nil {
		return 0, err
	}
	return num * unitSecs[unit], nil
}

// FreqToMSecs panics on invalid input; use after NormFreq has validated.
func FreqToMSecs(freq string) int64 {
	secs, err := FreqToSecs(freq)
	if err != nil {
		panic(err)
	}
	return int64(secs) * 1000
}

/*
IsHighFreq
Frequencies below one minute are "high" and driven only from ticks; one
minute and above are "low" and roll up from 1m bars.
*/
func IsHighFreq(freq string) bool {
	secs, err := FreqToSecs(freq)
	if err != nil {
		return false
	}
	return secs < core.SecsMin
}

/*
AlignTfMSecs
Align a 13-digit ms timestamp down to the start of its bucket: the largest
t <= timeMS with t % tfMSecs == 0. Idempotent.
*/
func AlignTfMSecs(timeMS, tfMSecs int64) int64 {
	if tfMSecs <= 0 {
		return timeMS
	}
	return timeMS - timeMS%tfMSecs
}

// GcdInts returns the greatest common divisor of the given values.
func GcdInts(nums []int) int {
	res := 0
	for _, n := range nums {
		res = gcdTwo(res, n)
	}
	return res
}

func gcdTwo(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
