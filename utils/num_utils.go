package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

const thresFloat64Eq = 1e-9

func EqualNearly(a, b float64) bool {
	return EqualIn(a, b, thresFloat64Eq)
}

func EqualIn(a, b, thres float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	return math.Abs(a-b) <= thres
}

/*
RoundToTick
Round a price to the nearest multiple of priceTick. Decimal arithmetic
avoids 4999.999999 artifacts on small ticks.
*/
func RoundToTick(price, priceTick float64) float64 {
	if priceTick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	tick := decimal.NewFromFloat(priceTick)
	steps := p.Div(tick).Round(0)
	res, _ := steps.Mul(tick).Float64()
	return res
}

func NumSign(val float64) int {
	if val > 0 {
		return 1
	} else if val < 0 {
		return -1
	}
	return 0
}
