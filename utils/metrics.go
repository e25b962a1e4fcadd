package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

/*
CalcExpectancy
Calculate expected return per trade and the risk reward expectancy ratio.
*/
func CalcExpectancy(profits []float64) (float64, float64) {
	if len(profits) == 0 {
		return 0, 0
	}
	var winNum, lossNum float64
	var profitSum, lossSum float64
	for _, val := range profits {
		if val >= 0 {
			winNum += 1
			profitSum += val
		} else {
			lossNum += 1
			lossSum -= val
		}
	}
	var avgWin, avgLoss float64
	if winNum > 0 {
		avgWin = profitSum / winNum
	}
	if lossNum > 0 {
		avgLoss = lossSum / lossNum
	}
	totalNum := float64(len(profits))
	winRate := winNum / totalNum
	lossRate := lossNum / totalNum
	expectancy := (winRate * avgWin) - (lossRate * avgLoss)
	var expectancyRatio float64
	if avgLoss > 0 {
		riskRewardRatio := avgWin / avgLoss
		expectancyRatio = ((1 + riskRewardRatio) * winRate) - 1
	}
	return expectancy, expectancyRatio
}

// calcDrawDowns returns cumulative profits, running highs, drawdowns and
// drawdown percentages relative to initBalance.
func calcDrawDowns(profits []float64, initBalance float64) ([]float64, []float64, []float64, []float64) {
	cumulative := make([]float64, len(profits))
	highs := make([]float64, len(profits))
	drawdown := make([]float64, len(profits))
	drawdownPct := make([]float64, len(profits))
	for i := 0; i < len(profits); i++ {
		if i == 0 {
			cumulative[i] = profits[i]
			highs[i] = cumulative[i]
		} else {
			cumulative[i] = cumulative[i-1] + profits[i]
			highs[i] = max(cumulative[i], highs[i-1])
		}
	}
	for i := 0; i < len(cumulative); i++ {
		drawdown[i] = cumulative[i] - highs[i]
		if initBalance != 0 {
			cumBalance := initBalance + cumulative[i]
			maxBalance := initBalance + highs[i]
			drawdownPct[i] = (maxBalance - cumBalance) / maxBalance
		} else if highs[i] != 0 {
			drawdownPct[i] = (highs[i] - cumulative[i]) / highs[i]
		}
	}
	return cumulative, highs, drawdown, drawdownPct
}

/*
CalcMaxDrawDown
Calculate the maximum drawdown of a profit series.
Returns: drawdown pct, drawdown value, high index, low index, high, low.
*/
func CalcMaxDrawDown(profits []float64, initBalance float64) (float64, float64, int, int, float64, float64) {
	if len(profits) == 0 {
		return 0, 0, -1, -1, 0, 0
	}
	cumulative, highs, drawdown, drawdownPct := calcDrawDowns(profits, initBalance)
	var idxMin int
	if initBalance > 0 {
		idxMin = argMax(drawdownPct)
	} else {
		idxMin = argMin(drawdown)
	}
	if idxMin < 0 || idxMin >= len(cumulative) {
		return 0, 0, -1, -1, 0, 0
	}
	idxMax := argMax(highs[:idxMin+1])
	highVal := cumulative[idxMax]
	lowVal := cumulative[idxMin]
	ddPct, ddVal := drawdownPct[idxMin], math.Abs(drawdown[idxMin])
	return ddPct, ddVal, idxMax, idxMin, highVal, lowVal
}

/*
SharpeRatio
Annualized Sharpe from per-period returns, with tradeDays periods per year.
riskFree is the per-period risk-free return.
*/
func SharpeRatio(returns []float64, riskFree float64, tradeDays int) float64 {
	if len(returns) < 2 {
		return 0
	}
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFree
	}
	mean := floats.Sum(excess) / float64(len(excess))
	std := stat.StdDev(excess, nil)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(float64(tradeDays))
}

/*
CalmarRatio
Annualized return divided by max drawdown percentage.
*/
func CalmarRatio(annualReturn, maxDrawDownPct float64) float64 {
	if maxDrawDownPct == 0 {
		return 0
	}
	return annualReturn / maxDrawDownPct
}

func argMax(arr []float64) int {
	maxIdx := 0
	for i, v := range arr {
		if v > arr[maxIdx] {
			maxIdx = i
		}
	}
	return maxIdx
}

func argMin(arr []float64) int {
	minIdx := 0
	for i, v := range arr {
		if v < arr[minIdx] {
			minIdx = i
		}
	}
	return minIdx
}
