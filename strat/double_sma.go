package strat

import (
	"gonum.org/v1/gonum/floats"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/cta"
	"github.com/ctafram/ctago/utils"
)

func init() {
	cta.RegisterClass("DoubleSMA", NewDoubleSMA)
}

type doubleSMAParams struct {
	Freq    string  `json:"freq"`
	FastLen int     `json:"fastLen"`
	SlowLen int     `json:"slowLen"`
	Volume  float64 `json:"volume"`
}

/*
NewDoubleSMA
Fast/slow moving average crossover on the base bar stream: golden cross
opens long (flipping any short first), dead cross opens short. A plain
reference strategy exercising the full template surface.
*/
func NewDoubleSMA() *cta.Strategy {
	params := &doubleSMAParams{Freq: "1m", FastLen: 5, SlowLen: 20, Volume: 1}
	st := &cta.Strategy{
		Name:     "DoubleSMA",
		SyncList: []string{"lastCross"},
	}
	st.OnInit = func(j *cta.Job) {
		if err := cta.DecodeParams(st.Params, params); err != nil {
			j.WriteCtaLog("bad params: " + err.Short())
		}
	}
	st.OnBar = func(j *cta.Job, bar *core.Bar) {
		am := j.GetArrayManager(bar.VtSymbol, params.Freq)
		if am == nil || am.Count() < params.SlowLen {
			return
		}
		closes := am.Close()
		fast := sma(closes, params.FastLen)
		slow := sma(closes, params.SlowLen)
		prevFast := sma(closes[:len(closes)-1], params.FastLen)
		prevSlow := sma(closes[:len(closes)-1], params.SlowLen)

		price := j.RoundPrice(bar.VtSymbol, bar.Close)
		pos := j.GetPos(bar.VtSymbol)
		sign := utils.NumSign(fast - slow)
		prevSign := utils.NumSign(prevFast - prevSlow)
		if prevSign <= 0 && sign > 0 {
			if pos < 0 {
				_, _ = j.Cover(bar.VtSymbol, price, -pos, core.PriceTypeLimit, false)
			}
			if pos <= 0 {
				_, _ = j.Buy(bar.VtSymbol, price, params.Volume, core.PriceTypeLimit, false)
				j.Vars["lastCross"] = "golden"
			}
		} else if prevSign >= 0 && sign < 0 {
			if pos > 0 {
				_, _ = j.Sell(bar.VtSymbol, price, pos, core.PriceTypeLimit, false)
			}
			if pos >= 0 {
				_, _ = j.Short(bar.VtSymbol, price, params.Volume, core.PriceTypeLimit, false)
				j.Vars["lastCross"] = "dead"
			}
		}
	}
	return st
}

func sma(values []float64, n int) float64 {
	if n <= 0 || len(values) < n {
		return 0
	}
	return floats.Sum(values[len(values)-n:]) / float64(n)
}
