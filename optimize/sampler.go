package optimize

import (
	bayesopt "github.com/anyongjin/go-bayesopt"
	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/cmaes"
	"github.com/c-bata/goptuna/tpe"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
)

/*
RunSampler
Sequential model-based search: "random", "tpe", "cmaes" run through
goptuna, "bayes" through gaussian-process bayesian optimization. Returns
the best setting and its score; every evaluated setting also lands in the
context results.
*/
func (c *Context) RunSampler(name string) (map[string]float64, float64, *errs.Error) {
	if name == "bayes" {
		return c.runBayes()
	}
	return c.runGOptuna(name)
}

func (c *Context) runGOptuna(name string) (map[string]float64, float64, *errs.Error) {
	var sampler goptuna.Sampler
	var options []goptuna.StudyOption
	seed := c.Seed
	switch name {
	case "random":
		sampler = goptuna.NewRandomSampler(goptuna.RandomSamplerOptionSeed(seed))
	case "cmaes":
		sampler = goptuna.NewRandomSampler(goptuna.RandomSamplerOptionSeed(seed))
		rs := cmaes.NewSampler(cmaes.SamplerOptionSeed(seed))
		options = append(options, goptuna.StudyOptionRelativeSampler(rs))
	case "tpe":
		sampler = tpe.NewSampler()
	default:
		return nil, 0, errs.NewMsg(core.ErrBadConfig, "unknown sampler: %s", name)
	}
	options = append(options,
		goptuna.StudyOptionSampler(sampler),
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMaximize))
	study, err_ := goptuna.CreateStudy("optimize", options...)
	if err_ != nil {
		return nil, 0, errs.New(core.ErrRunTime, err_)
	}
	err_ = study.Optimize(func(trial goptuna.Trial) (float64, error) {
		params := make(map[string]float64, len(c.Params))
		for _, p := range c.Params {
			minVal, maxVal := p.OptSpace()
			val, _ := trial.SuggestFloat(p.Name, minVal, maxVal)
			params[p.Name] = p.ToRegular(val)
		}
		score, err := c.Score(params)
		if err != nil {
			// scored as the failure floor; the study keeps exploring
			return negInf, nil
		}
		return score, nil
	}, c.Rounds)
	if err_ != nil {
		return nil, 0, errs.New(core.ErrRunTime, err_)
	}
	best, err_ := study.GetBestParams()
	if err_ != nil {
		return nil, 0, errs.New(core.ErrRunTime, err_)
	}
	bestSc, err_ := study.GetBestValue()
	if err_ != nil {
		return nil, 0, errs.New(core.ErrRunTime, err_)
	}
	res := make(map[string]float64)
	for _, p := range c.Params {
		if v, ok := best[p.Name]; ok {
			res[p.Name] = p.ToRegular(v.(float64))
		}
	}
	return res, bestSc, nil
}

func (c *Context) runBayes() (map[string]float64, float64, *errs.Error) {
	bysParams := make([]bayesopt.Param, 0, len(c.Params))
	for _, p := range c.Params {
		minVal, maxVal := p.OptSpace()
		bysParams = append(bysParams, bayesopt.UniformParam{
			Name: p.Name,
			Min:  minVal,
			Max:  maxVal,
		})
	}
	options := []bayesopt.OptimizerOption{
		bayesopt.WithParallel(1),
		bayesopt.WithMinimize(false),
		bayesopt.WithRounds(c.Rounds),
		bayesopt.WithRandomRounds(c.Rounds / 3),
	}
	opt := bayesopt.New(bysParams, options...)
	best, bestSc, err_ := opt.Optimize(func(m map[bayesopt.Param]float64) float64 {
		params := make(map[string]float64, len(c.Params))
		for k, v := range m {
			params[k.GetName()] = v
		}
		for _, p := range c.Params {
			params[p.Name] = p.ToRegular(params[p.Name])
		}
		score, err := c.Score(params)
		if err != nil {
			return negInf
		}
		return score
	})
	if err_ != nil && opt.ExplorationErr() == nil {
		return nil, 0, errs.New(core.ErrRunTime, err_)
	}
	res := make(map[string]float64)
	for k, v := range best {
		res[k.GetName()] = v
	}
	for _, p := range c.Params {
		if v, ok := res[p.Name]; ok {
			res[p.Name] = p.ToRegular(v)
		}
	}
	return res, bestSc, nil
}
