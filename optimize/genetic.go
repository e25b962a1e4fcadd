package optimize

import (
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/log"
)

/*
GeneticOpt
(mu + lambda) evolutionary search over the enumerated grid: mu survivors
breed lambda children per generation with two-point crossover and uniform
mutation; parents and children compete together for the next generation.
*/
type GeneticOpt struct {
	Mu         int
	Lambda     int
	Geners     int
	MutateProb float64
}

func DefaultGenetic() *GeneticOpt {
	return &GeneticOpt{Mu: 16, Lambda: 32, Geners: 10, MutateProb: 0.1}
}

// genome indexes one value per dimension.
type genome []int

type scored struct {
	gen   genome
	score float64
}

/*
Run
Evolve against the context's grid and return all scored settings, best
first. Each dimension needs at least one enumerable value.
*/
func (g *GeneticOpt) Run(c *Context) ([]*TaskResult, *errs.Error) {
	dims := make([][]float64, len(c.Params))
	for i, p := range c.Params {
		dims[i] = p.GridValues()
		if len(dims[i]) == 0 {
			return nil, errs.NewMsg(core.ErrBadConfig,
				"param %s has no enumerable values for genetic search", p.Name)
		}
	}
	rng := rand.New(rand.NewSource(c.Seed))
	pop := make([]genome, 0, g.Mu)
	for i := 0; i < g.Mu; i++ {
		pop = append(pop, randomGenome(dims, rng))
	}
	scoredPop := g.evaluate(c, dims, pop)
	for gen := 0; gen < g.Geners; gen++ {
		children := make([]genome, 0, g.Lambda)
		for i := 0; i < g.Lambda; i++ {
			a := scoredPop[rng.Intn(len(scoredPop))].gen
			b := scoredPop[rng.Intn(len(scoredPop))].gen
			child := crossTwoPoint(a, b, rng)
			mutateUniform(child, dims, g.MutateProb, rng)
			children = append(children, child)
		}
		scoredPop = append(scoredPop, g.evaluate(c, dims, children)...)
		sort.SliceStable(scoredPop, func(i, j int) bool {
			return scoredPop[i].score > scoredPop[j].score
		})
		if len(scoredPop) > g.Mu {
			scoredPop = scoredPop[:g.Mu]
		}
		log.Info("generation done", zap.Int("gen", gen+1),
			zap.Float64("best", scoredPop[0].score))
	}
	return c.Results(), nil
}

func (g *GeneticOpt) evaluate(c *Context, dims [][]float64, pop []genome) []scored {
	res := make([]scored, 0, len(pop))
	for _, gen := range pop {
		params := make(map[string]float64, len(c.Params))
		for i, p := range c.Params {
			params[p.Name] = dims[i][gen[i]]
		}
		score, err := c.Score(params)
		if err != nil {
			score = negInf
		}
		res = append(res, scored{gen: gen, score: score})
	}
	return res
}

func randomGenome(dims [][]float64, rng *rand.Rand) genome {
	gen := make(genome, len(dims))
	for i, values := range dims {
		gen[i] = rng.Intn(len(values))
	}
	return gen
}

// crossTwoPoint copies b's slice [p1, p2) into a copy of a.
func crossTwoPoint(a, b genome, rng *rand.Rand) genome {
	child := make(genome, len(a))
	copy(child, a)
	if len(a) < 2 {
		return child
	}
	p1 := rng.Intn(len(a))
	p2 := rng.Intn(len(a))
	if p1 > p2 {
		p1, p2 = p2, p1
	}
	copy(child[p1:p2], b[p1:p2])
	return child
}

func mutateUniform(gen genome, dims [][]float64, prob float64, rng *rand.Rand) {
	for i := range gen {
		if rng.Float64() < prob {
			gen[i] = rng.Intn(len(dims[i]))
		}
	}
}
