package optimize

import "math"

/*
Param
One dimension of the search space. Values enumerates a discrete grid; when
empty the dimension is the continuous range [Min, Max]. IsInt snaps
continuous suggestions to whole numbers.
*/
type Param struct {
	Name   string
	Min    float64
	Max    float64
	Values []float64
	IsInt  bool
}

// OptSpace returns the continuous range a sampler should draw from.
// Discrete dimensions are sampled as an index into Values.
func (p *Param) OptSpace() (float64, float64) {
	if len(p.Values) > 0 {
		return 0, float64(len(p.Values))
	}
	return p.Min, p.Max
}

// ToRegular maps a sampler suggestion back into the dimension's domain.
func (p *Param) ToRegular(val float64) float64 {
	if len(p.Values) > 0 {
		idx := int(val)
		if idx < 0 {
			idx = 0
		}
		if idx >= len(p.Values) {
			idx = len(p.Values) - 1
		}
		return p.Values[idx]
	}
	if val < p.Min {
		val = p.Min
	}
	if val > p.Max {
		val = p.Max
	}
	if p.IsInt {
		val = math.Round(val)
	}
	return val
}

// GridValues returns the enumerated grid for Cartesian expansion; integer
// ranges expand stepwise, continuous ranges must enumerate Values.
func (p *Param) GridValues() []float64 {
	if len(p.Values) > 0 {
		return p.Values
	}
	if p.IsInt {
		var res []float64
		for v := math.Ceil(p.Min); v <= p.Max; v++ {
			res = append(res, v)
		}
		return res
	}
	return nil
}
