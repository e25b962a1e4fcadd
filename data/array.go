package data

import "github.com/ctafram/ctago/core"

/*
ArrayManager
Bounded sliding window of the last Size completed bars of one frequency.
Strategies read it through the field accessors for indicator computation;
views are copies in time order, oldest first.
*/
type ArrayManager struct {
	size  int
	bars  []*core.Bar
	head  int
	count int
}

const DefaultArraySize = 100

func NewArrayManager(size int) *ArrayManager {
	if size <= 0 {
		size = DefaultArraySize
	}
	return &ArrayManager{
		size: size,
		bars: make([]*core.Bar, size),
	}
}

func (a *ArrayManager) Push(bar *core.Bar) {
	idx := (a.head + a.count) % a.size
	if a.count == a.size {
		a.head = (a.head + 1) % a.size
		idx = (a.head + a.count - 1) % a.size
	} else {
		a.count++
	}
	a.bars[idx] = bar
}

func (a *ArrayManager) Count() int {
	return a.count
}

func (a *ArrayManager) Size() int {
	return a.size
}

// Ready reports whether the window is fully populated.
func (a *ArrayManager) Ready() bool {
	return a.count >= a.size
}

// Get returns the i-th bar from the oldest (0) to the newest (Count-1).
func (a *ArrayManager) Get(i int) *core.Bar {
	if i < 0 || i >= a.count {
		return nil
	}
	return a.bars[(a.head+i)%a.size]
}

// Last returns the bar n steps back from the newest; Last(0) is the newest.
func (a *ArrayManager) Last(n int) *core.Bar {
	return a.Get(a.count - 1 - n)
}

func (a *ArrayManager) Bars() []*core.Bar {
	res := make([]*core.Bar, a.count)
	for i := 0; i < a.count; i++ {
		res[i] = a.Get(i)
	}
	return res
}

func (a *ArrayManager) fieldArr(pick func(*core.Bar) float64) []float64 {
	res := make([]float64, a.count)
	for i := 0; i < a.count; i++ {
		res[i] = pick(a.Get(i))
	}
	return res
}

func (a *ArrayManager) Open() []float64 {
	return a.fieldArr(func(b *core.Bar) float64 { return b.Open })
}

func (a *ArrayManager) High() []float64 {
	return a.fieldArr(func(b *core.Bar) float64 { return b.High })
}

func (a *ArrayManager) Low() []float64 {
	return a.fieldArr(func(b *core.Bar) float64 { return b.Low })
}

func (a *ArrayManager) Close() []float64 {
	return a.fieldArr(func(b *core.Bar) float64 { return b.Close })
}

func (a *ArrayManager) Volume() []float64 {
	return a.fieldArr(func(b *core.Bar) float64 { return b.Volume })
}
