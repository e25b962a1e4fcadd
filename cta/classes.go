package cta

import (
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
)

// stratClasses maps a className from strategy configuration to a factory
// producing a fresh Strategy record.
var stratClasses = map[string]func() *Strategy{}

func RegisterClass(className string, fn func() *Strategy) {
	stratClasses[className] = fn
}

func NewStrategyOf(className string) (*Strategy, *errs.Error) {
	fn, ok := stratClasses[className]
	if !ok {
		return nil, errs.NewMsg(core.ErrBadConfig, "unknown strategy class: %s", className)
	}
	st := fn()
	st.ClassName = className
	return st, nil
}

func StratClassNames() []string {
	res := make([]string, 0, len(stratClasses))
	for name := range stratClasses {
		res = append(res, name)
	}
	return res
}
