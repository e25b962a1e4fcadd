package cta

import (
	"sort"

	"github.com/ctafram/ctago/core"
)

/*
Plugin
Composable engine extension: optional handlers run around the engine's own
event processing, lower Priority first. Plugins replace subclassing the
engine; risk filters, tick recorders and similar cross-cutting concerns
register one of these.
*/
type Plugin struct {
	Name     string
	Priority int

	PreTick  func(e *Engine, tick *core.Tick)
	PostTick func(e *Engine, tick *core.Tick)

	PreOrder  func(e *Engine, od *core.Order)
	PostOrder func(e *Engine, od *core.Order)

	PreTrade  func(e *Engine, td *core.Trade)
	PostTrade func(e *Engine, td *core.Trade)
}

// RegisterPlugin inserts the plugin keeping the list priority ordered.
func (e *Engine) RegisterPlugin(p *Plugin) {
	e.plugins = append(e.plugins, p)
	sort.SliceStable(e.plugins, func(i, j int) bool {
		return e.plugins[i].Priority < e.plugins[j].Priority
	})
}

func (e *Engine) pluginsPreTick(tick *core.Tick) {
	for _, p := range e.plugins {
		if p.PreTick != nil {
			p.PreTick(e, tick)
		}
	}
}

func (e *Engine) pluginsPostTick(tick *core.Tick) {
	for _, p := range e.plugins {
		if p.PostTick != nil {
			p.PostTick(e, tick)
		}
	}
}

func (e *Engine) pluginsPreOrder(od *core.Order) {
	for _, p := range e.plugins {
		if p.PreOrder != nil {
			p.PreOrder(e, od)
		}
	}
}

func (e *Engine) pluginsPostOrder(od *core.Order) {
	for _, p := range e.plugins {
		if p.PostOrder != nil {
			p.PostOrder(e, od)
		}
	}
}

func (e *Engine) pluginsPreTrade(td *core.Trade) {
	for _, p := range e.plugins {
		if p.PreTrade != nil {
			p.PreTrade(e, td)
		}
	}
}

func (e *Engine) pluginsPostTrade(td *core.Trade) {
	for _, p := range e.plugins {
		if p.PostTrade != nil {
			p.PostTrade(e, td)
		}
	}
}
