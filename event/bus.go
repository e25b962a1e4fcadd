package event

import (
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/ctafram/ctago/btime"
	"github.com/ctafram/ctago/log"
)

type Type string

const (
	TypeTick     Type = "tick"
	TypeTrade    Type = "trade"
	TypeOrder    Type = "order"
	TypePosition Type = "position"
	TypeAccount  Type = "account"
	TypeContract Type = "contract"
	TypeLog      Type = "log"
	TypeError    Type = "error"
	TypeTimer    Type = "timer"
	TypeCtaLog   Type = "ctaLog"
	// TypeCtaStrategy is suffixed with the strategy name for per-strategy
	// state pushes, e.g. "ctaStrategy.Dual".
	TypeCtaStrategy Type = "ctaStrategy"
)

func StrategyType(name string) Type {
	return Type(string(TypeCtaStrategy) + "." + name)
}

type Event struct {
	Type   Type
	Data   interface{}
	TimeMS int64
}

type Handler func(ev *Event)

// handlerNode gives each registration an identity, since funcs are not
// comparable.
type handlerNode struct {
	fn Handler
}

/*
Bus
Typed publish/subscribe bus. Handlers of one type run in registration order
on a single dispatcher goroutine; a panicking handler is logged and skipped,
delivery to the remaining handlers continues. The queue is unbounded so
gateway producers never block.

A timer producer emits TypeTimer at a fixed interval while the bus runs.
*/
type Bus struct {
	handlers map[Type][]*handlerNode
	lock     deadlock.Mutex
	cond     *deadlock.Mutex // guards queue
	queue    []*Event
	notify   chan struct{}
	running  bool
	done     chan struct{}
	stopped  chan struct{} // closed once the dispatcher has drained and exited
	interval time.Duration

	// OnPanic is invoked after a handler panic is recovered; entry wires
	// process exit policy here for dispatcher-fatal conditions.
	OnPanic func(ev *Event, reason interface{})
}

func NewBus(timerInterval time.Duration) *Bus {
	if timerInterval <= 0 {
		timerInterval = time.Second
	}
	return &Bus{
		handlers: make(map[Type][]*handlerNode),
		cond:     &deadlock.Mutex{},
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		interval: timerInterval,
	}
}

// Register adds a handler for t and returns a func that unregisters it.
func (b *Bus) Register(t Type, h Handler) func() {
	node := &handlerNode{fn: h}
	b.lock.Lock()
	b.handlers[t] = append(b.handlers[t], node)
	b.lock.Unlock()
	return func() { b.unregister(t, node) }
}

func (b *Bus) unregister(t Type, node *handlerNode) {
	b.lock.Lock()
	defer b.lock.Unlock()
	arr := b.handlers[t]
	for i, cur := range arr {
		if cur == node {
			// rebuild; deliver may hold the old slice outside the lock
			next := make([]*handlerNode, 0, len(arr)-1)
			next = append(next, arr[:i]...)
			b.handlers[t] = append(next, arr[i+1:]...)
			return
		}
	}
}

/*
Put enqueues an event. FIFO is preserved per producer; events from one
goroutine are delivered in the order they were put.
*/
func (b *Bus) Put(ev *Event) {
	if ev.TimeMS == 0 {
		ev.TimeMS = btime.TimeMS()
	}
	b.cond.Lock()
	b.queue = append(b.queue, ev)
	b.cond.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *Bus) Start() {
	b.lock.Lock()
	if b.running {
		b.lock.Unlock()
		return
	}
	b.running = true
	b.lock.Unlock()
	go b.dispatchLoop()
	go b.timerLoop()
}

/*
Stop signals the dispatcher to drain the pending queue and exit, then
waits for it; every handler runs on the dispatcher goroutine, stop
included.
*/
func (b *Bus) Stop() {
	b.lock.Lock()
	if !b.running {
		b.lock.Unlock()
		return
	}
	b.running = false
	b.lock.Unlock()
	close(b.done)
	<-b.stopped
}

func (b *Bus) pop() *Event {
	b.cond.Lock()
	defer b.cond.Unlock()
	if len(b.queue) == 0 {
		return nil
	}
	ev := b.queue[0]
	b.queue = b.queue[1:]
	return ev
}

func (b *Bus) dispatchLoop() {
	defer close(b.stopped)
	for {
		ev := b.pop()
		if ev == nil {
			select {
			case <-b.notify:
				continue
			case <-b.done:
				// deliver whatever was queued before the stop
				for {
					ev := b.pop()
					if ev == nil {
						return
					}
					b.deliver(ev)
				}
			}
		}
		b.deliver(ev)
	}
}

func (b *Bus) deliver(ev *Event) {
	b.lock.Lock()
	handlers := b.handlers[ev.Type]
	b.lock.Unlock()
	for _, node := range handlers {
		b.safeCall(ev, node.fn)
	}
}

func (b *Bus) safeCall(ev *Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("event handler panic",
				zap.String("type", string(ev.Type)),
				zap.String("reason", fmt.Sprintf("%v", r)))
			if b.OnPanic != nil {
				b.OnPanic(ev, r)
			}
		}
	}()
	h(ev)
}

func (b *Bus) timerLoop() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Put(&Event{Type: TypeTimer})
		case <-b.done:
			return
		}
	}
}

// QueueLen reports the number of undelivered events, for monitoring.
func (b *Bus) QueueLen() int {
	b.cond.Lock()
	defer b.cond.Unlock()
	return len(b.queue)
}
