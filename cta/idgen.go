package cta

import (
	"fmt"
	"strings"

	"github.com/sasha-s/go-deadlock"

	"github.com/ctafram/ctago/btime"
)

const maxClientOrderIDLen = 32

/*
OrderIDGen
Mints client order IDs as <strategy-prefix><login-ts><counter>, alphanumeric
only and bounded to 32 characters. The counter is monotonic for the engine
process lifetime; composing it with the login timestamp keeps IDs unique
across restarts.
*/
type OrderIDGen struct {
	loginTS string
	counter int64
	lock    deadlock.Mutex
}

func NewOrderIDGen() *OrderIDGen {
	return &OrderIDGen{
		loginTS: btime.Now().Format("060102150405"),
	}
}

func sanitizePrefix(prefix string) string {
	var b strings.Builder
	for _, c := range prefix {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	res := b.String()
	if len(res) > 8 {
		res = res[:8]
	}
	return res
}

func (g *OrderIDGen) Next(prefix string) string {
	g.lock.Lock()
	g.counter++
	n := g.counter
	g.lock.Unlock()
	id := fmt.Sprintf("%s%s%06d", sanitizePrefix(prefix), g.loginTS, n)
	if len(id) > maxClientOrderIDLen {
		id = id[len(id)-maxClientOrderIDLen:]
	}
	return id
}
