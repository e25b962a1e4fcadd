package core

import (
	"github.com/sasha-s/go-deadlock"
)

var (
	lastPrices    = make(map[string]float64) // latest trade price per vtSymbol
	lockLastPrice deadlock.RWMutex
)

func SetPrice(vtSymbol string, price float64) {
	lockLastPrice.Lock()
	lastPrices[vtSymbol] = price
	lockLastPrice.Unlock()
}

// GetPrice returns the latest price and whether any tick/bar has set it.
func GetPrice(vtSymbol string) (float64, bool) {
	lockLastPrice.RLock()
	price, ok := lastPrices[vtSymbol]
	lockLastPrice.RUnlock()
	return price, ok
}

func ResetPrices() {
	lockLastPrice.Lock()
	lastPrices = make(map[string]float64)
	lockLastPrice.Unlock()
}
