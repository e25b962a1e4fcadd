package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctafram/ctago/core"
)

func TestContractRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.json")
	r := New()
	r.SetCachePath(path)
	r.SetContract(&core.Contract{
		Symbol: "rb2405", Exchange: "SHFE", Gateway: "sim",
		VtSymbol: "rb2405.sim", ProductClass: core.ProductFutures,
		PriceTick: 1, Size: 10, MinVolume: 1,
	})
	require.Nil(t, r.SaveContracts())

	r2 := New()
	r2.SetCachePath(path)
	r2.LoadContracts()
	c := r2.GetContract("rb2405.sim")
	require.NotNil(t, c)
	assert.Equal(t, 10.0, c.Size)
	assert.Equal(t, 1.0, c.PriceTick)
}

func TestLoadContractsKeepsLive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.json")
	r := New()
	r.SetCachePath(path)
	r.SetContract(&core.Contract{VtSymbol: "rb2405.sim", PriceTick: 1})
	require.Nil(t, r.SaveContracts())

	r2 := New()
	r2.SetCachePath(path)
	// a live contract event beats the cached copy
	r2.SetContract(&core.Contract{VtSymbol: "rb2405.sim", PriceTick: 5})
	r2.LoadContracts()
	assert.Equal(t, 5.0, r2.GetContract("rb2405.sim").PriceTick)
}

func TestLoadContractsMissingFile(t *testing.T) {
	r := New()
	r.SetCachePath(filepath.Join(t.TempDir(), "absent.json"))
	r.LoadContracts()
	assert.Empty(t, r.AllContracts())
}

func TestOrderWorkingSet(t *testing.T) {
	r := New()
	r.setOrder(&core.Order{VtOrderID: "sim.1", Status: core.StatusNotTraded})
	r.setOrder(&core.Order{VtOrderID: "sim.2", Status: core.StatusSubmitted})
	assert.Equal(t, 2, len(r.WorkingOrders()))

	r.setOrder(&core.Order{VtOrderID: "sim.1", Status: core.StatusAllTraded})
	working := r.WorkingOrders()
	require.Equal(t, 1, len(working))
	assert.Equal(t, "sim.2", working[0].VtOrderID)
	// the finished order stays queryable
	assert.Equal(t, core.StatusAllTraded, r.GetOrder("sim.1").Status)
}

func TestTickUpdatesGlobalPrice(t *testing.T) {
	r := New()
	t.Cleanup(core.ResetPrices)
	r.setTick(&core.Tick{VtSymbol: "rb2405.sim", LastPrice: 3500})
	price, ok := core.GetPrice("rb2405.sim")
	require.True(t, ok)
	assert.Equal(t, 3500.0, price)
	require.NotNil(t, r.GetTick("rb2405.sim"))
	// quote-only ticks with no trade price leave the global price alone
	r.setTick(&core.Tick{VtSymbol: "rb2405.sim", LastPrice: 0})
	price, _ = core.GetPrice("rb2405.sim")
	assert.Equal(t, 3500.0, price)
}

func TestPositionKeyedByDirection(t *testing.T) {
	r := New()
	r.setPosition(&core.Position{VtSymbol: "rb2405.sim", Direction: core.DirectionLong, Position: 3})
	r.setPosition(&core.Position{VtSymbol: "rb2405.sim", Direction: core.DirectionShort, Position: 1})
	long := r.GetPosition("rb2405.sim", core.DirectionLong)
	short := r.GetPosition("rb2405.sim", core.DirectionShort)
	require.NotNil(t, long)
	require.NotNil(t, short)
	assert.Equal(t, 3.0, long.Position)
	assert.Equal(t, 1.0, short.Position)
}
