package cta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctafram/ctago/core"
)

func TestSaveLoadSyncRoundTrip(t *testing.T) {
	e, _, j := newTestEngine(t, "DCE")
	j.Strat.SyncList = []string{"lastCross"}
	key := core.PosKey(ctpSymbol, core.DirectionLong)
	j.Pos[key] = 3
	j.Evening[key] = 2
	j.YdPos[key] = 1
	j.Vars["lastCross"] = "golden"
	j.Vars["scratch"] = 42.0
	require.Nil(t, e.SaveSync(j))

	j2 := NewJob(j.Strat, e)
	require.Nil(t, e.LoadSync(j2))
	assert.Equal(t, 3.0, j2.Pos[key])
	assert.Equal(t, 2.0, j2.Evening[key])
	assert.Equal(t, 1.0, j2.YdPos[key])
	assert.Equal(t, "golden", j2.Vars["lastCross"])
	// only keys named in SyncList survive the restart
	_, ok := j2.Vars["scratch"]
	assert.False(t, ok)
}

func TestLoadSyncMissingFile(t *testing.T) {
	e, _, j := newTestEngine(t, "DCE")
	require.Nil(t, e.LoadSync(j))
	assert.Empty(t, j.Pos)
}

func TestRestoreStrategy(t *testing.T) {
	e, _, j := newTestEngine(t, "DCE")
	j.Strat.SyncList = []string{"n"}
	j.Vars["n"] = 7.0
	require.Nil(t, e.SaveSync(j))

	j.Inited = false
	j.Trading = false
	j.Vars = map[string]interface{}{}
	restored := false
	j.Strat.OnRestore = func(j *Job) { restored = true }
	inited := false
	j.Strat.OnInit = func(j *Job) { inited = true }
	require.Nil(t, e.RestoreStrategy("s1"))
	assert.True(t, restored)
	assert.False(t, inited)
	assert.True(t, j.Inited)
	assert.True(t, j.Trading)
	assert.Equal(t, 7.0, j.Vars["n"])
}
