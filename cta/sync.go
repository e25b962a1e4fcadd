package cta

import (
	"path/filepath"

	"github.com/ctafram/ctago/btime"
	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
	"github.com/ctafram/ctago/utils"
)

/*
syncData is the on-disk snapshot restoring a strategy after a process
restart: positions and the Vars named by the strategy's SyncList.
*/
type syncData struct {
	Name    string                 `json:"name"`
	SavedMS int64                  `json:"savedMS"`
	Pos     map[string]float64     `json:"pos"`
	Evening map[string]float64     `json:"evening"`
	YdPos   map[string]float64     `json:"ydPos"`
	Vars    map[string]interface{} `json:"vars"`
}

func (e *Engine) syncPath(j *Job) string {
	return filepath.Join(e.syncDir, j.Name()+"_sync.json")
}

func (e *Engine) SaveSync(j *Job) *errs.Error {
	if e.syncDir == "" {
		return nil
	}
	if err := utils.EnsureDir(e.syncDir, 0o755); err != nil {
		return errs.New(core.ErrIOWriteFail, err)
	}
	vars := make(map[string]interface{})
	for _, key := range j.Strat.SyncList {
		if val, ok := j.Vars[key]; ok {
			vars[key] = val
		}
	}
	return utils.WriteJsonFile(e.syncPath(j), &syncData{
		Name:    j.Name(),
		SavedMS: btime.TimeMS(),
		Pos:     j.Pos,
		Evening: j.Evening,
		YdPos:   j.YdPos,
		Vars:    vars,
	})
}

func (e *Engine) LoadSync(j *Job) *errs.Error {
	if e.syncDir == "" {
		return nil
	}
	path := e.syncPath(j)
	if !utils.Exists(path) {
		return nil
	}
	var sd syncData
	if err := utils.ReadJsonFile(path, &sd); err != nil {
		return err
	}
	if sd.Pos != nil {
		j.Pos = sd.Pos
	}
	if sd.Evening != nil {
		j.Evening = sd.Evening
	}
	if sd.YdPos != nil {
		j.YdPos = sd.YdPos
	}
	for key, val := range sd.Vars {
		j.Vars[key] = val
	}
	return nil
}
