package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/ctafram/ctago/core"
	"github.com/ctafram/ctago/errs"
)

var validate = validator.New()

/*
Load
Read and validate the yaml engine configuration. Any missing required key
or malformed value is a startup refusal.
*/
func Load(path string) (*Config, *errs.Error) {
	data, err_ := os.ReadFile(path)
	if err_ != nil {
		return nil, errs.New(core.ErrIOReadFail, err_)
	}
	var unpak map[string]interface{}
	if err_ = yaml.Unmarshal(data, &unpak); err_ != nil {
		return nil, errs.New(core.ErrBadConfig, err_)
	}
	var cfg Config
	if err_ = mapstructure.Decode(unpak, &cfg); err_ != nil {
		return nil, errs.New(core.ErrBadConfig, err_)
	}
	cfg.applyDefaults()
	if err_ = validate.Struct(&cfg); err_ != nil {
		return nil, errs.New(core.ErrBadConfig, err_)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = filepath.Join(os.TempDir(), c.Name)
	}
	if c.SyncDir == "" {
		c.SyncDir = filepath.Join(c.DataDir, "sync")
	}
	if c.BarMgr.Size == 0 {
		c.BarMgr.Size = 100
	}
	if c.BarMgr.AlignPolicy == "" {
		c.BarMgr.AlignPolicy = "sharp"
	}
	if c.BarMgr.WatershedMin == 0 {
		c.BarMgr.WatershedMin = -1
	}
	if c.BackTest.Freq == "" {
		c.BackTest.Freq = "1m"
	}
	if c.BackTest.Capital == 0 {
		c.BackTest.Capital = 1000000
	}
	if c.Optimize.Metric == "" {
		c.Optimize.Metric = "sharpe"
	}
	if c.Optimize.Mode == "" {
		c.Optimize.Mode = "grid"
	}
	if c.Optimize.Rounds == 0 {
		c.Optimize.Rounds = 60
	}
}

/*
LoadGatewayConn
Read <gateway>_connect.json from dir. Missing required keys yield
ErrBadConfig, never a partial connection.
*/
func LoadGatewayConn(dir, gateway string) (*GatewayConn, *errs.Error) {
	path := filepath.Join(dir, gateway+"_connect.json")
	data, err_ := os.ReadFile(path)
	if err_ != nil {
		return nil, errs.NewMsg(core.ErrBadConfig, "read %s: %v", path, err_)
	}
	var conn GatewayConn
	if err_ = json.Unmarshal(data, &conn); err_ != nil {
		return nil, errs.New(core.ErrBadConfig, err_)
	}
	if err_ = validate.Struct(&conn); err_ != nil {
		return nil, errs.NewMsg(core.ErrBadConfig, "%s invalid: %v", path, err_)
	}
	return &conn, nil
}

/*
LoadStrats
Read the strategy configuration array. Keys beyond the known fields are
user parameters, kept raw for DecodeParams at strategy init. Names must be
unique.
*/
func LoadStrats(path string) ([]*StratConfig, *errs.Error) {
	data, err_ := os.ReadFile(path)
	if err_ != nil {
		return nil, errs.New(core.ErrIOReadFail, err_)
	}
	var rawList []map[string]interface{}
	if err_ = json.Unmarshal(data, &rawList); err_ != nil {
		return nil, errs.New(core.ErrBadConfig, err_)
	}
	known := map[string]bool{
		"name": true, "className": true, "symbolList": true,
		"freqs": true, "mailAdd": true,
	}
	seen := make(map[string]bool)
	res := make([]*StratConfig, 0, len(rawList))
	for i, raw := range rawList {
		var sc StratConfig
		dec, err_ := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &sc,
			WeaklyTypedInput: true,
			TagName:          "json",
		})
		if err_ != nil {
			return nil, errs.New(core.ErrRunTime, err_)
		}
		if err_ = dec.Decode(raw); err_ != nil {
			return nil, errs.New(core.ErrBadConfig, err_)
		}
		if err_ := validate.Struct(&sc); err_ != nil {
			return nil, errs.NewMsg(core.ErrBadConfig, "strategy #%d invalid: %v", i, err_)
		}
		if seen[sc.Name] {
			return nil, errs.NewMsg(core.ErrBadConfig, "duplicate strategy name: %s", sc.Name)
		}
		seen[sc.Name] = true
		sc.Params = make(map[string]interface{})
		for k, v := range raw {
			if !known[k] {
				sc.Params[k] = v
			}
		}
		res = append(res, &sc)
	}
	return res, nil
}

// ConnPath returns the conventional connection file path for a gateway.
func ConnPath(dir, gateway string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_connect.json", gateway))
}
