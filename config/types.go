package config

/*
Config
Top-level engine configuration loaded from yaml. BackTest and Optimize are
only read by their respective subcommands.
*/
type Config struct {
	Name     string   `yaml:"name" mapstructure:"name" validate:"required"`
	Debug    bool     `yaml:"debug" mapstructure:"debug"`
	LogFile  string   `yaml:"log_file" mapstructure:"log_file"`
	DataDir  string   `yaml:"data_dir" mapstructure:"data_dir"`
	BarDb    string   `yaml:"bar_db" mapstructure:"bar_db"`
	SyncDir  string   `yaml:"sync_dir" mapstructure:"sync_dir"`
	Gateways []string `yaml:"gateways" mapstructure:"gateways"`
	// StratFile is the strategy configuration JSON array path.
	StratFile string `yaml:"strat_file" mapstructure:"strat_file"`

	BarMgr   BarMgrConfig   `yaml:"bar_mgr" mapstructure:"bar_mgr"`
	BackTest BackTestConfig `yaml:"backtest" mapstructure:"backtest"`
	Optimize OptimizeConfig `yaml:"optimize" mapstructure:"optimize"`
}

type BarMgrConfig struct {
	Size         int    `yaml:"size" mapstructure:"size"`
	AlignPolicy  string `yaml:"align_policy" mapstructure:"align_policy" validate:"omitempty,oneof=sharp full"`
	WatershedMin int    `yaml:"watershed_min" mapstructure:"watershed_min"`
}

type BackTestConfig struct {
	Symbol      string  `yaml:"symbol" mapstructure:"symbol" validate:"required_with=Start"`
	Freq        string  `yaml:"freq" mapstructure:"freq"`
	Start       string  `yaml:"start" mapstructure:"start"`
	End         string  `yaml:"end" mapstructure:"end"`
	Capital     float64 `yaml:"capital" mapstructure:"capital"`
	Size        float64 `yaml:"size" mapstructure:"size"`
	PriceTick   float64 `yaml:"price_tick" mapstructure:"price_tick"`
	Rate        float64 `yaml:"rate" mapstructure:"rate"`
	Slippage    float64 `yaml:"slippage" mapstructure:"slippage"`
	Inverse     bool    `yaml:"inverse" mapstructure:"inverse"`
	PatchCancel bool    `yaml:"patch_cancel" mapstructure:"patch_cancel"`
}

type OptimizeConfig struct {
	Metric   string        `yaml:"metric" mapstructure:"metric"`
	Mode     string        `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=grid genetic random tpe cmaes bayes"`
	Rounds   int           `yaml:"rounds" mapstructure:"rounds"`
	Workers  int           `yaml:"workers" mapstructure:"workers"`
	CacheDir string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	Params   []ParamConfig `yaml:"params" mapstructure:"params"`
}

type ParamConfig struct {
	Name   string    `yaml:"name" mapstructure:"name" validate:"required"`
	Min    float64   `yaml:"min" mapstructure:"min"`
	Max    float64   `yaml:"max" mapstructure:"max"`
	Values []float64 `yaml:"values" mapstructure:"values"`
	IsInt  bool      `yaml:"is_int" mapstructure:"is_int"`
}

/*
GatewayConn
Gateway connection settings from <gateway>_connect.json.
*/
type GatewayConn struct {
	ApiKey        string   `json:"apiKey" validate:"required"`
	ApiSecret     string   `json:"apiSecret" validate:"required"`
	Passphrase    string   `json:"passphrase"`
	Symbols       []string `json:"symbols" validate:"required,min=1"`
	SessionCount  int      `json:"sessionCount" validate:"required,min=1"`
	SetQryEnabled bool     `json:"setQryEnabled"`
	SetQryFreq    int      `json:"setQryFreq"`
	Testnet       bool     `json:"testnet"`
}

/*
StratConfig
One entry of the strategy configuration array. Unknown keys land in Params
and are bound to the strategy's typed parameters at init.
*/
type StratConfig struct {
	Name       string                 `json:"name" validate:"required"`
	ClassName  string                 `json:"className" validate:"required"`
	SymbolList []string               `json:"symbolList" validate:"required,min=1"`
	Freqs      []string               `json:"freqs"`
	MailAdd    string                 `json:"mailAdd"`
	Params     map[string]interface{} `json:"-"`
}
