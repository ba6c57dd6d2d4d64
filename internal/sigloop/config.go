package sigloop

import (
	"path/filepath"
	"time"

	"archon/internal/whale"
)

type Config struct {
	Interval       time.Duration `yaml:"interval"`
	Batch          int           `yaml:"batch"`
	SeenLimit      int           `yaml:"seen_limit"`
	MinTradeAmount float64       `yaml:"min_trade_amount"`
	Window         time.Duration `yaml:"window"`
	CountsDir      string        `yaml:"counts_dir"`
	WebSocket      bool          `yaml:"websocket"`
	WSBuffer       int           `yaml:"ws_buffer"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	// MaxFetchFailures is how many cycles a signature may fail to fetch
	// before it is skipped.
	MaxFetchFailures int `yaml:"max_fetch_failures"`
}

func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Second,
		Batch:          10,
		SeenLimit:      10_000,
		MinTradeAmount: whale.DefaultMinTradeAmount,
		Window:         120 * time.Second,
		CountsDir:      "json_data",
		WSBuffer:       256,
		ReconnectDelay: 2 * time.Second,

		MaxFetchFailures: 5,
	}
}

// CountsFile is where the per-token sea-life counts are written.
func (c Config) CountsFile(ticker string) string {
	if c.CountsDir == "" {
		return ""
	}
	return filepath.Join(c.CountsDir, ticker+"_sea_life.json")
}
