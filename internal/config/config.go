// Package config assembles every component's settings from one YAML file,
// a .env file and a few environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"archon/internal/chain"
	"archon/internal/market"
	"archon/internal/sigloop"
	"archon/internal/signals"
	"archon/internal/store"
	"archon/internal/trader"
)

const DefaultPath = "archon.yaml"

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Config struct {
	TargetPath  string         `yaml:"target_path"`
	MetricsAddr string         `yaml:"metrics_addr"`
	Log         Log            `yaml:"log"`
	Chain       chain.Config   `yaml:"chain"`
	Store       store.Config   `yaml:"store"`
	Market      market.Config  `yaml:"market"`
	Signals     signals.Config `yaml:"signals"`
	Sigloop     sigloop.Config `yaml:"sigloop"`
	Trader      trader.Config  `yaml:"trader"`
}

func Default() Config {
	return Config{
		TargetPath: "target_constants.json",
		Log:        Log{Level: "info", Pretty: true},
		Chain:      chain.DefaultConfig(),
		Store:      store.DefaultConfig(),
		Market:     market.DefaultConfig(),
		Signals:    signals.DefaultConfig(),
		Sigloop:    sigloop.DefaultConfig(),
		Trader:     trader.DefaultConfig(),
	}
}

// Load reads .env, then the YAML file at path over the defaults, then the
// environment overrides. A missing .env or YAML file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"ARCHON_DB_DSN", &c.Store.DSN},
		{"ARCHON_RPC_ENDPOINT", &c.Chain.Endpoint},
		{"ARCHON_WS_ENDPOINT", &c.Chain.WSEndpoint},
		{"ARCHON_WALLET", &c.Trader.WalletPath},
		{"ARCHON_REDIS_ADDR", &c.Signals.Redis.Addr},
		{"ARCHON_REDIS_PASSWORD", &c.Signals.Redis.Password},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.dst = v
		}
	}
}
