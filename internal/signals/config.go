package signals

import "time"

type Config struct {
	Addr          string        `yaml:"addr"`
	URL           string        `yaml:"url"`
	PriceInterval time.Duration `yaml:"price_interval"`
	TradeInterval time.Duration `yaml:"trade_interval"`
	Window        time.Duration `yaml:"window"`
	ClientTimeout time.Duration `yaml:"client_timeout"`
	Redis         RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

func DefaultConfig() Config {
	return Config{
		Addr:          "127.0.0.1:8000",
		URL:           "http://localhost:8000/data",
		PriceInterval: 10 * time.Second,
		TradeInterval: 5 * time.Second,
		Window:        15 * time.Minute,
		ClientTimeout: 5 * time.Second,
		Redis: RedisConfig{
			TTL: 30 * time.Second,
		},
	}
}
