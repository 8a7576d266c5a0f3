// Package config loads the matching engine's tunable surface from a
// viper-backed config file/environment and validates it against the
// compiled-in array capacities the core data structures are sized to.
package config

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tembolo1284/matching-engine-c-sub001/internal/matching"
)

// Config is the full tunable surface of one matchengine process. The
// capacity fields are read once at startup and asserted against the
// compiled array-size constants in package matching — they cannot grow a
// fixed-size Go array, but they can demand a build whose constants are
// large enough for the observed load; the process refuses to start
// otherwise.
type Config struct {
	Engine struct {
		MaxSymbols          int `mapstructure:"max_symbols"`
		PoolCapacity        int `mapstructure:"pool_capacity"`
		PriceLevelCapacity  int `mapstructure:"price_level_capacity"`
		OrderKeyMapCapacity int `mapstructure:"order_key_map_capacity"`
	} `mapstructure:"engine"`

	Queues struct {
		InputCapacity  int `mapstructure:"input_capacity"`
		OutputCapacity int `mapstructure:"output_capacity"`
	} `mapstructure:"queues"`

	Worker struct {
		BatchSize     int `mapstructure:"batch_size"`
		IdleThreshold int `mapstructure:"idle_threshold"`
	} `mapstructure:"worker"`

	Monitoring struct {
		PrometheusPort int    `mapstructure:"prometheus_port"`
		LogLevel       string `mapstructure:"log_level"`
	} `mapstructure:"monitoring"`

	Egress struct {
		NATSURL string `mapstructure:"nats_url"`
		Subject string `mapstructure:"subject"`
	} `mapstructure:"egress"`
}

// Load reads configPath (a directory to search for config.yaml),
// applying defaults for anything unset. Environment variables are
// consulted through viper's AutomaticEnv with the MATCHENGINE prefix, but
// only for keys the config file sets, and under the dotted key name
// (e.g. MATCHENGINE_ENGINE.MAX_SYMBOLS); no key replacer is installed and
// the defaults are not registered with viper.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/matchengine")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("MATCHENGINE")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Engine.MaxSymbols = matching.SMax
	cfg.Engine.PoolCapacity = matching.NOrders
	cfg.Engine.PriceLevelCapacity = matching.LMax
	cfg.Engine.OrderKeyMapCapacity = matching.NOrders * 2

	cfg.Queues.InputCapacity = matching.QueueCapacity
	cfg.Queues.OutputCapacity = matching.QueueCapacity

	cfg.Worker.BatchSize = matching.BatchSize
	cfg.Worker.IdleThreshold = matching.IdleThreshold

	cfg.Monitoring.PrometheusPort = 9090
	cfg.Monitoring.LogLevel = "info"

	cfg.Egress.NATSURL = "nats://127.0.0.1:4222"
	cfg.Egress.Subject = "matchengine.out"
}

// Validate asserts the loaded capacity values never exceed what the
// compiled matching package can hold. A config demanding more than the
// compiled constants allow is a build-time mismatch, not a runtime one —
// refuse to start rather than silently truncate capacity.
func Validate(cfg *Config) error {
	if cfg.Engine.MaxSymbols > matching.SMax {
		return fmt.Errorf("config: engine.max_symbols %d exceeds compiled S_MAX %d", cfg.Engine.MaxSymbols, matching.SMax)
	}
	if cfg.Engine.PoolCapacity > matching.NOrders {
		return fmt.Errorf("config: engine.pool_capacity %d exceeds compiled N_ORDERS %d", cfg.Engine.PoolCapacity, matching.NOrders)
	}
	if cfg.Engine.PriceLevelCapacity > matching.LMax {
		return fmt.Errorf("config: engine.price_level_capacity %d exceeds compiled L_MAX %d", cfg.Engine.PriceLevelCapacity, matching.LMax)
	}
	if cfg.Queues.InputCapacity&(cfg.Queues.InputCapacity-1) != 0 {
		return fmt.Errorf("config: queues.input_capacity %d is not a power of two", cfg.Queues.InputCapacity)
	}
	if cfg.Queues.OutputCapacity&(cfg.Queues.OutputCapacity-1) != 0 {
		return fmt.Errorf("config: queues.output_capacity %d is not a power of two", cfg.Queues.OutputCapacity)
	}
	return nil
}

// NewLogger builds the zap logger the rest of the process threads
// through, level-selected from Monitoring.LogLevel.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	switch cfg.Monitoring.LogLevel {
	case "debug":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
