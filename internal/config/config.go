// Package config loads and validates the engine configuration.
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// DemoMode runs the engine against the simulated backend instead of the
	// remote proving service.
	DemoMode bool `mapstructure:"demo_mode"`

	ListenAddr string `mapstructure:"listen_addr"`

	// ChainsFile optionally overrides the built-in chain catalogue.
	ChainsFile string `mapstructure:"chains_file"`

	ProverURL    string `mapstructure:"prover_url"`
	ProverAPIKey string `mapstructure:"prover_api_key"`

	// ProverSourceChain/ProverTargetChain identify the chain pair proofs are
	// registered under in live mode.
	ProverSourceChain string `mapstructure:"prover_source_chain"`
	ProverTargetChain string `mapstructure:"prover_target_chain"`

	// DemoAccount is the wallet seeded into the in-memory provider at startup.
	DemoAccount string `mapstructure:"demo_account"`
	DemoBalance string `mapstructure:"demo_balance"`
	DemoChain   string `mapstructure:"demo_chain"`

	PollInterval time.Duration `mapstructure:"poll_interval"`
	GraceBuffer  time.Duration `mapstructure:"grace_buffer"`
	StoreCap     int           `mapstructure:"store_cap"`

	LogFile      string `mapstructure:"log_file"`
	DebugLogging bool   `mapstructure:"debug_logging"`
}

const (
	DefaultListenAddr   = ":8085"
	DefaultPollInterval = 30 * time.Second
	DefaultGraceBuffer  = 2 * time.Minute
	DefaultStoreCap     = 50
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"demo_mode":           true,
		"listen_addr":         DefaultListenAddr,
		"poll_interval":       DefaultPollInterval.String(),
		"grace_buffer":        DefaultGraceBuffer.String(),
		"store_cap":           DefaultStoreCap,
		"log_file":            "logs/bridged.log",
		"demo_account":        "0xA11ce00000000000000000000000000000000001",
		"demo_balance":        "10",
		"demo_chain":          "sepolia",
		"prover_source_chain": "sepolia",
		"prover_target_chain": "optimism-sepolia",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("BRIDGEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validate(&cfg)
}

func validate(cfg *Config) error {
	if cfg.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("invalid poll_interval")
	}
	if cfg.GraceBuffer <= 0 {
		return errors.New("invalid grace_buffer")
	}
	if cfg.StoreCap <= 0 {
		return errors.New("invalid store_cap")
	}
	if !cfg.DemoMode {
		if cfg.ProverURL == "" {
			return errors.New("prover_url is required outside demo mode")
		}
		parsed, err := url.Parse(cfg.ProverURL)
		if err != nil || !strings.HasPrefix(parsed.Scheme, "http") {
			return errors.New("invalid prover_url")
		}
	}
	return nil
}
