package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/stakeops/rebalancer/core/types"
	"github.com/stakeops/rebalancer/utils"
)

// Config holds all configuration for the rebalancer.
type Config struct {
	// General configuration
	General struct {
		// DataDir is the directory for keys, logs and run history
		DataDir string
		// LogLevel defines the logging verbosity
		LogLevel string
		// LogDir is the directory for log files; empty logs to stderr only
		LogDir string
	}

	// Ledger client configuration
	Ledger struct {
		// RPCEndpoint is the HTTP endpoint of the ledger RPC service
		RPCEndpoint string
		// RequestTimeout bounds a single RPC request
		RequestTimeout time.Duration
		// ReserveAccount is the base58 address of the reserve stake account
		ReserveAccount string
	}

	// Policy is the static eligibility and allocation policy
	Policy struct {
		// MaxCommission is the highest acceptable commission percentage
		MaxCommission uint8
		// MinSelfStake is the minimum self stake in base units
		MinSelfStake uint64
		// MinVersion is the oldest acceptable software version; empty disables
		MinVersion string
		// Blacklist is the list of base58 identity keys never delegated to
		Blacklist []string
		// MaxConcentration is the largest budget fraction per validator
		MaxConcentration float64
		// MinStakeChange is the smallest stake delta worth acting on
		MinStakeChange uint64
		// Budget is the default total stake budget for a run
		Budget uint64
	}

	// Executor configuration
	Executor struct {
		// MaxAttempts bounds submission retries per operation
		MaxAttempts int
		// RetryBackoff is the delay between submission attempts
		RetryBackoff time.Duration
		// ConfirmTimeout bounds confirmation polling per transaction
		ConfirmTimeout time.Duration
		// PollInterval is the delay between confirmation polls
		PollInterval time.Duration
		// MaxOpsPerTransaction caps how many independent operations are
		// batched into one transaction
		MaxOpsPerTransaction int
		// RunTimeout bounds the whole execution phase
		RunTimeout time.Duration
	}
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.General.DataDir = "./data"
	cfg.General.LogLevel = "info"

	cfg.Ledger.RPCEndpoint = "http://127.0.0.1:8899"
	cfg.Ledger.RequestTimeout = 30 * time.Second

	cfg.Policy.MaxCommission = 10
	cfg.Policy.MinSelfStake = 100 * utils.AmountPerUnit
	cfg.Policy.MaxConcentration = 0.05
	cfg.Policy.MinStakeChange = utils.AmountPerUnit

	cfg.Executor.MaxAttempts = 3
	cfg.Executor.RetryBackoff = 2 * time.Second
	cfg.Executor.ConfirmTimeout = 90 * time.Second
	cfg.Executor.PollInterval = 3 * time.Second
	cfg.Executor.MaxOpsPerTransaction = 8
	cfg.Executor.RunTimeout = 20 * time.Minute

	return cfg
}

// LoadConfig loads configuration from the specified file and environment
// variables.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	config := DefaultConfig()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.stake-rebalancer")
		v.AddConfigPath("/etc/stake-rebalancer")

		if err := v.ReadInConfig(); err != nil {
			// It's okay if config doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("REBALANCER")
	v.AutomaticEnv()

	// Map general config
	if v.IsSet("general.dataDir") {
		config.General.DataDir = v.GetString("general.dataDir")
	}
	if v.IsSet("general.logLevel") {
		config.General.LogLevel = v.GetString("general.logLevel")
	}
	if v.IsSet("general.logDir") {
		config.General.LogDir = v.GetString("general.logDir")
	}

	// Map ledger config
	if v.IsSet("ledger.rpcEndpoint") {
		config.Ledger.RPCEndpoint = v.GetString("ledger.rpcEndpoint")
	}
	if v.IsSet("ledger.requestTimeout") {
		config.Ledger.RequestTimeout = v.GetDuration("ledger.requestTimeout")
	}
	if v.IsSet("ledger.reserveAccount") {
		config.Ledger.ReserveAccount = v.GetString("ledger.reserveAccount")
	}

	// Map policy config
	if v.IsSet("policy.maxCommission") {
		config.Policy.MaxCommission = uint8(v.GetInt("policy.maxCommission"))
	}
	if v.IsSet("policy.minSelfStake") {
		config.Policy.MinSelfStake = v.GetUint64("policy.minSelfStake")
	}
	if v.IsSet("policy.minVersion") {
		config.Policy.MinVersion = v.GetString("policy.minVersion")
	}
	if v.IsSet("policy.blacklist") {
		config.Policy.Blacklist = v.GetStringSlice("policy.blacklist")
	}
	if v.IsSet("policy.maxConcentration") {
		config.Policy.MaxConcentration = v.GetFloat64("policy.maxConcentration")
	}
	if v.IsSet("policy.minStakeChange") {
		config.Policy.MinStakeChange = v.GetUint64("policy.minStakeChange")
	}
	if v.IsSet("policy.budget") {
		config.Policy.Budget = v.GetUint64("policy.budget")
	}

	// Map executor config
	if v.IsSet("executor.maxAttempts") {
		config.Executor.MaxAttempts = v.GetInt("executor.maxAttempts")
	}
	if v.IsSet("executor.retryBackoff") {
		config.Executor.RetryBackoff = v.GetDuration("executor.retryBackoff")
	}
	if v.IsSet("executor.confirmTimeout") {
		config.Executor.ConfirmTimeout = v.GetDuration("executor.confirmTimeout")
	}
	if v.IsSet("executor.pollInterval") {
		config.Executor.PollInterval = v.GetDuration("executor.pollInterval")
	}
	if v.IsSet("executor.maxOpsPerTransaction") {
		config.Executor.MaxOpsPerTransaction = v.GetInt("executor.maxOpsPerTransaction")
	}
	if v.IsSet("executor.runTimeout") {
		config.Executor.RunTimeout = v.GetDuration("executor.runTimeout")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(config.General.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return config, nil
}

// validate rejects configurations the core cannot run against.
func (c *Config) validate() error {
	if c.Policy.MaxCommission > 100 {
		return fmt.Errorf("policy.maxCommission must be 0-100, got %d", c.Policy.MaxCommission)
	}
	if c.Policy.MaxConcentration <= 0 || c.Policy.MaxConcentration > 1 {
		return fmt.Errorf("policy.maxConcentration must be in (0, 1], got %v", c.Policy.MaxConcentration)
	}
	if c.Policy.MinVersion != "" {
		if _, err := utils.ParseVersion(c.Policy.MinVersion); err != nil {
			return fmt.Errorf("policy.minVersion: %w", err)
		}
	}
	if c.Executor.MaxAttempts < 1 {
		return fmt.Errorf("executor.maxAttempts must be at least 1, got %d", c.Executor.MaxAttempts)
	}
	if c.Executor.MaxOpsPerTransaction < 1 {
		return fmt.Errorf("executor.maxOpsPerTransaction must be at least 1, got %d", c.Executor.MaxOpsPerTransaction)
	}
	return nil
}

// BuildPolicy converts the raw policy section into the typed immutable
// Policy value handed to the core.
func (c *Config) BuildPolicy() (types.Policy, error) {
	policy := types.Policy{
		MaxCommission:    c.Policy.MaxCommission,
		MinSelfStake:     c.Policy.MinSelfStake,
		MinVersion:       c.Policy.MinVersion,
		MaxConcentration: c.Policy.MaxConcentration,
		MinStakeChange:   c.Policy.MinStakeChange,
		Blacklist:        make(map[types.Pubkey]struct{}, len(c.Policy.Blacklist)),
	}
	for _, entry := range c.Policy.Blacklist {
		pk, err := types.ParsePubkey(entry)
		if err != nil {
			return types.Policy{}, fmt.Errorf("policy.blacklist: %w", err)
		}
		policy.Blacklist[pk] = struct{}{}
	}
	return policy, nil
}

// ReserveAccount parses the configured reserve stake account address.
func (c *Config) ReserveAccount() (types.Pubkey, error) {
	if c.Ledger.ReserveAccount == "" {
		return types.Pubkey{}, fmt.Errorf("ledger.reserveAccount is not configured")
	}
	pk, err := types.ParsePubkey(c.Ledger.ReserveAccount)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("ledger.reserveAccount: %w", err)
	}
	return pk, nil
}

// SaveConfig writes the configuration to the specified file.
func SaveConfig(config *Config, configFile string) error {
	v := viper.New()

	v.Set("general.dataDir", config.General.DataDir)
	v.Set("general.logLevel", config.General.LogLevel)
	v.Set("general.logDir", config.General.LogDir)

	v.Set("ledger.rpcEndpoint", config.Ledger.RPCEndpoint)
	v.Set("ledger.requestTimeout", config.Ledger.RequestTimeout)
	v.Set("ledger.reserveAccount", config.Ledger.ReserveAccount)

	v.Set("policy.maxCommission", config.Policy.MaxCommission)
	v.Set("policy.minSelfStake", config.Policy.MinSelfStake)
	v.Set("policy.minVersion", config.Policy.MinVersion)
	v.Set("policy.blacklist", config.Policy.Blacklist)
	v.Set("policy.maxConcentration", config.Policy.MaxConcentration)
	v.Set("policy.minStakeChange", config.Policy.MinStakeChange)
	v.Set("policy.budget", config.Policy.Budget)

	v.Set("executor.maxAttempts", config.Executor.MaxAttempts)
	v.Set("executor.retryBackoff", config.Executor.RetryBackoff)
	v.Set("executor.confirmTimeout", config.Executor.ConfirmTimeout)
	v.Set("executor.pollInterval", config.Executor.PollInterval)
	v.Set("executor.maxOpsPerTransaction", config.Executor.MaxOpsPerTransaction)
	v.Set("executor.runTimeout", config.Executor.RunTimeout)

	dir := filepath.Dir(configFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for config file: %w", err)
	}

	v.SetConfigFile(configFile)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfigFile returns the default config file location.
func DefaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".stake-rebalancer", "config.yaml")
}
