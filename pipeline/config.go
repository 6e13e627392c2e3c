/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package pipeline

import (
	"fmt"
	"time"

	"github.com/acronis/go-shedkit/config"
)

const cfgDefaultKeyPrefix = "admission"

const (
	cfgKeyCapacity       = "capacity"
	cfgKeyDefaultBudget  = "defaultBudget"
	cfgKeyRetryAfterHint = "retryAfterHint"
)

// Default values.
const (
	DefaultCapacity       = 5000
	DefaultBudget         = time.Second * 30
	DefaultRetryAfterHint = time.Second
)

// Config represents a set of configuration parameters for Pipeline.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// Capacity is the maximum number of concurrently admitted requests. Must be positive.
	Capacity int `mapstructure:"capacity" yaml:"capacity" json:"capacity"`

	// DefaultBudget is the per-request time budget used when the caller does not supply one.
	// Must be positive.
	DefaultBudget config.TimeDuration `mapstructure:"defaultBudget" yaml:"defaultBudget" json:"defaultBudget"`

	// RetryAfterHint is the fixed retry hint returned with rejected outcomes. Must be positive.
	RetryAfterHint config.TimeDuration `mapstructure:"retryAfterHint" yaml:"retryAfterHint" json:"retryAfterHint"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{
		keyPrefix:      opts.keyPrefix,
		Capacity:       DefaultCapacity,
		DefaultBudget:  config.TimeDuration(DefaultBudget),
		RetryAfterHint: config.TimeDuration(DefaultRetryAfterHint),
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for Pipeline in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyCapacity, DefaultCapacity)
	dp.SetDefault(cfgKeyDefaultBudget, DefaultBudget.String())
	dp.SetDefault(cfgKeyRetryAfterHint, DefaultRetryAfterHint.String())
}

// Set sets Pipeline configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Capacity, err = dp.GetInt(cfgKeyCapacity); err != nil {
		return err
	}
	if c.Capacity <= 0 {
		return dp.WrapKeyErr(cfgKeyCapacity, fmt.Errorf("should be positive, got %d", c.Capacity))
	}

	var budget time.Duration
	if budget, err = dp.GetDuration(cfgKeyDefaultBudget); err != nil {
		return err
	}
	if budget <= 0 {
		return dp.WrapKeyErr(cfgKeyDefaultBudget, fmt.Errorf("should be positive, got %s", budget))
	}
	c.DefaultBudget = config.TimeDuration(budget)

	var retryAfter time.Duration
	if retryAfter, err = dp.GetDuration(cfgKeyRetryAfterHint); err != nil {
		return err
	}
	if retryAfter <= 0 {
		return dp.WrapKeyErr(cfgKeyRetryAfterHint, fmt.Errorf("should be positive, got %s", retryAfter))
	}
	c.RetryAfterHint = config.TimeDuration(retryAfter)

	return nil
}

// Validate checks that all configuration values are valid.
// It is called by pipeline.New, so services constructing Config directly
// (not via config.Loader) fail at startup, before accepting traffic.
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity should be positive, got %d", c.Capacity)
	}
	if c.DefaultBudget <= 0 {
		return fmt.Errorf("default budget should be positive, got %s", time.Duration(c.DefaultBudget))
	}
	if c.RetryAfterHint <= 0 {
		return fmt.Errorf("retry-after hint should be positive, got %s", time.Duration(c.RetryAfterHint))
	}
	return nil
}
