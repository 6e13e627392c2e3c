/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"io"
)

// Loader reads configuration data into a DataProvider and populates
// configuration objects from it, applying their defaults first.
type Loader struct {
	DataProvider DataProvider
}

// NewLoader creates a new configurations' loader.
func NewLoader(dp DataProvider) *Loader {
	return &Loader{dp}
}

// NewDefaultLoader creates a viper-backed loader that also reads values
// from environment variables with the given prefix.
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	va.UseEnvVars(envVarsPrefix)
	return NewLoader(va)
}

// LoadFromFile loads configuration values from file and sets them in configuration objects.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromFile(path, dataType); err != nil {
		return err
	}
	return l.populate(append([]Config{cfg}, cfgs...))
}

// LoadFromReader loads configuration values from reader and sets them in configuration objects.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromReader(reader, dataType); err != nil {
		return err
	}
	return l.populate(append([]Config{cfg}, cfgs...))
}

// populate applies defaults and then set values for each config against a data
// provider scoped to the config's own key prefix, so "admission.capacity" and
// "log.level" never see each other's keys.
func (l *Loader) populate(cfgs []Config) error {
	for _, cfg := range cfgs {
		dp := l.DataProvider
		if kpHolder, ok := cfg.(KeyPrefixProvider); ok && kpHolder.KeyPrefix() != "" {
			dp = NewKeyPrefixedDataProvider(l.DataProvider, kpHolder.KeyPrefix())
		}
		cfg.SetProviderDefaults(dp)
		if err := cfg.Set(dp); err != nil {
			return err
		}
	}
	return nil
}
