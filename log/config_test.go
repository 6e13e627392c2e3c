/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-shedkit/config"
)

func loadLogConfigFromYAML(t *testing.T, yamlData string) (*Config, error) {
	t.Helper()
	cfg := NewConfig()
	err := config.NewDefaultLoader("").LoadFromReader(bytes.NewReader([]byte(yamlData)), config.DataTypeYAML, cfg)
	return cfg, err
}

func TestConfigSet(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadLogConfigFromYAML(t, "log: {}")
		require.NoError(t, err)
		require.Equal(t, LevelInfo, cfg.Level)
		require.Equal(t, FormatJSON, cfg.Format)
		require.Equal(t, OutputStdout, cfg.Output)
		require.Equal(t, config.ByteSize(DefaultFileRotationMaxSizeBytes), cfg.File.Rotation.MaxSize)
		require.Equal(t, DefaultFileRotationMaxBackups, cfg.File.Rotation.MaxBackups)
	})

	t.Run("full config", func(t *testing.T) {
		yamlData := `
log:
  level: warn
  format: text
  output: file
  nocolor: true
  addCaller: true
  file:
    path: /var/log/svc.log
    rotation:
      compress: true
      maxSize: 100M
      maxBackups: 5
      maxAgeDays: 7
`
		cfg, err := loadLogConfigFromYAML(t, yamlData)
		require.NoError(t, err)
		require.Equal(t, LevelWarn, cfg.Level)
		require.Equal(t, FormatText, cfg.Format)
		require.Equal(t, OutputFile, cfg.Output)
		require.True(t, cfg.NoColor)
		require.True(t, cfg.AddCaller)
		require.Equal(t, "/var/log/svc.log", cfg.File.Path)
		require.True(t, cfg.File.Rotation.Compress)
		require.Equal(t, config.ByteSize(100*1024*1024), cfg.File.Rotation.MaxSize)
		require.Equal(t, 5, cfg.File.Rotation.MaxBackups)
		require.Equal(t, 7, cfg.File.Rotation.MaxAgeDays)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := loadLogConfigFromYAML(t, "log:\n  level: verbose")
		require.ErrorContains(t, err, "log.level")
	})

	t.Run("file output without path", func(t *testing.T) {
		_, err := loadLogConfigFromYAML(t, "log:\n  output: file")
		require.ErrorContains(t, err, "log.file.path")
	})

	t.Run("rotation max size too small", func(t *testing.T) {
		yamlData := `
log:
  file:
    rotation:
      maxSize: 1K
`
		_, err := loadLogConfigFromYAML(t, yamlData)
		require.ErrorContains(t, err, "log.file.rotation.maxSize")
	})
}

func TestNewLogger(t *testing.T) {
	logger, closeFn := NewLogger(NewDefaultConfig())
	require.NotNil(t, logger)
	closeFn()
}
