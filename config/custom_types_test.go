/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTimeDurationUnmarshal(t *testing.T) {
	type holder struct {
		Value TimeDuration `json:"value" yaml:"value"`
	}

	t.Run("json, human-readable string", func(t *testing.T) {
		var h holder
		require.NoError(t, json.Unmarshal([]byte(`{"value": "1h30m"}`), &h))
		require.Equal(t, TimeDuration(time.Hour+time.Minute*30), h.Value)
	})

	t.Run("json, integer nanoseconds", func(t *testing.T) {
		var h holder
		require.NoError(t, json.Unmarshal([]byte(`{"value": 1000000000}`), &h))
		require.Equal(t, TimeDuration(time.Second), h.Value)
	})

	t.Run("json, negative integer", func(t *testing.T) {
		var h holder
		require.Error(t, json.Unmarshal([]byte(`{"value": -5}`), &h))
	})

	t.Run("yaml, human-readable string", func(t *testing.T) {
		var h holder
		require.NoError(t, yaml.Unmarshal([]byte(`value: 250ms`), &h))
		require.Equal(t, TimeDuration(time.Millisecond*250), h.Value)
	})

	t.Run("yaml, malformed", func(t *testing.T) {
		var h holder
		require.Error(t, yaml.Unmarshal([]byte(`value: abc`), &h))
	})
}

func TestByteSizeUnmarshal(t *testing.T) {
	type holder struct {
		Value ByteSize `json:"value" yaml:"value"`
	}

	t.Run("json, human-readable string", func(t *testing.T) {
		var h holder
		require.NoError(t, json.Unmarshal([]byte(`{"value": "1M"}`), &h))
		require.Equal(t, ByteSize(1024*1024), h.Value)
	})

	t.Run("yaml, integer", func(t *testing.T) {
		var h holder
		require.NoError(t, yaml.Unmarshal([]byte(`value: 4096`), &h))
		require.Equal(t, ByteSize(4096), h.Value)
	})

	t.Run("yaml, k8s suffix", func(t *testing.T) {
		var h holder
		require.NoError(t, yaml.Unmarshal([]byte(`value: 2Ki`), &h))
		require.Equal(t, ByteSize(2048), h.Value)
	})
}

func TestTimeDurationMarshal(t *testing.T) {
	d := TimeDuration(time.Minute * 90)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `"1h30m0s"`, string(b))
}
