/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes for configuration fields (e.g. log rotation max size).
// It decodes from plain integers and from human-readable strings ("64M", "2Gi").
type ByteSize uint64

func parseByteSize(s string) (ByteSize, error) {
	v := strings.TrimSpace(s)

	if num, err := strconv.ParseInt(v, 10, 64); err == nil {
		if num < 0 {
			return 0, fmt.Errorf("negative value is not allowed: %d", num)
		}
		return ByteSize(num), nil
	}

	// bytefmt knows "Ki"-less suffixes only, strip the trailing "i" of k8s power-of-two units.
	for _, k8sSuffix := range [...]string{"Ki", "Mi", "Gi", "Ti", "Pi", "Ei"} {
		if strings.HasSuffix(v, k8sSuffix) {
			v = v[:len(v)-1]
			break
		}
	}

	num, err := bytefmt.ToBytes(v)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size format (%s): %w", s, err)
	}
	return ByteSize(num), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	return b.UnmarshalText([]byte(strings.Trim(string(data), `"`)))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid byte size format: %v", value)
	}
	return b.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler,
// which is used by mapstructure.TextUnmarshallerHookFunc on the viper path.
func (b *ByteSize) UnmarshalText(text []byte) error {
	bs, err := parseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = bs
	return nil
}

// String implements fmt.Stringer.
func (b ByteSize) String() string {
	return bytefmt.ByteSize(uint64(b))
}

// TimeDuration is a duration for configuration fields (budgets, retry hints).
// It decodes from integers (nanoseconds) and from time.ParseDuration strings ("30s", "1h30m").
type TimeDuration time.Duration

func parseTimeDuration(s string) (TimeDuration, error) {
	if num, err := strconv.ParseInt(s, 10, 64); err == nil {
		if num < 0 {
			return 0, fmt.Errorf("negative value is not allowed: %d", num)
		}
		return TimeDuration(num), nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid time duration format (%s): %w", s, err)
	}
	return TimeDuration(dur), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *TimeDuration) UnmarshalJSON(data []byte) error {
	return d.UnmarshalText([]byte(strings.Trim(string(data), `"`)))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid time duration format: %v", value)
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler,
// which is used by mapstructure.TextUnmarshallerHookFunc on the viper path.
func (d *TimeDuration) UnmarshalText(text []byte) error {
	dur, err := parseTimeDuration(string(text))
	if err != nil {
		return err
	}
	*d = dur
	return nil
}

// String implements fmt.Stringer.
func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler, encoding as a human-readable string.
func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
