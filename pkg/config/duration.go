// pkg/config/duration.go

package config

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Duration is a time.Duration that reads "5s" style strings or a bare
// number of seconds, and writes itself back as a string.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func parseDuration(s string) (Duration, error) {
	if dur, err := time.ParseDuration(s); err == nil {
		return Duration(dur), nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return Duration(secs * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

func durationHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(Duration(0))
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != target {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return parseDuration(v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(v * float64(time.Second)), nil
		case time.Duration:
			return Duration(v), nil
		}
		return data, nil
	}
}
