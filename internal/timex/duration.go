// Package timex provides a time.Duration wrapper that config files can spell
// either as a Go duration string ("30s", "15m") or as integer nanoseconds.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from JSON and YAML.
type Duration struct {
	time.Duration
}

var errInvalidDuration = errors.New("invalid duration")

func parse(v any) (time.Duration, error) {
	switch value := v.(type) {
	case float64:
		return time.Duration(value), nil
	case int:
		return time.Duration(value), nil
	case string:
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", errInvalidDuration, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("%w: %v", errInvalidDuration, v)
	}
}

// MarshalJSON writes the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "1m30s" or 90000000000.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := parse(v)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var v any
	if err := value.Decode(&v); err != nil {
		return err
	}
	parsed, err := parse(v)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}
