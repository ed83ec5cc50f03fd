package cell

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Int32 returns the current value. It is Get under the name used by the
// other numeric conversions.
func (c *Int32) Int32() int32 { return c.Get() }

func (c *Int32) Int64() int64 { return int64(c.Get()) }

func (c *Int32) Float32() float32 { return float32(c.Get()) }

func (c *Int32) Float64() float64 { return float64(c.Get()) }

// String returns the decimal form of the current value.
func (c *Int32) String() string {
	return strconv.FormatInt(int64(c.Get()), 10)
}

// MarshalText implements encoding.TextMarshaler.
func (c *Int32) MarshalText() ([]byte, error) {
	return strconv.AppendInt(nil, int64(c.Get()), 10), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Int32) UnmarshalText(b []byte) error {
	v, err := strconv.ParseInt(string(b), 10, 32)
	if err != nil {
		return fmt.Errorf("cannot parse %q as int32 cell value: %w", b, err)
	}
	c.Set(int32(v))
	return nil
}

// MarshalJSON implements json.Marshaler. The cell is encoded as a bare
// JSON number.
func (c *Int32) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Get())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Int32) UnmarshalJSON(b []byte) error {
	var v int32
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	c.Set(v)
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface.
func (c *Int32) MarshalYAML() (interface{}, error) {
	return c.Get(), nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (c *Int32) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v int32
	if err := unmarshal(&v); err != nil {
		return err
	}
	c.Set(v)
	return nil
}
