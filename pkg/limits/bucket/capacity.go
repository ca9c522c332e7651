package bucket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// UnlimitedMarker is the JSON and YAML spelling of an unlimited capacity.
const UnlimitedMarker = "unlimited"

// Capacity is the maximum balance of a bucket: either a finite,
// non-negative number of tokens or unlimited. The zero value is Finite(0).
type Capacity struct {
	limit     float64
	unlimited bool
}

// Finite returns a capacity of n tokens.
func Finite(n float64) Capacity {
	return Capacity{limit: n}
}

// Unlimited returns a capacity with no upper bound.
func Unlimited() Capacity {
	return Capacity{unlimited: true}
}

// IsUnlimited reports whether the capacity has no upper bound.
func (c Capacity) IsUnlimited() bool {
	return c.unlimited
}

// Limit returns the finite limit. ok is false for unlimited capacities.
func (c Capacity) Limit() (limit float64, ok bool) {
	if c.unlimited {
		return 0, false
	}
	return c.limit, true
}

// Validate checks that a finite capacity is a non-negative real number.
func (c Capacity) Validate() error {
	if c.unlimited {
		return nil
	}
	if !isValidAmount(c.limit) {
		return fmt.Errorf("%w: capacity must be a finite non-negative number, got %v", ErrInvalidArgument, c.limit)
	}
	return nil
}

// String returns "unlimited" or the formatted limit.
func (c Capacity) String() string {
	if c.unlimited {
		return UnlimitedMarker
	}
	return strconv.FormatFloat(c.limit, 'g', -1, 64)
}

// MarshalJSON encodes a finite capacity as a number and an unlimited one as
// the string "unlimited".
func (c Capacity) MarshalJSON() ([]byte, error) {
	if c.unlimited {
		return json.Marshal(UnlimitedMarker)
	}
	if math.IsNaN(c.limit) || math.IsInf(c.limit, 0) {
		return nil, fmt.Errorf("%w: capacity %v cannot be encoded", ErrInvalidArgument, c.limit)
	}
	return json.Marshal(c.limit)
}

// UnmarshalJSON accepts a JSON number or the string "unlimited".
func (c *Capacity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != UnlimitedMarker {
			return fmt.Errorf("capacity must be a number or %q, got %q", UnlimitedMarker, s)
		}
		*c = Unlimited()
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("capacity must be a number or %q: %w", UnlimitedMarker, err)
	}
	*c = Finite(n)
	return nil
}

// MarshalYAML encodes a finite capacity as a number and an unlimited one as
// the string "unlimited".
func (c Capacity) MarshalYAML() (any, error) {
	if c.unlimited {
		return UnlimitedMarker, nil
	}
	return c.limit, nil
}

// UnmarshalYAML accepts a number or the string "unlimited".
func (c *Capacity) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: capacity must be a number or %q", value.Line, UnlimitedMarker)
	}
	if value.Value == UnlimitedMarker {
		*c = Unlimited()
		return nil
	}

	var n float64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("line %d: capacity must be a number or %q", value.Line, UnlimitedMarker)
	}
	*c = Finite(n)
	return nil
}

func isValidAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
