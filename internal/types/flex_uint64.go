package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// FlexUint64 decodes an entity id given either as a JSON number or a numeric string
type FlexUint64 uint64

func (f *FlexUint64) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	// Try unmarshaling as a number first
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexUint64(n)
		return nil
	}

	// Try unmarshaling as a string
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		val, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("FlexUint64: invalid uint64 string %q: %w", s, err)
		}
		*f = FlexUint64(val)
		return nil
	}

	return fmt.Errorf("FlexUint64: unexpected type, expected number or string")
}

func (f FlexUint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(f))
}

func (f FlexUint64) Uint64() uint64 {
	return uint64(f)
}

// ParseID parses a path or query id value
func ParseID(s string) (uint64, error) {
	var id FlexUint64
	if err := id.UnmarshalJSON([]byte(strconv.Quote(s))); err != nil {
		return 0, NewValidationError("invalid id %q", s).Wrap(err)
	}
	if id == 0 {
		return 0, NewValidationError("invalid id %q", s)
	}
	return id.Uint64(), nil
}

// ToID extracts an entity id from a raw id value or an object carrying an "id" key.
// Values decoded from JSON arrive as float64 and are accepted when integral.
func ToID(v any) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case FlexUint64:
		return x.Uint64(), nil
	case uint:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case int:
		if x < 0 {
			return 0, fmt.Errorf("negative id %d", x)
		}
		return uint64(x), nil
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("negative id %d", x)
		}
		return uint64(x), nil
	case int32:
		if x < 0 {
			return 0, fmt.Errorf("negative id %d", x)
		}
		return uint64(x), nil
	case float64:
		// math.MaxUint64 rounds up to 2^64 as a float64
		if x < 0 || x != math.Trunc(x) || x >= math.MaxUint64 {
			return 0, fmt.Errorf("invalid id %v", x)
		}
		return uint64(x), nil
	case json.Number:
		return strconv.ParseUint(x.String(), 10, 64)
	case string:
		return strconv.ParseUint(x, 10, 64)
	case map[string]any:
		id, ok := x["id"]
		if !ok {
			return 0, fmt.Errorf("object has no id")
		}
		return ToID(id)
	}
	return 0, fmt.Errorf("unexpected id type %T", v)
}

// ToIDs extracts a list of entity ids. A nil value yields an empty list and a
// single value yields a list of one.
func ToIDs(v any) ([]uint64, error) {
	switch x := v.(type) {
	case nil:
		return []uint64{}, nil
	case []uint64:
		return append([]uint64{}, x...), nil
	case []any:
		ids := make([]uint64, 0, len(x))
		for _, item := range x {
			id, err := ToID(item)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	case []map[string]any:
		ids := make([]uint64, 0, len(x))
		for _, item := range x {
			id, err := ToID(item)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	case []int:
		ids := make([]uint64, 0, len(x))
		for _, item := range x {
			id, err := ToID(item)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
	id, err := ToID(v)
	if err != nil {
		return nil, err
	}
	return []uint64{id}, nil
}
