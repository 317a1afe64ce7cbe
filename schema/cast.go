package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// CastFunc converts an entity field value into its column
// representation before it is bound to a statement.
type CastFunc func(any) (any, error)

// builtin typecasts, addressable by Column.Cast.
var casts = map[string]CastFunc{
	"int":      castInt,
	"float":    castFloat,
	"bool":     castBool,
	"string":   castString,
	"uuid":     castUUID,
	"datetime": castDatetime,
}

// Cast applies the named typecast to the value. An empty name is the
// identity cast. Nil values pass through untouched so nullable columns
// stay NULL.
func Cast(name string, v any) (any, error) {
	if name == "" || v == nil {
		return v, nil
	}
	fn, ok := casts[name]
	if !ok {
		return nil, fmt.Errorf("schema: unknown typecast %q", name)
	}
	return fn(v)
}

func castInt(v any) (any, error) {
	switch v := v.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("schema: cannot cast %T to int", v)
	}
}

func castFloat(v any) (any, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return nil, fmt.Errorf("schema: cannot cast %T to float", v)
	}
}

func castBool(v any) (any, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return nil, fmt.Errorf("schema: cannot cast %T to bool", v)
	}
}

func castString(v any) (any, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// castUUID normalizes UUID values to their canonical string form,
// which every supported dialect can store.
func castUUID(v any) (any, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return v.String(), nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("schema: cast uuid: %w", err)
		}
		return id.String(), nil
	case []byte:
		id, err := uuid.FromBytes(v)
		if err != nil {
			return nil, fmt.Errorf("schema: cast uuid: %w", err)
		}
		return id.String(), nil
	default:
		return nil, fmt.Errorf("schema: cannot cast %T to uuid", v)
	}
}

func castDatetime(v any) (any, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("schema: cast datetime: %w", err)
		}
		return t, nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return nil, fmt.Errorf("schema: cannot cast %T to datetime", v)
	}
}
