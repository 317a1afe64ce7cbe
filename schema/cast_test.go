package schema

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCast(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		v, err := Cast("", 42)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})
	t.Run("nil passthrough", func(t *testing.T) {
		v, err := Cast("int", nil)
		require.NoError(t, err)
		assert.Nil(t, v)
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := Cast("decimal", "1.5")
		require.ErrorContains(t, err, `unknown typecast "decimal"`)
	})
}

func TestCastInt(t *testing.T) {
	for _, v := range []any{7, int32(7), int64(7), uint64(7), 7.0, "7"} {
		got, err := Cast("int", v)
		require.NoError(t, err)
		assert.Equal(t, int64(7), got, "%T", v)
	}
	got, err := Cast("int", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
	_, err = Cast("int", []string{"7"})
	require.Error(t, err)
}

func TestCastBoolFloatString(t *testing.T) {
	v, err := Cast("bool", int64(1))
	require.NoError(t, err)
	assert.Equal(t, true, v)
	v, err = Cast("float", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	v, err = Cast("string", []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestCastUUID(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	for _, v := range []any{id, id.String(), id[:]} {
		got, err := Cast("uuid", v)
		require.NoError(t, err)
		assert.Equal(t, id.String(), got, "%T", v)
	}
	_, err := Cast("uuid", "not-a-uuid")
	require.Error(t, err)
}

func TestCastDatetime(t *testing.T) {
	now := time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC)
	v, err := Cast("datetime", now)
	require.NoError(t, err)
	assert.Equal(t, now, v)
	v, err = Cast("datetime", now.Format(time.RFC3339))
	require.NoError(t, err)
	assert.True(t, now.Equal(v.(time.Time)))
	v, err = Cast("datetime", now.Unix())
	require.NoError(t, err)
	assert.True(t, now.Equal(v.(time.Time)))
}
