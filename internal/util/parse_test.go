package util

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/zfogg/petfinder/internal/errors"
)

func TestParseIntParam(t *testing.T) {
	n, err := ParseIntParam("page", "", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = ParseIntParam("page", " 3 ", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = ParseIntParam("page", "three", 1)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))
}

func TestParseFloatParam(t *testing.T) {
	f, err := ParseFloatParam("lat", "")
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = ParseFloatParam("lat", "25.03")
	require.NoError(t, err)
	assert.Equal(t, 25.03, *f)

	_, err = ParseFloatParam("lat", "north")
	assert.Error(t, err)

	for _, raw := range []string{"NaN", "nan", "Inf", "-Infinity"} {
		_, err = ParseFloatParam("radius_km", raw)
		var inv *apperrors.InvalidRequest
		require.True(t, errors.As(err, &inv), raw)
		assert.Equal(t, "radius_km", inv.Field)
	}
}

func TestParseTimeParam(t *testing.T) {
	ts, err := ParseTimeParam("from", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), *ts)

	ts, err = ParseTimeParam("from", "2026-03-10T08:30:00+08:00")
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC)))

	_, err = ParseTimeParam("from", "yesterday")
	var inv *apperrors.InvalidRequest
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "from", inv.Field)
}

func TestParseBool(t *testing.T) {
	assert.True(t, ParseBool("TRUE"))
	assert.True(t, ParseBool("1"))
	assert.False(t, ParseBool(""))
	assert.False(t, ParseBool("nope"))
}
