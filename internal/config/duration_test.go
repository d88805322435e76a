package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30d", 30 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"1w2d12h", 9*24*time.Hour + 12*time.Hour},
		{"720h", 720 * time.Hour},
		{"90m", 90 * time.Minute},
		{"1.5d", 36 * time.Hour},
		{"-2d", -48 * time.Hour},
		{"0s", 0},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.Duration(), tt.in)
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "3x", "d2"} {
		_, err := ParseDuration(in)
		assert.Error(t, err, in)
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("2w")))
	assert.Equal(t, 14*24*time.Hour, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("nope")))
}

func TestDuration_String_RoundTrips(t *testing.T) {
	for _, in := range []string{"2w", "30d", "1w2d12h", "45m", "0s"} {
		d, err := ParseDuration(in)
		require.NoError(t, err)
		back, err := ParseDuration(d.String())
		require.NoError(t, err, d.String())
		assert.Equal(t, d, back, in)
	}
}

func TestDuration_String(t *testing.T) {
	d, err := ParseDuration("9d13h")
	require.NoError(t, err)
	assert.Equal(t, "1w2d13h0m0s", d.String())
}
