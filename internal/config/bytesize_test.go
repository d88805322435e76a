package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"512", 512},
		{"512B", 512},
		{"500KB", 500 * 1024},
		{"5MB", 5 * 1024 * 1024},
		{"1.5 GB", 1536 * 1024 * 1024},
		{"2TB", 2 << 40},
		{" 10 mb ", 10 * 1024 * 1024},
	}
	for _, tt := range tests {
		got, err := ParseByteSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, int64(got), tt.in)
	}
}

func TestParseByteSize_Invalid(t *testing.T) {
	for _, in := range []string{"", "GB", "-5MB", "five MB", "5XB"} {
		_, err := ParseByteSize(in)
		assert.Error(t, err, in)
	}
}

func TestByteSize_UnmarshalText(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("500KB")))
	assert.Equal(t, int64(500*1024), int64(b))
}

func TestByteSize_String(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "500KB", ByteSize(500*1024).String())
	assert.Equal(t, "1.5GB", ByteSize(1536*1024*1024).String())
	assert.Equal(t, "2TB", ByteSize(2<<40).String())
}
