package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a byte count that accepts human-readable units in config
// values ("5MB", "1.5 GB", "500KB"), so storage caps read like disk
// sizes. A bare number is taken as bytes. Units are binary (KB =
// 1024). Implements encoding.TextUnmarshaler so Viper and YAML can
// decode it directly.
type ByteSize int64

var byteUnits = map[string]int64{
	"":   1,
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

// ParseByteSize parses a human-readable byte size string.
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("parsing byte size: empty string")
	}

	i := len(trimmed)
	for i > 0 {
		c := trimmed[i-1]
		if c >= '0' && c <= '9' || c == '.' {
			break
		}
		i--
	}
	numPart := strings.TrimSpace(trimmed[:i])
	unitPart := strings.ToUpper(strings.TrimSpace(trimmed[i:]))

	mult, ok := byteUnits[unitPart]
	if !ok {
		return 0, fmt.Errorf("parsing byte size %q: unknown unit %q", s, unitPart)
	}

	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing byte size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("parsing byte size %q: negative size", s)
	}
	return ByteSize(n * float64(mult)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// String renders the size with the largest unit that keeps the value
// at or above 1, one decimal place for fractional values.
func (b ByteSize) String() string {
	n := int64(b)
	if n < 0 {
		return strconv.FormatInt(n, 10)
	}
	for _, unit := range []struct {
		suffix string
		size   int64
	}{{"TB", 1 << 40}, {"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}} {
		if n >= unit.size {
			v := float64(n) / float64(unit.size)
			if v == float64(int64(v)) {
				return fmt.Sprintf("%d%s", int64(v), unit.suffix)
			}
			return fmt.Sprintf("%.1f%s", v, unit.suffix)
		}
	}
	return fmt.Sprintf("%dB", n)
}
