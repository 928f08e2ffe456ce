package config

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	KiB int64 = 1 << 10
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30
)

var sizeUnits = map[string]int64{
	"":    1,
	"B":   1,
	"KB":  1000,
	"MB":  1000 * 1000,
	"GB":  1000 * 1000 * 1000,
	"K":   KiB,
	"KIB": KiB,
	"M":   MiB,
	"MIB": MiB,
	"G":   GiB,
	"GIB": GiB,
}

// ByteSize is a byte count written as "512", "64KiB" or "1.5MB".
type ByteSize int64

// ParseByteSize accepts a number with an optional unit. KB, MB and GB are
// decimal; K/KiB, M/MiB and G/GiB are binary.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	i := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if i == -1 {
		i = len(s)
	}
	num, unit := s[:i], strings.ToUpper(strings.TrimSpace(s[i:]))

	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q in %q", unit, s)
	}

	bytes := value * float64(mult)
	if bytes < 0 || bytes > float64(1<<62) {
		return 0, fmt.Errorf("size %q out of range", s)
	}
	return ByteSize(bytes), nil
}

// String formats the size with binary units.
func (b ByteSize) String() string {
	if b < 0 {
		return "invalid"
	}
	n := int64(b)
	switch {
	case n >= GiB:
		return formatUnit(n, GiB, "GiB")
	case n >= MiB:
		return formatUnit(n, MiB, "MiB")
	case n >= KiB:
		return formatUnit(n, KiB, "KiB")
	}
	return fmt.Sprintf("%d B", n)
}

func formatUnit(n, unit int64, name string) string {
	v := float64(n) / float64(unit)
	if n%unit == 0 {
		return fmt.Sprintf("%.0f %s", v, name)
	}
	return fmt.Sprintf("%.1f %s", v, name)
}

func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(strings.ReplaceAll(b.String(), " ", "")), nil
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}
