package prediction

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxMetric caps parsed counts. Larger inputs saturate instead of
// overflowing the reach arithmetic.
const MaxMetric = 1e12

var suffixes = []struct {
	suffix string
	mult   float64
}{
	{"K", 1e3},
	{"M", 1e6},
	{"B", 1e9},
}

// ParseMetric parses a human-readable count such as "850K", "22.1M" or
// "1,200". Unparseable input yields 0; counts above MaxMetric yield
// MaxMetric.
func ParseMetric(s string) int {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}

	mult := 1.0
	for _, sf := range suffixes {
		if strings.HasSuffix(s, sf.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, sf.suffix))
			mult = sf.mult
			break
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return clampCount(math.Round(v * mult))
}

// clampCount converts a non-negative float count to int, saturating at
// MaxMetric.
func clampCount(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= MaxMetric:
		return MaxMetric
	default:
		return int(v)
	}
}

// MetricValue reads a count from a decoded JSON value, which may be a
// number or a human-readable string.
func MetricValue(v any) int {
	switch vv := v.(type) {
	case string:
		return ParseMetric(vv)
	case float64:
		return clampCount(vv)
	case int:
		return min(max(vv, 0), MaxMetric)
	case int64:
		return int(min(max(vv, 0), MaxMetric))
	default:
		return 0
	}
}

// FormatMetric renders n with one decimal and a K, M or B suffix.
func FormatMetric(n int) string {
	switch {
	case n >= 1e9:
		return fmt.Sprintf("%.1fB", float64(n)/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return strconv.Itoa(n)
	}
}
