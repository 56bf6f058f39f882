// Package units converts lengths written with a unit suffix into points,
// the native length unit of the host application, and back.
//
// Two suffixes are recognised: "mm" (millimetres) and "Q" (a typesetting
// unit equal to a quarter millimetre). Anything else is read as a bare
// number of points. Parsing is permissive on purpose: a value that is not a
// number converts to NaN instead of failing, so the host script proceeds and
// reports the problem itself.
package units

import (
	_ "embed"
	"math"
	"strconv"
	"strings"
)

const (
	// PointsPerMillimetre is the scale from millimetres to points.
	PointsPerMillimetre = 72 / 25.4

	// QuartersPerMillimetre is how many Q make one millimetre.
	QuartersPerMillimetre = 4

	// SuffixMillimetre marks a value in millimetres.
	SuffixMillimetre = "mm"

	// SuffixQ marks a value in Q.
	SuffixQ = "Q"
)

//go:embed topt.jsx
var toPtSource string

//go:embed pttomm.jsx
var ptToMmSource string

// ToPtSource returns the dialect definition of toPt(value), the in-host twin
// of ToHostUnit.
func ToPtSource() string { return toPtSource }

// PtToMmSource returns the dialect definition of ptToMm(pt), the in-host twin
// of FromHostUnit.
func PtToMmSource() string { return ptToMmSource }

// ToHostUnit converts a length such as "10mm", "40Q" or "12" into points.
func ToHostUnit(value string) float64 {
	v := strings.TrimSpace(value)
	switch {
	case strings.HasSuffix(v, SuffixMillimetre):
		return MillimetresToPoints(parseFloat(strings.TrimSuffix(v, SuffixMillimetre)))
	case strings.HasSuffix(v, SuffixQ):
		return MillimetresToPoints(parseFloat(strings.TrimSuffix(v, SuffixQ)) / QuartersPerMillimetre)
	default:
		return parseFloat(v)
	}
}

// FromHostUnit converts points into a millimetre string such as "10mm".
func FromHostUnit(pt float64) string {
	return FormatNumber(PointsToMillimetres(pt)) + SuffixMillimetre
}

// MillimetresToPoints scales millimetres to points.
func MillimetresToPoints(mm float64) float64 {
	return mm * PointsPerMillimetre
}

// PointsToMillimetres scales points to millimetres.
func PointsToMillimetres(pt float64) float64 {
	return pt * (25.4 / 72)
}

// FormatNumber renders v the way the host dialect's String(number) does:
// shortest round-trip digits, exponent notation outside [1e-6, 1e21).
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}
	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(v, 'e', -1, 64)
		// Go pads the exponent to two digits ("1e-07"); the dialect does not.
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		exp = strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + exp
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseFloat mirrors the dialect's parseFloat: leading whitespace is
// skipped, the longest numeric prefix is read, and NaN is returned when
// there is none.
func parseFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	if s == "" {
		return math.NaN()
	}

	i := 0
	if s[i] == '+' || s[i] == '-' {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return math.NaN()
	}

	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expDigits := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			expDigits++
		}
		if expDigits > 0 {
			end = j
		}
	}

	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		// Out of range values come back as ±Inf with an error; keep them.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
