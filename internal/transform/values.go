package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var trueValues = map[string]bool{
	"si":   true,
	"true": true,
	"1":    true,
}

// ParseBool accepts SI, TRUE and 1 in any case as true. Everything else is false.
func ParseBool(value string) bool {
	return trueValues[Fold(value)]
}

// ParseInt reads whole numbers, also when a spreadsheet stored them as "101.0".
func ParseInt(value string) (int, error) {
	s := strings.TrimSpace(value)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("not an integer: %q", value)
	}
	return int(f), nil
}

// ParseFloat reads decimals written with either '.' or ',' as separator. Empty is 0.
func ParseFloat(value string) (float64, error) {
	s := strings.TrimSpace(value)
	if isNullValue(s) {
		return 0, nil
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", value)
	}
	return f, nil
}

// isNullValue treats the placeholders exports use for missing cells as empty.
func isNullValue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "nil", "undefined", "-", "n/a":
		return true
	}
	return false
}
