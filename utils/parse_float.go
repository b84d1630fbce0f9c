package utils

import (
	"strconv"
)

// ParseFloat converts a string to a float64. An empty string parses to 0 so
// optional env values can be read without a presence check.
func ParseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}

	return value, nil
}
