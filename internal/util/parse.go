package util

import (
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/zfogg/petfinder/internal/errors"
)

// ParseIntParam parses an integer query parameter. Empty input yields
// defaultValue; malformed input is an invalid request.
func ParseIntParam(field, s string, defaultValue int) (int, error) {
	if s == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, apperrors.NewInvalidRequest(field, "must be an integer")
	}
	return val, nil
}

// ParseFloatParam parses a finite float query parameter. Empty input yields nil.
func ParseFloatParam(field, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return nil, apperrors.NewInvalidRequest(field, "must be a number")
	}
	return &val, nil
}

// ParseBool reports whether s is a truthy flag value
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// ParseTimeParam accepts RFC3339 timestamps or plain dates. Empty input
// yields nil.
func ParseTimeParam(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.NewInvalidRequest(field, "must be an RFC3339 timestamp or YYYY-MM-DD date")
}
