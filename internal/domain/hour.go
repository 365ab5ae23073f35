package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// HourLabel identifies an hour-of-day bucket. The backend sends either a
// number (9) or a string ("09"); numeric labels are stored in canonical form
// so both spellings address the same bucket.
type HourLabel string

// Hour returns the label for an integer hour
func Hour(h int) HourLabel {
	return HourLabel(strconv.Itoa(h))
}

// ParseHourLabel canonicalises a raw label
func ParseHourLabel(raw string) HourLabel {
	raw = strings.TrimSpace(raw)
	if f, ok := parseHour(raw); ok {
		return HourLabel(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return HourLabel(raw)
}

// Numeric returns the numeric interpretation of the label
func (h HourLabel) Numeric() (float64, bool) {
	return parseHour(string(h))
}

func (h HourLabel) String() string {
	return string(h)
}

// Less orders numeric labels by value and places non-numeric labels after
// them in lexical order.
func (h HourLabel) Less(other HourLabel) bool {
	a, aok := h.Numeric()
	b, bok := other.Numeric()
	switch {
	case aok && bok:
		return a < b
	case aok != bok:
		return aok
	default:
		return h < other
	}
}

func (h *HourLabel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*h = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid hour label: %w", err)
		}
		*h = ParseHourLabel(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid hour label %s: %w", string(data), err)
	}
	*h = ParseHourLabel(n.String())
	return nil
}

func (h HourLabel) MarshalJSON() ([]byte, error) {
	if f, ok := h.Numeric(); ok {
		return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
	}
	return json.Marshal(string(h))
}

func parseHour(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f == 0 {
		// -0 and 0 are the same hour
		f = 0
	}
	return f, true
}
