package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format of the summary range parameters
const DateLayout = "2006-01-02"

var ErrInvalidDateRange = errors.New("invalid date range")

// DateRange is an inclusive range of calendar dates
type DateRange struct {
	From time.Time
	To   time.Time
}

// TodayRange returns the range covering the calendar day of now
func TodayRange(now time.Time) DateRange {
	day := startOfDay(now)
	return DateRange{From: day, To: day}
}

// ParseDateRange parses YYYY-MM-DD bounds. An empty bound defaults to the
// calendar day of now, matching the dashboard's initial view.
func ParseDateRange(from, to string, now time.Time) (DateRange, error) {
	today := startOfDay(now)
	r := DateRange{From: today, To: today}

	if from != "" {
		t, err := time.ParseInLocation(DateLayout, from, now.Location())
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: from %q: %v", ErrInvalidDateRange, from, err)
		}
		r.From = t
	}
	if to != "" {
		t, err := time.ParseInLocation(DateLayout, to, now.Location())
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: to %q: %v", ErrInvalidDateRange, to, err)
		}
		r.To = t
	}

	if r.To.Before(r.From) {
		return DateRange{}, fmt.Errorf("%w: from %s is after to %s", ErrInvalidDateRange, r.FromString(), r.ToString())
	}
	return r, nil
}

func (r DateRange) FromString() string {
	return r.From.Format(DateLayout)
}

func (r DateRange) ToString() string {
	return r.To.Format(DateLayout)
}

func (r DateRange) String() string {
	return r.FromString() + ".." + r.ToString()
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"from": r.FromString(),
		"to":   r.ToString(),
	})
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
