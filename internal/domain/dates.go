package domain

import (
	"fmt"
	"time"
)

const packDateLayout = "2006-01-02"

// PackDate identifies a daily pack by calendar day (YYYY-MM-DD).
type PackDate string

// ParsePackDate validates and normalizes a YYYY-MM-DD string.
func ParsePackDate(raw string) (PackDate, error) {
	t, err := time.Parse(packDateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, use YYYY-MM-DD: %w", raw, ErrInvalidSubmission)
	}
	return PackDate(t.Format(packDateLayout)), nil
}

// DateOf returns the calendar day of t in loc.
func DateOf(t time.Time, loc *time.Location) PackDate {
	if loc == nil {
		loc = time.UTC
	}
	return PackDate(t.In(loc).Format(packDateLayout))
}

// Time returns midnight UTC of the day.
func (d PackDate) Time() time.Time {
	t, _ := time.Parse(packDateLayout, string(d))
	return t
}

// AddDays returns the day n days after d (n may be negative).
func (d PackDate) AddDays(n int) PackDate {
	return PackDate(d.Time().AddDate(0, 0, n).Format(packDateLayout))
}

// Seed derives a deterministic number from the date, e.g. 20240115.
func (d PackDate) Seed() int64 {
	t := d.Time()
	return int64(t.Year()*10000 + int(t.Month())*100 + t.Day())
}

func (d PackDate) String() string {
	return string(d)
}

// Before reports whether d is an earlier day than other.
func (d PackDate) Before(other PackDate) bool {
	return d < other
}
