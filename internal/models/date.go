package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, stored in DATE columns.
// Drivers hand dates back as time.Time, string or []byte depending on the
// dialect; Scan normalises all of them to YYYY-MM-DD.
type Date string

// NewDate formats t as a Date in t's own location.
func NewDate(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates s as YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

// Time returns the date at midnight UTC.
func (d Date) Time() (time.Time, error) {
	return time.Parse(DateLayout, string(d))
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) (Date, error) {
	t, err := d.Time()
	if err != nil {
		return "", err
	}
	return NewDate(t.AddDate(0, 0, n)), nil
}

func (d Date) String() string {
	return string(d)
}

// Scan implements sql.Scanner.
func (d *Date) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = NewDate(v)
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("models.Date: unsupported scan type %T", value)
	}
	return nil
}

func (d *Date) scanString(s string) error {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return fmt.Errorf("models.Date: cannot parse %q", s)
	}
	parsed, err := ParseDate(s[:len(DateLayout)])
	if err != nil {
		return fmt.Errorf("models.Date: %w", err)
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d == "" {
		return nil, nil
	}
	return string(d), nil
}
