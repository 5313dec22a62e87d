package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day in "HH:mm" form, stored as minutes
// since midnight.
type ClockTime struct {
	Minutes int
}

const clockTimeLayout = "15:04"

// ParseClockTime parses "HH:mm". "24:00" is accepted as the end of day.
func ParseClockTime(s string) (ClockTime, error) {
	if s == "24:00" {
		return ClockTime{Minutes: 24 * 60}, nil
	}
	t, err := time.Parse(clockTimeLayout, s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: clock time %q must be HH:mm", ErrInvalidInput, s)
	}
	return ClockTime{Minutes: t.Hour()*60 + t.Minute()}, nil
}

// MustClockTime is ParseClockTime for literals.
func MustClockTime(s string) ClockTime {
	ct, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return ct
}

func (ct ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", ct.Minutes/60, ct.Minutes%60)
}

// ClockOf returns the UTC time of day of t.
func ClockOf(t time.Time) ClockTime {
	u := t.UTC()
	return ClockTime{Minutes: u.Hour()*60 + u.Minute()}
}

// On returns the instant on day's UTC date at this clock time.
func (ct ClockTime) On(day time.Time) time.Time {
	d := day.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC).
		Add(time.Duration(ct.Minutes) * time.Minute)
}

func (ct *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*ct = parsed
	return nil
}

func (ct ClockTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ct.String() + `"`), nil
}

func (ct ClockTime) Value() (driver.Value, error) {
	return ct.String(), nil
}

func (ct *ClockTime) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan type %T into ClockTime", value)
	}
	// postgres TIME comes back as HH:mm:ss
	if len(s) == 8 && s[5] == ':' {
		s = s[:5]
	}

	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*ct = parsed
	return nil
}
