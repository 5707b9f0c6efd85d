package attendance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Clock is a time of day as an offset from midnight, truncated to seconds.
type Clock time.Duration

// ParseClock accepts "15:04:05" and "15:04". Fractional seconds from
// Postgres TIME text output are dropped.
func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return Clock(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", raw)
}

// ClockOf returns the time of day of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second)
}

func (c Clock) String() string {
	d := time.Duration(c)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Schedule is the working day used to grade check-in and check-out times.
type Schedule struct {
	CheckIn  Clock
	CheckOut Clock
}

// DefaultSchedule is 08:30 to 16:30.
var DefaultSchedule = Schedule{
	CheckIn:  Clock(8*time.Hour + 30*time.Minute),
	CheckOut: Clock(16*time.Hour + 30*time.Minute),
}

func NewSchedule(checkIn, checkOut string) (Schedule, error) {
	in, err := ParseClock(checkIn)
	if err != nil {
		return Schedule{}, fmt.Errorf("check-in: %w", err)
	}
	out, err := ParseClock(checkOut)
	if err != nil {
		return Schedule{}, fmt.Errorf("check-out: %w", err)
	}
	if out <= in {
		return Schedule{}, fmt.Errorf("check-out %s must be after check-in %s", out, in)
	}
	return Schedule{CheckIn: in, CheckOut: out}, nil
}

// CheckInStatus grades a check-in. Arriving exactly at the start is on time.
func (s Schedule) CheckInStatus(at Clock) Status {
	late := at > s.CheckIn
	return Status{
		Present:         true,
		LateIn:          late,
		OnTimeIn:        !late,
		MissingCheckout: true,
	}
}

// CheckOutStatus grades a check-out on top of the check-in flags. Leaving
// before the end of the day is early.
func (s Schedule) CheckOutStatus(prev Status, at Clock) Status {
	next := prev
	early := at < s.CheckOut
	next.Present = true
	next.MissingCheckout = false
	next.EarlyOut = early
	next.OnTimeOut = !early
	return next
}
