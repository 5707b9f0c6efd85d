package attendance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock(t *testing.T, raw string) Clock {
	t.Helper()
	c, err := ParseClock(raw)
	require.NoError(t, err)
	return c
}

func TestParseClock(t *testing.T) {
	cases := map[string]string{
		"08:30":           "08:30:00",
		"08:30:15":        "08:30:15",
		" 16:05:00 ":      "16:05:00",
		"09:00:00.123456": "09:00:00",
	}
	for raw, want := range cases {
		c, err := ParseClock(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, c.String())
	}

	for _, raw := range []string{"", "8.30", "25:00", "noon"} {
		_, err := ParseClock(raw)
		assert.Error(t, err, raw)
	}
}

func TestClockJSON(t *testing.T) {
	data, err := json.Marshal(clock(t, "07:05"))
	require.NoError(t, err)
	assert.JSONEq(t, `"07:05:00"`, string(data))

	var c Clock
	require.NoError(t, json.Unmarshal([]byte(`"17:45:30"`), &c))
	assert.Equal(t, clock(t, "17:45:30"), c)
	assert.Error(t, json.Unmarshal([]byte(`"late"`), &c))
}

func TestCheckInStatus(t *testing.T) {
	s := DefaultSchedule

	onTime := s.CheckInStatus(clock(t, "08:30:00"))
	assert.True(t, onTime.OnTimeIn)
	assert.False(t, onTime.LateIn)
	assert.True(t, onTime.Present)
	assert.True(t, onTime.MissingCheckout)

	late := s.CheckInStatus(clock(t, "08:30:01"))
	assert.True(t, late.LateIn)
	assert.False(t, late.OnTimeIn)
}

func TestCheckOutStatus(t *testing.T) {
	s := DefaultSchedule
	in := s.CheckInStatus(clock(t, "09:00"))

	early := s.CheckOutStatus(in, clock(t, "16:29:59"))
	assert.True(t, early.EarlyOut)
	assert.False(t, early.OnTimeOut)
	assert.False(t, early.MissingCheckout)
	assert.True(t, early.LateIn, "check-in flags carry over")

	onTime := s.CheckOutStatus(in, clock(t, "16:30"))
	assert.True(t, onTime.OnTimeOut)
	assert.False(t, onTime.EarlyOut)

	assert.True(t, in.MissingCheckout, "grading returns a new value")
}

func TestNewSchedule(t *testing.T) {
	s, err := NewSchedule("09:00", "17:30")
	require.NoError(t, err)
	assert.Equal(t, Clock(9*time.Hour), s.CheckIn)
	assert.Equal(t, Clock(17*time.Hour+30*time.Minute), s.CheckOut)

	_, err = NewSchedule("17:00", "09:00")
	assert.Error(t, err)
	_, err = NewSchedule("nine", "17:00")
	assert.Error(t, err)
}
