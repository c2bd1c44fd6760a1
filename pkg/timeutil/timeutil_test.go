package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeToSeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "1:02:03", want: 3723},
		{in: "19:58", want: 1198},
		{in: "0:03.5", want: 3.5},
		{in: "97.25", want: 97.25},
		{in: " 5 ", want: 5},
		{in: "1:75", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1:2:3:4", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeToSeconds(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0:01:30", FormatTime(90))
	assert.Equal(t, "1:11:22", FormatTime(4282))
	assert.Equal(t, "0:00:00", FormatTime(-4))

	assert.Equal(t, "1:37.2", FormatOffset(97.22))
	assert.Equal(t, "0:00.0", FormatOffset(0))
	assert.Equal(t, "20:00.0", FormatOffset(1200))
	assert.Equal(t, "0:10.0-0:55.5", FormatWindow(10, 55.5))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	zero, err := ParseDate("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = ParseDate("03/01/2026")
	assert.Error(t, err)
}
