package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateScanNormalisesDriverValues(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  Date
	}{
		{"time", time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), "2025-03-09"},
		{"string", "2025-03-09", "2025-03-09"},
		{"timestamp string", "2025-03-09 00:00:00+00:00", "2025-03-09"},
		{"bytes", []byte("2025-03-09T00:00:00Z"), "2025-03-09"},
		{"nil", nil, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(tc.value))
			require.Equal(t, tc.want, d)
		})
	}
}

func TestDateScanRejectsGarbage(t *testing.T) {
	var d Date
	require.Error(t, d.Scan("tomorrow"))
	require.Error(t, d.Scan(42))
}

func TestDateAddDaysCrossesMonthBoundary(t *testing.T) {
	next, err := Date("2024-02-28").AddDays(1)
	require.NoError(t, err)
	require.Equal(t, Date("2024-02-29"), next)

	next, err = Date("2024-12-31").AddDays(1)
	require.NoError(t, err)
	require.Equal(t, Date("2025-01-01"), next)
}

func TestDateValue(t *testing.T) {
	v, err := Date("").Value()
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = Date("2025-01-02").Value()
	require.NoError(t, err)
	require.Equal(t, "2025-01-02", v)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2025-07-01 ")
	require.NoError(t, err)
	require.Equal(t, Date("2025-07-01"), d)

	_, err = ParseDate("01/07/2025")
	require.Error(t, err)
}
