package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronToOnCalendar(t *testing.T) {
	tests := []struct {
		cron string
		want string
	}{
		{cron: "0 0 * * *", want: "daily"},
		{cron: "0 * * * *", want: "hourly"},
		{cron: "0 0 1 * *", want: "monthly"},
		{cron: "@weekly", want: "weekly"},
		{cron: "0 0 * * 0", want: "Sun *-*-* 00:00:00"},
		{cron: "0 3 * * *", want: "*-*-* 03:00:00"},
		{cron: "30 2 * * *", want: "*-*-* 02:30:00"},
		{cron: "*/15 * * * *", want: "*-*-* *:0/15:00"},
		{cron: "0 */6 * * *", want: "*-*-* 0/6:00:00"},
		{cron: "0 4 * * 1-5", want: "Mon..Fri *-*-* 04:00:00"},
		{cron: "0 4 * * 1,3,5", want: "Mon,Wed,Fri *-*-* 04:00:00"},
		{cron: "15 1 1,15 * *", want: "*-*-1,15 01:15:00"},
		{cron: "0 22 * 1-3 *", want: "*-1..3-* 22:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.cron, func(t *testing.T) {
			got, err := CronToOnCalendar(context.Background(), tt.cron)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCronToOnCalendar_Rejects(t *testing.T) {
	for _, cron := range []string{
		"",
		"every night",
		"0 3 * *",
		"0 3 1 * 1",
		"0 1-10/2 * * *",
	} {
		t.Run(cron, func(t *testing.T) {
			_, err := CronToOnCalendar(context.Background(), cron)
			assert.Error(t, err)
		})
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	next, err := NextRun("0 3 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC), next)

	_, err = NextRun("nonsense", from)
	assert.Error(t, err)
}
