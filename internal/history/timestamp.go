package history

import (
	"strconv"
	"time"

	"channel-history/internal/domain"
)

// The history API expects "seconds.micros"; the fractional part is fixed.
const timestampSuffix = ".123456"

func slackTimestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + timestampSuffix
}

// dayWindow returns the oldest and latest timestamps covering day in UTC,
// from 00:00 to 23:59
func dayWindow(day time.Time) (string, string) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(23*time.Hour + 59*time.Minute)
	return slackTimestamp(start), slackTimestamp(end)
}

// historyParams builds the channels.history parameters for q
func historyParams(q domain.Query) map[string]string {
	params := map[string]string{
		"channel": q.ChannelID,
		"count":   strconv.Itoa(q.EffectiveCount()),
	}
	if q.Day != nil {
		params["oldest"], params["latest"] = dayWindow(*q.Day)
	}
	return params
}
