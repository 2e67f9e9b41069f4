package load

import (
	"time"

	"sparkify/internal/warehouse"
)

// startTime converts an epoch-milliseconds event timestamp to UTC,
// truncated to whole seconds to match the SQL-side <ts> / 1000 conversion
// used when projecting facts.
func startTime(ms int64) time.Time {
	return time.Unix(ms/1000, 0).UTC()
}

// timeRow builds one time-dimension row, ordered as schema.Time declares
// its columns: start_time, hour, day, week, month, year, weekday. Week is
// the ISO week number; weekday is the English day name.
func timeRow(d warehouse.Dialect, ms int64) []any {
	t := startTime(ms)
	_, week := t.ISOWeek()
	return []any{
		d.TimestampValue(t),
		t.Hour(),
		t.Day(),
		week,
		int(t.Month()),
		t.Year(),
		t.Weekday().String(),
	}
}
