package chatsync

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

// Layouts used when stamping optimistic sends from the local clock.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "03:04 PM"
)

var directLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp builds the wall-clock instant of a (date, time) pair. It first
// tries a direct construction and then falls back to decomposing a 12-hour
// "hh:mm AM/PM" clock (24-hour clocks are accepted too) combined with the
// year, month and day of the date.
func ParseTimestamp(date, clock string) (time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if t, ok := parseDirect(date, clock); ok {
		return t, nil
	}
	if t, ok := parseDecomposed(date, clock); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: date=%q time=%q", ErrUnparseableTimestamp, date, clock)
}

func parseDirect(date, clock string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, clock); err == nil {
		return wallClock(t), true
	}
	if clock == "" {
		if t, err := time.Parse(time.RFC3339Nano, date); err == nil {
			return wallClock(t), true
		}
		if t, err := time.Parse(DateLayout, date); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	for _, layout := range directLayouts {
		if t, err := time.Parse(layout, date+" "+clock); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// wallClock drops the zone and keeps the sender's wall clock reading.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func parseDecomposed(date, clock string) (time.Time, bool) {
	year, month, day, ok := splitDate(date)
	if !ok {
		return time.Time{}, false
	}
	hour, minute, second, ok := splitClock(clock)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
}

// splitDate accepts YYYY-MM-DD (optionally followed by a time part) and
// M/D/YYYY.
func splitDate(s string) (year, month, day int, ok bool) {
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '/' || r == '.' })
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, false
		}
		nums[i] = n
	}

	switch {
	case len(parts[0]) == 4:
		year, month, day = nums[0], nums[1], nums[2]
	case len(parts[2]) == 4:
		month, day, year = nums[0], nums[1], nums[2]
	default:
		return 0, 0, 0, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, 0, false
	}
	// time.Date normalizes 2024-02-31 to March 2.
	if time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Day() != day {
		return 0, 0, 0, false
	}
	return year, month, day, true
}

func splitClock(s string) (hour, minute, second int, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	meridiem := ""
	for _, m := range []string{"AM", "PM"} {
		if strings.HasSuffix(s, m) {
			meridiem = m
			s = strings.TrimSpace(strings.TrimSuffix(s, m))
			break
		}
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}
		nums[i] = n
	}
	hour, minute, second = nums[0], nums[1], nums[2]

	switch meridiem {
	case "":
		if hour > 23 {
			return 0, 0, 0, false
		}
	default:
		if hour < 1 || hour > 12 {
			return 0, 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
		if meridiem == "PM" {
			hour += 12
		}
	}
	if minute > 59 || second > 59 {
		return 0, 0, 0, false
	}
	return hour, minute, second, true
}

type chronoKey struct {
	at time.Time
	ok bool
}

func keyOf(m models.MessageRecord) chronoKey {
	t, err := ParseTimestamp(m.SendDate, m.SendTime)
	return chronoKey{at: t, ok: err == nil}
}

// Messages without a usable timestamp sort after every dated message.
func compareKeys(a, b chronoKey) int {
	switch {
	case a.ok && b.ok:
		return a.at.Compare(b.at)
	case a.ok:
		return -1
	case b.ok:
		return 1
	}
	return 0
}

// CompareMessages orders two messages by their (SendDate, SendTime) key.
func CompareMessages(a, b models.MessageRecord) int {
	return compareKeys(keyOf(a), keyOf(b))
}

// SortChronological stable-sorts msgs in place by composite key.
func SortChronological(msgs []models.MessageRecord) {
	type keyed struct {
		msg models.MessageRecord
		key chronoKey
	}
	ks := make([]keyed, len(msgs))
	for i, m := range msgs {
		ks[i] = keyed{msg: m, key: keyOf(m)}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int { return compareKeys(a.key, b.key) })
	for i := range ks {
		msgs[i] = ks[i].msg
	}
}
