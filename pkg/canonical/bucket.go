package canonical

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Standard bucket durations. Other P[nD]/PT[nH][nM] combinations parse
// too; these are the ones claim types are expected to use.
const (
	BucketMinute1  = "PT1M"
	BucketMinute15 = "PT15M"
	BucketHour1    = "PT1H"
	BucketHour4    = "PT4H"
	BucketHour6    = "PT6H"
	BucketDay1     = "P1D"
	BucketDay7     = "P7D"
	BucketDay30    = "P30D"
)

// durationRe matches the supported ISO 8601 duration subset:
// P[nD][T[nH][nM]].
var durationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?)?$`)

// BucketDuration is a parsed ISO 8601 bucket duration.
type BucketDuration struct {
	Days    int
	Hours   int
	Minutes int
}

// ToDuration converts to a time.Duration.
func (d BucketDuration) ToDuration() time.Duration {
	return time.Duration(d.Days)*24*time.Hour +
		time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute
}

// ParseBucketDuration parses an ISO 8601 duration of the form
// P[nD][T[nH][nM]]. Zero durations are invalid.
func ParseBucketDuration(duration string) (BucketDuration, error) {
	m := durationRe.FindStringSubmatch(strings.ToUpper(duration))
	if m == nil {
		return BucketDuration{}, newError(CodeInvalidDuration,
			fmt.Sprintf("invalid ISO8601 duration: %q", duration))
	}
	days := atoiDefault(m[1])
	hours := atoiDefault(m[2])
	minutes := atoiDefault(m[3])
	if days == 0 && hours == 0 && minutes == 0 {
		return BucketDuration{}, newError(CodeInvalidDuration,
			fmt.Sprintf("duration must be non-zero: %q", duration))
	}
	return BucketDuration{Days: days, Hours: hours, Minutes: minutes}, nil
}

func atoiDefault(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

// Bucket truncates t to the containing bucket boundary in UTC.
//
// The operation is truncation, never rounding: 23:59:59 buckets into the
// current day. Day-and-above durations truncate to the day start;
// sub-day durations truncate the minute-of-day to a multiple of the
// bucket length.
func Bucket(t time.Time, duration string) (time.Time, error) {
	d, err := ParseBucketDuration(duration)
	if err != nil {
		return time.Time{}, err
	}
	utc := t.UTC()
	if d.Days > 0 {
		return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	total := d.Hours*60 + d.Minutes
	minuteOfDay := utc.Hour()*60 + utc.Minute()
	floored := (minuteOfDay / total) * total
	return time.Date(utc.Year(), utc.Month(), utc.Day(), floored/60, floored%60, 0, 0, time.UTC), nil
}

// BucketBounds returns the start and end of the bucket containing t.
func BucketBounds(t time.Time, duration string) (time.Time, time.Time, error) {
	d, err := ParseBucketDuration(duration)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := Bucket(t, duration)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(d.ToDuration()), nil
}

// FormatBucket formats a bucket boundary as the canonical minute-precision
// string YYYY-MM-DDTHH:MMZ.
func FormatBucket(t time.Time) string {
	return DatetimeMinute(t)
}
