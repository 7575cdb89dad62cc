package canonical

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Canonical timestamp layouts. The protocol emits UTC with a literal 'Z';
// minute precision is the TruthKey time_bucket form.
const (
	LayoutSecond = "2006-01-02T15:04:05Z"
	LayoutMicro  = "2006-01-02T15:04:05.000000Z"
	LayoutMinute = "2006-01-02T15:04Z"
)

// naiveRe matches a timestamp with date and time but no offset designator.
var naiveRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?$`)

// Datetime formats t as the canonical second-precision UTC timestamp.
func Datetime(t time.Time) string {
	return t.UTC().Format(LayoutSecond)
}

// DatetimeMicro formats t with full microsecond precision.
func DatetimeMicro(t time.Time) string {
	return t.UTC().Format(LayoutMicro)
}

// DatetimeMinute formats t as the minute-precision bucket form.
func DatetimeMinute(t time.Time) string {
	return t.UTC().Format(LayoutMinute)
}

// ParseDatetime parses a timestamp that MUST carry an explicit offset.
// Accepted forms: the canonical Z layouts (second, microsecond, minute
// precision) and RFC 3339 with a numeric offset. A timestamp without any
// offset is rejected with CodeNaiveDatetime so the failure is
// reproducible byte-for-byte.
func ParseDatetime(s string) (time.Time, error) {
	if naiveRe.MatchString(s) {
		return time.Time{}, newError(CodeNaiveDatetime,
			fmt.Sprintf("naive datetime not allowed: %q (explicit offset required)", s))
	}

	if strings.HasSuffix(s, "Z") {
		for _, layout := range []string{
			"2006-01-02T15:04:05Z",
			"2006-01-02T15:04:05.999999999Z",
			"2006-01-02T15:04Z",
		} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999-07:00", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, newError(CodeParse, fmt.Sprintf("cannot parse datetime: %q", s))
}

// Time is a time.Time whose JSON form is the canonical second-precision
// UTC timestamp and whose parser rejects naive inputs. Use it for every
// timestamp field that participates in a hash.
type Time struct {
	time.Time
}

// NewTime wraps t.
func NewTime(t time.Time) Time {
	return Time{Time: t.UTC()}
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + Datetime(t.Time) + `"`), nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDatetime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Time) String() string {
	return Datetime(t.Time)
}
