package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

var timeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// dbBool scans booleans from drivers that report them as bool, integers or text.
type dbBool bool

func (b *dbBool) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		*b = false
	case bool:
		*b = dbBool(value)
	case int64:
		*b = value != 0
	case []byte:
		return b.parse(string(value))
	case string:
		return b.parse(value)
	default:
		return fmt.Errorf("scan bool: unsupported type %T", src)
	}
	return nil
}

func (b *dbBool) parse(raw string) error {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*b = n != 0
		return nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("scan bool: %q: %w", raw, err)
	}
	*b = dbBool(parsed)
	return nil
}

// dbTime scans timestamps from drivers that report them as time.Time or text.
type dbTime time.Time

func (t *dbTime) Scan(src any) error {
	switch value := src.(type) {
	case time.Time:
		*t = dbTime(value.UTC())
	case []byte:
		return t.parse(string(value))
	case string:
		return t.parse(value)
	case int64:
		*t = dbTime(time.Unix(value, 0).UTC())
	default:
		return fmt.Errorf("scan time: unsupported type %T", src)
	}
	return nil
}

func (t *dbTime) parse(raw string) error {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = dbTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("scan time: unrecognised timestamp %q", raw)
}

func (t dbTime) Time() time.Time {
	return time.Time(t)
}
