package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Time is a date exchanged with the API. The server sends epoch
// milliseconds or an ISO-8601 string; both decode to the same value.
type Time struct {
	time.Time
}

func Now() Time {
	return FromMillis(time.Now().UnixMilli())
}

func FromMillis(ms int64) Time {
	return Time{time.UnixMilli(ms).UTC()}
}

func (t Time) Millis() int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, t.UnixMilli(), 10), nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] != '"' {
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			// Some serializers emit fractional epochs.
			f, ferr := strconv.ParseFloat(string(data), 64)
			if ferr != nil {
				return fmt.Errorf("date %s: %w", data, err)
			}
			ms = int64(f)
		}
		*t = FromMillis(ms)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*t = FromMillis(ms)
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("date %q: unsupported format", s)
}
