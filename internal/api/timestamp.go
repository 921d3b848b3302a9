package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Backend datetimes come with or without a UTC offset depending on how the
// row was stored; naive values are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a created_at value as sent by the backend.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts RFC 3339 and timezone-less ISO 8601 datetimes.
// null and "" leave the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "timestamp")
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return errors.Errorf("timestamp %q is not an ISO 8601 datetime", raw)
}
