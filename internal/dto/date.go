package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date accepts either a calendar date or an RFC 3339 timestamp.
type Date struct {
	t time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		d.t = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("date %q: expected YYYY-MM-DD or RFC 3339", raw)
	}
	d.t = t
	return nil
}

// Ptr returns the parsed time, or nil when d is nil or unset.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.t.IsZero() {
		return nil
	}
	t := d.t
	return &t
}
