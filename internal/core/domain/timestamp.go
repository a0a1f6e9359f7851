package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the on-disk representation of every date field in a bundle document.
const TimestampLayout = "2006-01-02 15:04:05"

var flexibleLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 03:04:05PM",
	"01/02/2006 15:04:05",
	"01/02/2006 03:04:05PM",
	"1/2/2006 3:04:05PM",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
}

// ParseFlexibleTime accepts the date spellings produced by OCR and the extraction model.
func ParseFlexibleTime(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	value = strings.TrimSuffix(value, "Z")
	for _, layout := range flexibleLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
		if t, err := time.Parse(layout, strings.ToUpper(value)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// Timestamp marshals as "YYYY-MM-DD HH:MM:SS" and unmarshals any flexible spelling.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(TimestampLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseFlexibleTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
