package ecommerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Platform payloads are loosely typed: ids and amounts arrive as numbers or
// strings depending on the endpoint and API version. The flex types below
// accept both and record whether the field was present at all.

var jsonNull = []byte("null")

func isNull(data []byte) bool {
	return len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), jsonNull)
}

// flexString accepts a JSON string or number
type flexString string

// UnmarshalJSON implements json.Unmarshaler
func (s *flexString) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = flexString(n.String())
	return nil
}

// String returns the plain string value
func (s flexString) String() string {
	return string(s)
}

// flexDecimal accepts a JSON number or numeric string. Valid is false when the
// field was absent, null or unparseable.
type flexDecimal struct {
	Value decimal.Decimal
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (d *flexDecimal) UnmarshalJSON(data []byte) error {
	*d = flexDecimal{}
	if isNull(data) {
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		// Unparseable amounts are treated like missing ones and logged by the mapper
		return nil
	}
	d.Value = v
	d.Valid = true
	return nil
}

// flexInt accepts a JSON integer, float or numeric string. Set is false when
// the field was absent or null.
type flexInt struct {
	Value int
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler
func (i *flexInt) UnmarshalJSON(data []byte) error {
	*i = flexInt{}
	if isNull(data) {
		return nil
	}
	raw := strings.TrimSpace(strings.Trim(string(data), `"`))
	if raw == "" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		i.Value, i.Set = n, true
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("expected integer, got %s", data)
	}
	i.Value, i.Set = int(f), true
	return nil
}

// Ptr returns the value as a pointer, nil when unset
func (i flexInt) Ptr() *int {
	if !i.Set {
		return nil
	}
	v := i.Value
	return &v
}

// flexBool accepts true/false, 0/1 and their string forms
type flexBool struct {
	Value bool
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler
func (b *flexBool) UnmarshalJSON(data []byte) error {
	*b = flexBool{}
	if isNull(data) {
		return nil
	}
	raw := strings.ToLower(strings.TrimSpace(strings.Trim(string(data), `"`)))
	switch raw {
	case "true", "1", "yes":
		b.Value, b.Set = true, true
	case "false", "0", "no", "":
		b.Value, b.Set = false, raw != ""
	default:
		return fmt.Errorf("expected boolean, got %s", data)
	}
	return nil
}

// localizedText accepts either a plain string or an {"ar": ..., "en": ...} object
type localizedText struct {
	Default string
	Ar      string
}

// UnmarshalJSON implements json.Unmarshaler
func (t *localizedText) UnmarshalJSON(data []byte) error {
	*t = localizedText{}
	if isNull(data) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &t.Default)
	}
	var obj struct {
		Ar string `json:"ar"`
		En string `json:"en"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.Ar = obj.Ar
	t.Default = obj.En
	if t.Default == "" {
		t.Default = obj.Ar
	}
	return nil
}

// ArPtr returns the Arabic value, nil when not provided
func (t localizedText) ArPtr() *string {
	if t.Ar == "" {
		return nil
	}
	v := t.Ar
	return &v
}

// platformTimeLayouts are tried in order when parsing timestamps
var platformTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parsePlatformTime parses a platform timestamp in loc, returning the zero time on failure
func parsePlatformTime(raw string, loc *time.Location) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range platformTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func stringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
