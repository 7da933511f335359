package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a bill date cannot be interpreted
var ErrInvalidDate = errors.New("invalid date")

// BillDateLayout is the serialized form of a bill date: explicit UTC offset,
// never a bare local time.
const BillDateLayout = "2006-01-02T15:04:05+00:00"

var billDateInputs = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
}

// NormalizeBillDate converts any accepted date input into BillDateLayout.
// Dates without an offset are taken as UTC calendar dates. An empty input
// stays empty so that validation can report it as missing.
func NormalizeBillDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, layout := range billDateInputs {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(BillDateLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// FlexFloat decodes a JSON number, a numeric string or null
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*f = 0
			return nil
		}
		v, err := ParseAmount(s)
		if err != nil {
			// unparseable model output degrades to absent
			*f = 0
			return nil
		}
		*f = FlexFloat(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidNumber, data)
	}
	*f = FlexFloat(v)
	return nil
}

// FlexString decodes a JSON string or number as a string
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(data)
	return nil
}
