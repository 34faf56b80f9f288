package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FlexFloat decodes from a JSON number or a numeric string. Scraped prices
// show up as "1299.00", "1 299,00" or plain numbers depending on the source.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = FlexFloat(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flex float: expected number or string, got %s", data)
	}
	v, err := strconv.ParseFloat(cleanNumeric(s), 64)
	if err != nil {
		return fmt.Errorf("flex float: cannot parse %q as number", s)
	}
	// ParseFloat happily accepts "NaN" and "Inf", which no price or rating
	// can legitimately be, and which break JSON encoding downstream.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("flex float: %q is not a finite number", s)
	}
	*f = FlexFloat(v)
	return nil
}

// FlexInt decodes from a JSON number or a numeric string.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var v int
	if err := json.Unmarshal(data, &v); err == nil {
		*f = FlexInt(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flex int: expected number or string, got %s", data)
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("flex int: cannot parse %q as integer", s)
	}
	*f = FlexInt(v)
	return nil
}

// FlexTime decodes from an RFC3339 string or epoch millis (epoch seconds are
// recognized by magnitude and accepted too).
type FlexTime time.Time

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	var epoch int64
	if err := json.Unmarshal(data, &epoch); err == nil {
		// Epoch seconds for any plausible scrape date stay below 1e11;
		// millis are above it.
		if epoch < 1e11 {
			*f = FlexTime(time.Unix(epoch, 0).UTC())
		} else {
			*f = FlexTime(time.UnixMilli(epoch).UTC())
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flex time: expected epoch or RFC3339 string, got %s", data)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("flex time: cannot parse %q: %w", s, err)
	}
	*f = FlexTime(t.UTC())
	return nil
}

// cleanNumeric strips whitespace (including the non-breaking spaces RU
// marketplaces use as thousands separators) and turns a decimal comma into
// a decimal point.
func cleanNumeric(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ', ' ':
			return -1
		}
		return r
	}, s)
	return strings.ReplaceAll(s, ",", ".")
}
