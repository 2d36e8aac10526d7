/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package poker

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Unsure is the card players pick when they cannot estimate.
const Unsure = "?"

// Value is a vote exactly as the client sent it. It is echoed back verbatim
// when votes are revealed.
type Value json.RawMessage

func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

// UnmarshalJSON keeps data verbatim. A JSON null leaves v empty.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*v = nil
		return nil
	}
	*v = append((*v)[0:0], data...)
	return nil
}

// Number reports the numeric value of v. JSON numbers and strings holding a
// decimal number count; the unsure card and anything else do not.
func (v Value) Number() (float64, bool) {
	raw := bytes.TrimSpace(v)
	if len(raw) == 0 {
		return 0, false
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
	} else {
		s = string(raw)
	}

	if s == "" || s == Unsure {
		return 0, false
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// NumberValue is a convenience for building votes in code.
func NumberValue(n float64) Value {
	return Value(strconv.FormatFloat(n, 'f', -1, 64))
}

// StringValue wraps s as a JSON string vote.
func StringValue(s string) Value {
	b, _ := json.Marshal(s)
	return Value(b)
}
