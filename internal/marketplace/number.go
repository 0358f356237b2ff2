package marketplace

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexNumber decodes a JSON number or a numeric string such as "$1,299.99".
// Anything else leaves it invalid instead of failing the whole document.
type flexNumber struct {
	Value float64
	Valid bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		raw = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	n.Value, n.Valid = f, true
	return nil
}

func (n flexNumber) ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// decodeLenient decodes raw into dst and reports whether it succeeded.
// Shape mismatches are expected in SerpApi payloads and are not errors.
func decodeLenient(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
