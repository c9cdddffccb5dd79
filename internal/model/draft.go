package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// DraftValue is either raw typed text or an already parsed number.
// Intermediate input such as "-" or "1." is kept as text.
type DraftValue struct {
	Text   string
	Number float64
	IsText bool
}

func DraftText(s string) DraftValue { return DraftValue{Text: s, IsText: true} }

func DraftNumber(f float64) DraftValue { return DraftValue{Number: f} }

// Float resolves the draft to a number. Text that does not parse as a
// finite number (including the empty string) reports false.
func (d DraftValue) Float() (float64, bool) {
	if !d.IsText {
		return d.Number, true
	}
	s := strings.TrimSpace(d.Text)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (d DraftValue) MarshalJSON() ([]byte, error) {
	if d.IsText {
		return json.Marshal(d.Text)
	}
	return json.Marshal(d.Number)
}

func (d *DraftValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = DraftText(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*d = DraftText("")
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*d = DraftNumber(f)
	return nil
}
