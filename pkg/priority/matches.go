package priority

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Match records one keyword hit and the label it carried.
type Match struct {
	Keyword string
	Label   Label
}

// Matches is an ordered keyword -> label mapping. Order follows the keyword
// table, with the breaking sentinel last. It is stored as a JSON object.
type Matches []Match

// Get returns the label recorded for keyword.
func (m Matches) Get(keyword string) (Label, bool) {
	for _, mm := range m {
		if mm.Keyword == keyword {
			return mm.Label, true
		}
	}
	return "", false
}

// Has reports whether keyword was matched.
func (m Matches) Has(keyword string) bool {
	_, ok := m.Get(keyword)
	return ok
}

// Keys returns matched keywords in order.
func (m Matches) Keys() []string {
	keys := make([]string, len(m))
	for i, mm := range m {
		keys[i] = mm.Keyword
	}
	return keys
}

// Equal compares two mappings including order.
func (m Matches) Equal(other Matches) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}

func (m *Matches) set(keyword string, l Label) {
	for i := range *m {
		if (*m)[i].Keyword == keyword {
			(*m)[i].Label = l
			return
		}
	}
	*m = append(*m, Match{Keyword: keyword, Label: l})
}

// MarshalJSON writes an object with keys in match order.
func (m Matches) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, mm := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(mm.Keyword)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(string(mm.Label))
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object preserving key order.
func (m *Matches) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("keyword matches: expected object, got %v", tok)
	}

	out := Matches{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("keyword matches: unexpected key %v", kt)
		}
		var raw string
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("keyword matches: value for %q: %w", key, err)
		}
		l, err := ParseLabel(raw, false)
		if err != nil {
			return err
		}
		out.set(key, l)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// Value implements driver.Valuer.
func (m Matches) Value() (driver.Value, error) {
	b, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Matches) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Matches{}
		return nil
	case string:
		if v == "" {
			*m = Matches{}
			return nil
		}
		return m.UnmarshalJSON([]byte(v))
	case []byte:
		if len(v) == 0 {
			*m = Matches{}
			return nil
		}
		return m.UnmarshalJSON(v)
	}
	return fmt.Errorf("keyword matches: unsupported scan type %T", src)
}
