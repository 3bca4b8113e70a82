package ledger

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"strings"
)

// auditPayload prepares a provider body for the jsonb audit column. Postgres
// rejects NUL in jsonb text, so NULs are dropped from every string and key.
// A body that is not JSON at all is kept as a JSON string.
func auditPayload(raw []byte) sql.NullString {
	if len(bytes.TrimSpace(raw)) == 0 {
		return sql.NullString{}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil || dec.More() {
		out, _ := json.Marshal(stripNUL(string(raw)))
		return sql.NullString{String: string(out), Valid: true}
	}

	out, err := json.Marshal(scrubNUL(v))
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(out), Valid: true}
}

func scrubNUL(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return stripNUL(t)
	case []interface{}:
		for i := range t {
			t[i] = scrubNUL(t[i])
		}
		return t
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[stripNUL(k)] = scrubNUL(val)
		}
		return out
	default:
		return v
	}
}

func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
