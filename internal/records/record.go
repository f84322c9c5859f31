// Package records holds the immutable traveler, dependent and questionnaire
// rows a fill or summary is computed from.
package records

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ZeroDate is the placeholder MySQL-era rows carry for an unset date.
const ZeroDate = "0000-00-00"

// Record is an immutable set of string attributes built from one row.
type Record struct {
	values map[string]string
}

// New builds a record from plain string attributes.
func New(values map[string]string) Record {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Record{values: copied}
}

// FromRow builds a record from a database row scanned into a map.
// NULL columns are dropped, byte slices are decoded as text and
// timestamps render as YYYY-MM-DD.
func FromRow(row map[string]interface{}) Record {
	values := make(map[string]string, len(row))
	for column, raw := range row {
		if s, ok := columnText(raw); ok {
			values[column] = s
		}
	}
	return Record{values: values}
}

func columnText(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case time.Time:
		if v.IsZero() {
			return "", false
		}
		return v.Format("2006-01-02"), true
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return fmt.Sprint(v), true
	}
}

// Get returns the trimmed value of key. Empty values and the zero date count
// as unset.
func (r Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, ZeroDate) {
		return "", false
	}
	return v, true
}

// Value returns the value of key or the empty string.
func (r Record) Value(key string) string {
	v, _ := r.Get(key)
	return v
}

// Int64 returns key parsed as an integer.
func (r Record) Int64(key string) (int64, bool) {
	v, ok := r.Get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsEmpty reports whether the record has no attributes at all.
func (r Record) IsEmpty() bool {
	return len(r.values) == 0
}

// Keys returns the attribute names in lexical order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the set attributes, skipping unset ones.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k := range r.values {
		if v, ok := r.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// With returns a copy of the record with key set to value.
func (r Record) With(key, value string) Record {
	next := New(r.values)
	next.values[key] = value
	return next
}
