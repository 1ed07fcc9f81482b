// Package attrs reads values back out of the key/value lists passed to slog
// and the audit helpers.
package attrs

import (
	"fmt"
	"log/slog"
)

// Lookup finds key in a list shaped like slog's args: alternating key/value
// pairs, optionally mixed with slog.Attr values. The last occurrence wins,
// matching how later attributes override earlier ones in the audit helpers.
func Lookup(kv []any, key string) (any, bool) {
	var (
		found any
		ok    bool
	)
	for i := 0; i < len(kv); i++ {
		switch k := kv[i].(type) {
		case slog.Attr:
			if k.Key == key {
				found, ok = k.Value.Any(), true
			}
		case string:
			if i+1 >= len(kv) {
				return found, ok
			}
			if k == key {
				found, ok = kv[i+1], true
			}
			i++
		}
	}
	return found, ok
}

// ExtractString returns the value for key as text. Errors and Stringers are
// rendered; anything else that is not a string yields "".
func ExtractString(kv []any, key string) string {
	v, ok := Lookup(kv, key)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case error:
		return s.Error()
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}
