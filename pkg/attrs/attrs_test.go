package attrs

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	id "policardmed/pkg/domain"
)

func TestExtractString(t *testing.T) {
	tests := []struct {
		name string
		kv   []any
		want string
	}{
		{name: "plain pair", kv: []any{"member_id", "m-1", "reason", "cpf already registered"}, want: "cpf already registered"},
		{name: "missing key", kv: []any{"member_id", "m-1"}, want: ""},
		{name: "error value", kv: []any{"reason", errors.New("store unavailable")}, want: "store unavailable"},
		{name: "stringer value", kv: []any{"reason", id.MemberID("m-7")}, want: "m-7"},
		{name: "non text value", kv: []any{"reason", 42}, want: ""},
		{name: "slog attr", kv: []any{slog.String("reason", "throttled"), "member_id", "m-1"}, want: "throttled"},
		{name: "later value wins", kv: []any{"reason", "first", "reason", "second"}, want: "second"},
		{name: "dangling key", kv: []any{"member_id", "m-1", "reason"}, want: ""},
		{name: "value equal to key is not a key", kv: []any{"note", "reason", "other", "x"}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractString(tt.kv, "reason"))
		})
	}
}
