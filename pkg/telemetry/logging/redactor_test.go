package logging

import (
	"log/slog"
	"testing"
)

func TestRedactor_ReplaceAttr(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"authorization header", slog.String("authorization", "Bearer abc.def.ghi"), "Bear***"},
		{"short secret", slog.String("secret", "abc"), "***"},
		{"suffix match", slog.String("upstream_api_key", "sk-1234567890"), "sk-1***"},
		{"bearer in message", slog.String("msg", "got Bearer abc123 from client"), "got Bearer *** from client"},
		{"api key in value", slog.String("detail", "key sk-abcdefghij used"), "key sk-*** used"},
		{"plain value", slog.String("bucket", "agent-1"), "agent-1"},
		{"token count key untouched", slog.String("tokens", "5"), "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ReplaceAttr(nil, tt.attr)
			if got.Key != tt.attr.Key {
				t.Errorf("key changed: %q -> %q", tt.attr.Key, got.Key)
			}
			if got.Value.String() != tt.want {
				t.Errorf("value = %q, want %q", got.Value.String(), tt.want)
			}
		})
	}
}

func TestRedactor_NonStringUntouched(t *testing.T) {
	r := NewRedactor()
	attr := slog.Int("token", 42)

	if got := r.ReplaceAttr(nil, attr); got.Value.Int64() != 42 {
		t.Errorf("numeric attribute changed: %v", got.Value)
	}
}
