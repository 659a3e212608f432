package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSecretKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"empty array", "[]", []string{}},
		{"two keys", `["a","b"]`, []string{"a", "b"}},
		{"blank entries dropped", `["a",""]`, []string{"a"}},
		{"not json", "a,b", nil},
		{"wrong type", `{"a":1}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSecretKeys(tt.raw))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("TICK_INTERVAL_MS", "")
	t.Setenv("USE_HTTPS", "1")
	t.Setenv("SECRET_KEYS", `["sys"]`)

	cfg := Load()

	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.True(t, cfg.UseHTTPS)
	assert.Equal(t, []string{"sys"}, cfg.SecretKeys)
}
