package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/signshop/internal/config"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr []string // substrings that must appear in the error
	}{
		{
			name:    "invalid log level",
			yaml:    "server:\n  log_level: verbose\n",
			wantErr: []string{"server.log_level"},
		},
		{
			name:    "invalid backend",
			yaml:    "storage:\n  backend: redis\n",
			wantErr: []string{"storage.backend", "redis"},
		},
		{
			name:    "postgres without dsn",
			yaml:    "storage:\n  backend: postgres\n",
			wantErr: []string{"storage.postgres_dsn"},
		},
		{
			name:    "tls without files",
			yaml:    "server:\n  tls: {}\n",
			wantErr: []string{"cert_file", "key_file"},
		},
		{
			name:    "dotted permission prefix",
			yaml:    "shop:\n  permission_prefix: sign.shop\n",
			wantErr: []string{"shop.permission_prefix"},
		},
		{
			name:    "currency item with space",
			yaml:    "shop:\n  currency_item: gold ingot\n",
			wantErr: []string{"shop.currency_item"},
		},
		{
			name:    "negative breaker failures",
			yaml:    "storage:\n  breaker:\n    max_failures: -1\n",
			wantErr: []string{"storage.breaker.max_failures"},
		},
		{
			name:    "negative breaker timeout",
			yaml:    "storage:\n  breaker:\n    reset_timeout: -5s\n",
			wantErr: []string{"storage.breaker.reset_timeout"},
		},
		{
			name:    "fallback same as path",
			yaml:    "storage:\n  backend: file\n  path: shops.yaml\n  fallback_path: shops.yaml\n",
			wantErr: []string{"storage.fallback_path"},
		},
		{
			name: "postgres with fallback",
			yaml: "storage:\n  backend: postgres\n  postgres_dsn: postgres://localhost/signshop\n  fallback_path: /var/lib/signshop/emergency.yaml\n  breaker:\n    reset_timeout: 1m\n",
		},
		{
			name: "postgres with dsn",
			yaml: "storage:\n  backend: postgres\n  postgres_dsn: postgres://localhost/signshop\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error should contain %q, got: %v", want, err)
				}
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
storage:
  backend: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, "log_level") || !strings.Contains(msg, "postgres_dsn") {
		t.Errorf("expected both failures to be reported, got: %v", err)
	}
}

func TestApplyDefaults_Breaker(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader("storage:\n  breaker:\n    reset_timeout: 2m\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Storage.Breaker.MaxFailures != 3 {
		t.Errorf("MaxFailures = %d, want 3", cfg.Storage.Breaker.MaxFailures)
	}
	if cfg.Storage.Breaker.ResetTimeout != 2*time.Minute {
		t.Errorf("ResetTimeout = %v, want 2m", cfg.Storage.Breaker.ResetTimeout)
	}
}
