package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v2"
)

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Duration
	}{
		{"minutes", `ttl: 10m`, 10 * time.Minute},
		{"hours", `ttl: 720h`, 720 * time.Hour},
		{"compound", `ttl: 1h30m`, 90 * time.Minute},
		{"bare number is seconds", `ttl: 600`, 600 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				TTL Duration `yaml:"ttl"`
			}
			if err := yaml.Unmarshal([]byte(tt.input), &out); err != nil {
				t.Fatalf("Unmarshal(%q): %v", tt.input, err)
			}
			if got := time.Duration(out.TTL); got != tt.want {
				t.Errorf("TTL = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDurationUnmarshal_Invalid(t *testing.T) {
	var out struct {
		TTL Duration `yaml:"ttl"`
	}
	if err := yaml.Unmarshal([]byte(`ttl: soon`), &out); err == nil {
		t.Error("expected error for unparseable duration, got nil")
	}
}

func TestValidateProviderKinds(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Database.Postgres = PostgresConfig{Host: "localhost", Database: "gatekeeper", User: "postgres"}
		cfg.Server = ServerConfig{Host: "localhost", Port: 8080, AdminPort: 6060}
		cfg.StateStore = StateStoreConfig{Backend: "memory", TTL: Duration(10 * time.Minute)}
		return cfg
	}

	cfg := base()
	cfg.Auth.Providers = []ProviderConfig{{Name: "github", Kind: "github", ClientID: "id"}}
	if err := validate(cfg); err != nil {
		t.Errorf("valid github provider rejected: %v", err)
	}

	cfg = base()
	cfg.Auth.Providers = []ProviderConfig{{Name: "google", Kind: "oidc", ClientID: "id"}}
	if err := validate(cfg); err == nil {
		t.Error("oidc provider without issuer accepted")
	}

	cfg = base()
	cfg.Auth.Providers = []ProviderConfig{
		{Name: "github", Kind: "github", ClientID: "a"},
		{Name: "github", Kind: "github", ClientID: "b"},
	}
	if err := validate(cfg); err == nil {
		t.Error("duplicate provider names accepted")
	}
}
