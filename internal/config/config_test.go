package config

import "testing"

func TestValidate_InvalidDriver(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "sqlite"},
		Index:    IndexConfig{DefaultPageSize: 20, MaxPageSize: 100},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}

	expected := `database.driver must be redis, postgres or memory, got "sqlite"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_DriverRequirements(t *testing.T) {
	tests := []struct {
		name    string
		db      DatabaseConfig
		wantErr bool
	}{
		{"memory needs nothing", DatabaseConfig{Driver: "memory"}, false},
		{"redis with addrs", DatabaseConfig{Driver: "redis", Addrs: []string{"localhost:6379"}}, false},
		{"redis without addrs", DatabaseConfig{Driver: "redis"}, true},
		{"postgres with dsn", DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/geodex"}, false},
		{"postgres without dsn", DatabaseConfig{Driver: "postgres"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{
				HTTP:     HTTPConfig{Port: 8080},
				Database: tc.db,
				Index:    IndexConfig{DefaultPageSize: 20, MaxPageSize: 100},
			}
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 0},
		Database: DatabaseConfig{Driver: "memory"},
		Index:    IndexConfig{DefaultPageSize: 20, MaxPageSize: 100},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_PageSizeOrdering(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "memory"},
		Index:    IndexConfig{DefaultPageSize: 200, MaxPageSize: 100},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error when max page size is below the default")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("expected Driver='memory', got %q", cfg.Database.Driver)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Index.DefaultPageSize != 20 {
		t.Errorf("expected DefaultPageSize=20, got %d", cfg.Index.DefaultPageSize)
	}
	if cfg.Index.MaxPageSize != 100 {
		t.Errorf("expected MaxPageSize=100, got %d", cfg.Index.MaxPageSize)
	}
	if cfg.Index.LenientDates {
		t.Error("expected LenientDates=false by default")
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{Driver: "redis", ReadinessTimeout: 15},
		Index:    IndexConfig{DefaultPageSize: 50, MaxPageSize: 500},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected Driver='redis', got %q", cfg.Database.Driver)
	}
	if cfg.Index.DefaultPageSize != 50 {
		t.Errorf("expected DefaultPageSize=50, got %d", cfg.Index.DefaultPageSize)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("GEODEX_TEST_PASSWORD", "s3cret")

	in := []byte("password: ${GEODEX_TEST_PASSWORD}\ndsn: ${GEODEX_TEST_DSN:-postgres://localhost/geodex}\n")
	out := string(expandEnvVars(in))

	want := "password: s3cret\ndsn: postgres://localhost/geodex\n"
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}
