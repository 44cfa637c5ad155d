package config

import (
	"testing"
	"time"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
)

func TestConfigLoad_Defaults(t *testing.T) {
	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "mongo" || cfg.GraceDays != 7 || cfg.AlertIntervalDays != 3 || cfg.SimilarityThreshold != 0.8 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CallTimeout != 30*time.Second {
		t.Fatalf("unexpected call timeout: %v", cfg.CallTimeout)
	}
	if cfg.RosterTimeout != 10*time.Minute {
		t.Fatalf("unexpected roster timeout: %v", cfg.RosterTimeout)
	}
	if cfg.GetHTTPAddr() != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.GetHTTPAddr())
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv("BOT_DB_DRIVER", "sqlite")
	t.Setenv("BOT_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("BOT_GRACE_DAYS", "10")
	t.Setenv("BOT_SCHEDULE", "@every 5m")
	t.Setenv("BOT_CALL_TIMEOUT", "2s")
	t.Setenv("BOT_ROSTER_TIMEOUT", "20m")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.GraceDays != 10 || cfg.Schedule != "@every 5m" || cfg.CallTimeout != 2*time.Second {
		t.Fatalf("env override failed: %+v", cfg)
	}
	if oc := cfg.OrchestratorConfig(); oc.RosterTimeout != 20*time.Minute || oc.CallTimeout != 2*time.Second {
		t.Fatalf("orchestrator timeouts: roster=%v call=%v", oc.RosterTimeout, oc.CallTimeout)
	}
	if got := cfg.PurgeRules().GraceWindow; got != 10*model.Day {
		t.Fatalf("grace window: %v", got)
	}
}

func TestConfigLoad_InvalidScheduleIsFatal(t *testing.T) {
	t.Setenv("BOT_SCHEDULE", "every tuesday-ish")
	if _, err := New(); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestResolveDefaults_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"driver":        func(c *Config) { c.DBDriver = "oracle" },
		"postgres dsn":  func(c *Config) { c.DBDriver = "postgres"; c.PostgresDSN = "" },
		"grace":         func(c *Config) { c.GraceDays = 0 },
		"alert":         func(c *Config) { c.AlertIntervalDays = -1 },
		"threshold low": func(c *Config) { c.SimilarityThreshold = 0 },
		"threshold hi":  func(c *Config) { c.SimilarityThreshold = 1.5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewForTesting()
			mutate(cfg)
			if err := cfg.ResolveDefaults(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNewForTesting_IsValid(t *testing.T) {
	cfg := NewForTesting()
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("testing config invalid: %v", err)
	}
	if !cfg.IsTesting() || cfg.NotificationsEnabled() || cfg.ObjectStoreEnabled() {
		t.Fatalf("unexpected testing config: %+v", cfg)
	}
	oc := cfg.OrchestratorConfig()
	if oc.Rules.AlertInterval != 3*model.Day || oc.Policy.Workers != 2 {
		t.Fatalf("unexpected orchestrator config: %+v", oc)
	}
}
