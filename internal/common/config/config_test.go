package config

import "testing"

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadConfig("does/not/exist.json")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Name != "inspection-service" {
		t.Fatalf("unexpected service name: %s", cfg.Server.Name)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Fatalf("unexpected http port: %d", cfg.Server.HTTPPort)
	}
	if cfg.Redis.Channel != "INSPECTION_STATUS_CHANGED" {
		t.Fatalf("unexpected redis channel: %s", cfg.Redis.Channel)
	}
	if cfg.Auth.Enabled {
		t.Fatalf("auth must default to disabled")
	}

	// LoadConfig 之后 GetConfig 返回同一份
	if GetConfig() != cfg {
		t.Fatalf("GetConfig must return the loaded config")
	}
}
