package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "soon")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg := Load()
	if cfg.ReportCacheTTLSeconds != 30 {
		t.Fatalf("expected report cache ttl 30, got %d", cfg.ReportCacheTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected token ttl 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}

func TestLocationDefaultsToBangkok(t *testing.T) {
	t.Setenv("SHOP_TIMEZONE", "")

	loc, err := Load().Location()
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	if loc.String() != "Asia/Bangkok" {
		t.Fatalf("expected Asia/Bangkok, got %s", loc)
	}

	if _, err := (Config{ShopTimeZone: "Mars/Olympus"}).Location(); err == nil {
		t.Fatalf("expected unknown zone to fail")
	}
}
