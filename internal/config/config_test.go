package config

import (
	"slices"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

// TestParse は環境変数から設定が読み込まれることを検証する。
func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("未設定の場合デフォルト値が使われること", func(t *testing.T) {
		t.Parallel()

		cfg, err := parse(env.Options{Environment: map[string]string{}})
		if err != nil {
			t.Fatalf("parse()でエラーが発生: %v", err)
		}
		if cfg.Port != "3000" {
			t.Errorf("Port = %q, want %q", cfg.Port, "3000")
		}
		if cfg.DatabaseURL != "" {
			t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
		}
		if !slices.Equal(cfg.AllowedOrigins, DefaultAllowedOrigins) {
			t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, DefaultAllowedOrigins)
		}
		if cfg.ConnectTimeout != 10*time.Second {
			t.Errorf("ConnectTimeout = %v, want %v", cfg.ConnectTimeout, 10*time.Second)
		}
		if cfg.Addr() != ":3000" {
			t.Errorf("Addr() = %q, want %q", cfg.Addr(), ":3000")
		}
	})

	t.Run("環境変数の値が反映されること", func(t *testing.T) {
		t.Parallel()

		cfg, err := parse(env.Options{Environment: map[string]string{
			"DATABASE_URL":           "sqlite://journal.db",
			"PORT":                   "8080",
			"GOOGLE_SERVICE_ACCOUNT": "e30=",
			"ALLOWED_ORIGINS":        "https://a.example,https://b.example",
			"DB_CONNECT_TIMEOUT":     "3s",
			"LOG_LEVEL":              "debug",
		}})
		if err != nil {
			t.Fatalf("parse()でエラーが発生: %v", err)
		}
		if cfg.DatabaseURL != "sqlite://journal.db" {
			t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "sqlite://journal.db")
		}
		if cfg.Port != "8080" {
			t.Errorf("Port = %q, want %q", cfg.Port, "8080")
		}
		if cfg.ServiceAccount != "e30=" {
			t.Errorf("ServiceAccount = %q, want %q", cfg.ServiceAccount, "e30=")
		}
		want := []string{"https://a.example", "https://b.example"}
		if !slices.Equal(cfg.AllowedOrigins, want) {
			t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
		}
		if cfg.ConnectTimeout != 3*time.Second {
			t.Errorf("ConnectTimeout = %v, want %v", cfg.ConnectTimeout, 3*time.Second)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
		}
	})

	t.Run("DATABASE_URLが空の場合MONGO_URIが使われること", func(t *testing.T) {
		t.Parallel()

		cfg, err := parse(env.Options{Environment: map[string]string{
			"MONGO_URI": "postgres://localhost/journal",
		}})
		if err != nil {
			t.Fatalf("parse()でエラーが発生: %v", err)
		}
		if cfg.DatabaseURL != "postgres://localhost/journal" {
			t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "postgres://localhost/journal")
		}
	})

	t.Run("不正なタイムアウト値はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := parse(env.Options{Environment: map[string]string{
			"DB_CONNECT_TIMEOUT": "soon",
		}})
		if err == nil {
			t.Fatal("不正なDB_CONNECT_TIMEOUTでエラーが返らなかった")
		}
	})
}
