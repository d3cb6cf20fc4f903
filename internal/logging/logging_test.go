package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestNew はレベルごとに出力先が振り分けられることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("ERROR未満は標準出力、ERROR以上は標準エラー出力に書かれること", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		logger := New(Options{Level: "debug", Stdout: &stdout, Stderr: &stderr})

		logger.Info("起動しました")
		logger.Error("接続に失敗しました")

		if !strings.Contains(stdout.String(), "起動しました") {
			t.Errorf("stdout = %q, INFOログが含まれていない", stdout.String())
		}
		if strings.Contains(stdout.String(), "接続に失敗しました") {
			t.Errorf("stdout = %q, ERRORログが含まれるべきではない", stdout.String())
		}
		if !strings.Contains(stderr.String(), "接続に失敗しました") {
			t.Errorf("stderr = %q, ERRORログが含まれていない", stderr.String())
		}
		if strings.Contains(stderr.String(), "起動しました") {
			t.Errorf("stderr = %q, INFOログが含まれるべきではない", stderr.String())
		}
	})

	t.Run("レベル未満のログは出力されないこと", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		logger := New(Options{Level: "warn", Stdout: &stdout, Stderr: &stderr})

		logger.Info("表示されない")
		logger.Warn("表示される")

		if strings.Contains(stdout.String(), "表示されない") {
			t.Errorf("stdout = %q, INFOログは抑制されるべき", stdout.String())
		}
		if !strings.Contains(stdout.String(), "表示される") {
			t.Errorf("stdout = %q, WARNログが含まれていない", stdout.String())
		}
	})

	t.Run("JSON形式で出力できること", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer
		logger := New(Options{Format: "json", Stdout: &stdout, Stderr: &bytes.Buffer{}})

		logger.Info("json", "key", "value")

		if !strings.Contains(stdout.String(), `"key":"value"`) {
			t.Errorf("stdout = %q, JSON形式になっていない", stdout.String())
		}
	})
}

// TestParseLevel はログレベル文字列の変換を検証する。
func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
