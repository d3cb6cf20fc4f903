// Package logging はslogベースのロガーを構築する。
//
// ERROR未満のレコードは標準出力へ、ERROR以上のレコードは標準エラー出力へ振り分ける。
// サーバーレス環境ではストリームごとにログの重要度が分類されるため。
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Options はロガーの構築オプション。
type Options struct {
	// Level はログ出力レベル（debug, info, warn, error）。
	Level string
	// Format はログ出力形式（text, json）。
	Format string
	// Stdout はERROR未満のレコードの出力先。nilの場合os.Stdout。
	Stdout io.Writer
	// Stderr はERROR以上のレコードの出力先。nilの場合os.Stderr。
	Stderr io.Writer
}

// New はOptionsに従ってロガーを生成する。
func New(opts Options) *slog.Logger {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	return slog.New(slogmulti.Router().
		Add(newHandler(opts.Format, stdout, handlerOpts), belowError).
		Add(newHandler(opts.Format, stderr, handlerOpts), atLeastError).
		Handler())
}

// ParseLevel は文字列をslog.Levelに変換する。不明な値はINFOとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func belowError(_ context.Context, r slog.Record) bool {
	return r.Level < slog.LevelError
}

func atLeastError(_ context.Context, r slog.Record) bool {
	return r.Level >= slog.LevelError
}
