// Package config はジャーナルAPIのプロセス全体で共有する設定を提供する。
//
// 設定は起動時に環境変数（および存在すれば .env ファイル）から一度だけ読み込まれ、
// 以降は変更されない。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultAllowedOrigins はクロスオリジンアクセスを許可するデフォルトのオリジン。
var DefaultAllowedOrigins = []string{
	"https://mind-echo-xxlv.vercel.app",
	"http://localhost:5173",
}

// Config はプロセス全体の設定値。
type Config struct {
	// DatabaseURL は永続化ストアの接続URI。空の場合、永続化が必要なルートは縮退動作する。
	DatabaseURL string `env:"DATABASE_URL"`
	// LegacyMongoURI は旧環境との互換のために読み込むURI。DatabaseURLが空の場合のみ使用する。
	LegacyMongoURI string `env:"MONGO_URI"`
	// Port はHTTPサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"3000"`
	// ServiceAccount はbase64エンコードされたサービスアカウントJSON。
	ServiceAccount string `env:"GOOGLE_SERVICE_ACCOUNT"`
	// AllowedOrigins は資格情報付きクロスオリジンリクエストを許可するオリジン。
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	// LogLevel はログ出力レベル（debug, info, warn, error）。
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogFormat はログ出力形式（text, json）。
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	// ConnectTimeout はデータベース接続試行のタイムアウト。
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`
}

// Load は .env ファイルと環境変数から設定を読み込む。
// .env ファイルが存在しない場合はエラーにしない。
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}
	return parse(env.Options{})
}

// parse は環境変数を構造体にマッピングし、デフォルト値を補完する。
func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("環境変数の解析に失敗: %w", err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.LegacyMongoURI
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	return cfg, nil
}

// Addr はHTTPサーバーのリッスンアドレスを返す。
func (c Config) Addr() string {
	return ":" + c.Port
}
