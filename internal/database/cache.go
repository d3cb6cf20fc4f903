package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/singleflight"
)

// DefaultConnectTimeout は接続試行のデフォルトタイムアウト。
const DefaultConnectTimeout = 10 * time.Second

// ConnectionError は永続化ストアへの接続に失敗したことを表す。
// 回復可能なエラーであり、ログに記録された後は接続なしとして扱われる。
type ConnectionError struct {
	// Err は接続に失敗した原因。
	Err error
}

// Error はエラーメッセージを返す。
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("データベース接続に失敗: %v", e.Err)
}

// Unwrap は原因のエラーを返す。
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Connector は接続URIからデータベースへ接続する関数。
type Connector func(ctx context.Context, url string) (*sqlx.DB, error)

// Cache は永続化ストアへの接続ハンドルを遅延生成してメモ化する。
// 最初の呼び出しで一度だけ接続を試行し、その結果を以降の呼び出しで共有する。
// 初回の試行中に並行して呼び出された場合は、同じ試行の結果を待つ。
type Cache struct {
	// url は接続URI。空の場合は接続を試行しない。
	url string
	// unsupportedScheme は無視した接続URIのスキーム。対応していないURIが渡された場合のみ設定される。
	unsupportedScheme string
	// timeout は接続試行のタイムアウト。
	timeout time.Duration
	// connect は実際の接続処理。
	connect Connector
	// logger は接続失敗を記録するロガー。
	logger *slog.Logger
	// group は初回接続の重複を抑止する。
	group singleflight.Group

	mu sync.RWMutex
	// resolved は接続試行が完了したかどうか。
	resolved bool
	// db はメモ化された接続ハンドル。接続なしの場合nil。
	db *sqlx.DB
}

// NewCache は新しい接続キャッシュを生成する。
// timeoutが0以下の場合はDefaultConnectTimeoutを使用する。
// 対応していないスキームの接続URIは未設定として扱い、接続を試行しない。
func NewCache(url string, timeout time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		url:     url,
		timeout: timeout,
		logger:  logger,
	}
	if url != "" && !Supported(url) {
		c.url = ""
		c.unsupportedScheme = scheme(url)
	}
	c.connect = func(ctx context.Context, url string) (*sqlx.DB, error) {
		return Open(ctx, url, c.logger)
	}
	if c.timeout <= 0 {
		c.timeout = DefaultConnectTimeout
	}
	return c
}

// Configured は接続URIが設定されているかどうかを返す。
func (c *Cache) Configured() bool {
	return c.url != ""
}

// Get は共有の接続ハンドルを返す。接続なしの場合はnilを返す。
// 接続に失敗した場合も、その結果をメモ化してnilを返し続ける。
// ctxがキャンセルされた場合は待機をやめてnilを返すが、進行中の試行は継続する。
func (c *Cache) Get(ctx context.Context) *sqlx.DB {
	if !c.Configured() {
		return nil
	}
	if db, ok := c.memoized(); ok {
		return db
	}

	ch := c.group.DoChan("connect", func() (any, error) {
		// 直前に別のフライトが完了している場合は再試行しない
		if db, ok := c.memoized(); ok {
			return db, nil
		}
		db := c.attempt(context.WithoutCancel(ctx))

		c.mu.Lock()
		c.db = db
		c.resolved = true
		c.mu.Unlock()
		return db, nil
	})

	select {
	case res := <-ch:
		db, _ := res.Val.(*sqlx.DB)
		return db
	case <-ctx.Done():
		return nil
	}
}

// Warm はコールドスタート時に接続を開始する。
// 接続URIが設定されていない場合は警告を出力するだけで何もしない。
func (c *Cache) Warm(ctx context.Context) {
	if c.unsupportedScheme != "" {
		c.logger.Warn("対応していない接続URIのため、データベース接続をスキップします", "scheme", c.unsupportedScheme)
		return
	}
	if !c.Configured() {
		c.logger.Warn("DATABASE_URLが設定されていないため、データベース接続をスキップします")
		return
	}
	if c.Get(ctx) != nil {
		c.logger.Info("データベースに接続しました")
	}
}

// Close はメモ化された接続ハンドルを閉じる。プロセス終了時にのみ呼び出す。
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// memoized はメモ化された結果を返す。未解決の場合okはfalse。
func (c *Cache) memoized() (*sqlx.DB, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db, c.resolved
}

// attempt は一度だけ接続を試行する。失敗はログに記録してnilを返す。
func (c *Cache) attempt(ctx context.Context) *sqlx.DB {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	db, err := c.connect(ctx, c.url)
	if err != nil {
		c.logger.Error("データベース接続に失敗しました", "error", &ConnectionError{Err: err})
		return nil
	}
	return db
}
