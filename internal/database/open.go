package database

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/journal/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ドライバー名。
const (
	driverPostgres = "pgx"
	driverSQLite   = "sqlite"
)

// resolveDriver は接続URIから使用するドライバーとDSNを決定する。
func resolveDriver(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return driverPostgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		return driverSQLite, strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "file:"), url == ":memory:":
		return driverSQLite, url, nil
	default:
		return "", "", fmt.Errorf("サポートされていない接続URIです: scheme=%q", scheme(url))
	}
}

// Supported は接続URIが対応しているデータベースを指しているかどうかを返す。
func Supported(url string) bool {
	_, _, err := resolveDriver(url)
	return err == nil
}

// scheme はログ出力用に接続URIのスキームだけを取り出す。資格情報を含む残りは出力しない。
func scheme(url string) string {
	if i := strings.Index(url, ":"); i > 0 {
		return url[:i]
	}
	return ""
}

// Open は接続URIに対応するデータベースへ接続し、疎通確認とマイグレーションを行う。
func Open(ctx context.Context, url string, logger *slog.Logger) (*sqlx.DB, error) {
	driver, dsn, err := resolveDriver(url)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("データベースのオープンに失敗: %w", err)
	}
	if driver == driverSQLite {
		// SQLiteは書き込みを直列化する。:memory: は接続ごとに別DBになるため1接続に固定する。
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}

	if err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return db, nil
}
