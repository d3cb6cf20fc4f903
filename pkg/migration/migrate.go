// Package migration はデータベースのマイグレーションを管理する。
// embed.FSからSQLファイルを読み込み、バージョン管理テーブルで適用状態を追跡する。
// SQLiteとPostgreSQLの両方で動作するよう、プレースホルダーはドライバーに合わせて変換する。
package migration

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Run はembedされたマイグレーションファイルを順序通りに適用する。
// 未適用のマイグレーションのみ実行し、適用済みのものはスキップする。
// ファイル名形式: 000001_description.up.sql
func Run(ctx context.Context, db *sqlx.DB, fsys fs.FS, dir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("マイグレーション管理テーブルの作成に失敗: %w", err)
	}

	applied, err := getAppliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}

	migrations, err := collectMigrations(fsys, dir)
	if err != nil {
		return fmt.Errorf("マイグレーションファイルの収集に失敗: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		ok, err := applyMigration(ctx, db, fsys, m)
		if err != nil {
			return fmt.Errorf("マイグレーション %06d の適用に失敗: %w", m.version, err)
		}
		if !ok {
			logger.Info("[Migration] 他のインスタンスが適用済みのためスキップしました", "version", m.version, "name", m.name)
			continue
		}
		logger.Info("[Migration] マイグレーションを適用しました", "version", m.version, "name", m.name)
	}

	return nil
}

// upSuffix はマイグレーションファイルの拡張子。
const upSuffix = ".up.sql"

// driverPostgres はアドバイザリロックを使うドライバー名。
const driverPostgres = "pgx"

// advisoryLockKey はマイグレーションを直列化するPostgreSQLのアドバイザリロックのキー。
const advisoryLockKey int64 = 0x6a6f75726e616c

// migrationFile は適用対象の1ファイル。
type migrationFile struct {
	// version はファイル名先頭の連番。
	version int
	// name はファイル名から連番と拡張子を除いた説明部分。
	name string
	// path はfs.FS上のパス。
	path string
}

// ensureMigrationsTable はバージョン管理テーブルを作成する。
func ensureMigrationsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// getAppliedVersions は適用済みのマイグレーションバージョンを取得する。
func getAppliedVersions(ctx context.Context, db *sqlx.DB) (map[int]bool, error) {
	var versions []int
	if err := db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return nil, err
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// collectMigrations はディレクトリからup.sqlファイルを収集してバージョン順に並べる。
// 連番で始まらないファイルは無視し、同じ連番のファイルが複数ある場合はエラーにする。
func collectMigrations(fsys fs.FS, dir string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string, len(entries))
	migrations := make([]migrationFile, 0, len(entries))
	for _, entry := range entries {
		m, ok := parseMigrationName(entry)
		if !ok {
			continue
		}
		if other, dup := seen[m.version]; dup {
			return nil, fmt.Errorf("バージョン %06d が重複しています: %s, %s", m.version, other, entry.Name())
		}
		seen[m.version] = entry.Name()
		m.path = path.Join(dir, entry.Name())
		migrations = append(migrations, m)
	}

	slices.SortFunc(migrations, func(a, b migrationFile) int {
		return cmp.Compare(a.version, b.version)
	})
	return migrations, nil
}

// parseMigrationName は 000001_description.up.sql 形式のファイル名を解析する。
func parseMigrationName(entry fs.DirEntry) (migrationFile, bool) {
	base, isUp := strings.CutSuffix(entry.Name(), upSuffix)
	if entry.IsDir() || !isUp {
		return migrationFile{}, false
	}
	prefix, name, found := strings.Cut(base, "_")
	if !found {
		return migrationFile{}, false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return migrationFile{}, false
	}
	return migrationFile{version: version, name: name}, true
}

// applyMigration は1つのマイグレーションをトランザクション内で適用する。
// 複数のインスタンスが同時に起動した場合に備え、トランザクション内で適用状態を確認し直し、
// 既に適用済みであれば何もせずfalseを返す。PostgreSQLではアドバイザリロックで直列化する。
func applyMigration(ctx context.Context, db *sqlx.DB, fsys fs.FS, m migrationFile) (bool, error) {
	content, err := fs.ReadFile(fsys, m.path)
	if err != nil {
		return false, fmt.Errorf("ファイル読み込みに失敗: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if db.DriverName() == driverPostgres {
		if _, err := tx.ExecContext(ctx, tx.Rebind("SELECT pg_advisory_xact_lock(?)"), advisoryLockKey); err != nil {
			return false, fmt.Errorf("アドバイザリロックの取得に失敗: %w", err)
		}
	}

	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind("SELECT COUNT(*) FROM schema_migrations WHERE version = ?"), m.version); err != nil {
		return false, fmt.Errorf("適用状態の確認に失敗: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return false, fmt.Errorf("SQL実行に失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO schema_migrations (version, name) VALUES (?, ?) ON CONFLICT (version) DO NOTHING"),
		m.version, m.name); err != nil {
		return false, fmt.Errorf("バージョン記録に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("コミットに失敗: %w", err)
	}
	return true, nil
}
