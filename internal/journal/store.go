package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound は指定した日記エントリーが存在しないことを表す。
var ErrNotFound = errors.New("日記エントリーが見つかりません")

// Entry は日記エントリー。
type Entry struct {
	// ID はエントリーの一意識別子（UUID）。
	ID string `db:"id" json:"id"`
	// UserID はエントリーを書いたユーザーのID。
	UserID string `db:"user_id" json:"user_id"`
	// Title はタイトル。
	Title string `db:"title" json:"title"`
	// Content は本文。
	Content string `db:"content" json:"content"`
	// Mood は気分を表すラベル。空の場合もある。
	Mood string `db:"mood" json:"mood"`
	// CreatedAt は作成日時（UTC）。
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// UpdatedAt は更新日時（UTC）。
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MoodCount は気分ごとのエントリー数。
type MoodCount struct {
	Mood  string `db:"mood" json:"mood"`
	Count int    `db:"count" json:"count"`
}

// Store は日記エントリーの永続化を担う。
type Store struct {
	db *sqlx.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const entryColumns = "id, user_id, title, content, mood, created_at, updated_at"

// Create はエントリーを保存する。
func (s *Store) Create(ctx context.Context, e Entry) error {
	query := s.db.Rebind(`INSERT INTO journal_entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.Title, e.Content, e.Mood, e.CreatedAt, e.UpdatedAt); err != nil {
		return fmt.Errorf("日記エントリーの保存に失敗: %w", err)
	}
	return nil
}

// List はユーザーのエントリーを新しい順に返す。
func (s *Store) List(ctx context.Context, userID string) ([]Entry, error) {
	query := s.db.Rebind(`SELECT ` + entryColumns + ` FROM journal_entries
		WHERE user_id = ? ORDER BY created_at DESC, id DESC`)
	entries := []Entry{}
	if err := s.db.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("日記エントリー一覧の取得に失敗: %w", err)
	}
	return entries, nil
}

// Get はユーザーのエントリーを1件返す。
// 存在しない場合や他のユーザーのエントリーの場合はErrNotFoundを返す。
func (s *Store) Get(ctx context.Context, userID, id string) (Entry, error) {
	query := s.db.Rebind(`SELECT ` + entryColumns + ` FROM journal_entries WHERE id = ? AND user_id = ?`)
	var e Entry
	if err := s.db.GetContext(ctx, &e, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("日記エントリーの取得に失敗: %w", err)
	}
	return e, nil
}

// Update はエントリーのタイトル、本文、気分、更新日時を書き換える。
func (s *Store) Update(ctx context.Context, e Entry) error {
	query := s.db.Rebind(`UPDATE journal_entries SET title = ?, content = ?, mood = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`)
	result, err := s.db.ExecContext(ctx, query, e.Title, e.Content, e.Mood, e.UpdatedAt, e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("日記エントリーの更新に失敗: %w", err)
	}
	return requireAffected(result)
}

// Delete はユーザーのエントリーを削除する。
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	query := s.db.Rebind(`DELETE FROM journal_entries WHERE id = ? AND user_id = ?`)
	result, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("日記エントリーの削除に失敗: %w", err)
	}
	return requireAffected(result)
}

// CountByMood はユーザーのエントリー数を気分ごとに集計する。
// 件数の多い順、同数の場合は気分の辞書順に並べる。
func (s *Store) CountByMood(ctx context.Context, userID string) ([]MoodCount, error) {
	query := s.db.Rebind(`SELECT mood, COUNT(*) AS count FROM journal_entries
		WHERE user_id = ? GROUP BY mood ORDER BY count DESC, mood ASC`)
	counts := []MoodCount{}
	if err := s.db.SelectContext(ctx, &counts, query, userID); err != nil {
		return nil, fmt.Errorf("気分の集計に失敗: %w", err)
	}
	return counts, nil
}

// Search はタイトルか本文にtermを含むエントリーを新しい順に最大limit件返す。
// 大文字と小文字は区別しない。
func (s *Store) Search(ctx context.Context, userID, term string, limit int) ([]Entry, error) {
	query := s.db.Rebind(`SELECT ` + entryColumns + ` FROM journal_entries
		WHERE user_id = ? AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\')
		ORDER BY created_at DESC, id DESC LIMIT ?`)
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	entries := []Entry{}
	if err := s.db.SelectContext(ctx, &entries, query, userID, pattern, pattern, limit); err != nil {
		return nil, fmt.Errorf("日記エントリーの検索に失敗: %w", err)
	}
	return entries, nil
}

// requireAffected は1行も更新されなかった場合にErrNotFoundを返す。
func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// likeEscaper はLIKEのワイルドカードをエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
