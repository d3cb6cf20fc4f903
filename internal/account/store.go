package account

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// User はログインしたことのあるユーザー。
type User struct {
	// ID はIDプロバイダー上のユーザーID。
	ID string `db:"id" json:"id"`
	// Email はメールアドレス。
	Email string `db:"email" json:"email"`
	// DisplayName は表示名。
	DisplayName string `db:"display_name" json:"display_name"`
	// AvatarURL はプロフィール画像のURL。
	AvatarURL string `db:"avatar_url" json:"avatar_url"`
	// CreatedAt は初回ログイン日時。
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// LastLoginAt は最終ログイン日時。
	LastLoginAt time.Time `db:"last_login_at" json:"last_login_at"`
}

// Store はユーザーの永続化を担う。
type Store struct {
	db *sqlx.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Upsert はユーザーを登録し、既に存在する場合はプロフィールと最終ログイン日時を更新する。
// 作成日時は初回登録時の値が保たれる。
func (s *Store) Upsert(ctx context.Context, u User) (User, error) {
	query := s.db.Rebind(`INSERT INTO users (id, email, display_name, avatar_url, created_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			last_login_at = excluded.last_login_at`)
	if _, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.DisplayName, u.AvatarURL, u.CreatedAt, u.LastLoginAt); err != nil {
		return User{}, fmt.Errorf("ユーザーの保存に失敗: %w", err)
	}

	var saved User
	if err := s.db.GetContext(ctx, &saved, s.db.Rebind(`SELECT id, email, display_name, avatar_url, created_at, last_login_at
		FROM users WHERE id = ?`), u.ID); err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return saved, nil
}
