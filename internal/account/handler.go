package account

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/journal/internal/auth"
	"github.com/nao1215/journal/internal/identity"
	"github.com/nao1215/journal/pkg/middleware"
)

// messageIDTokenRequired はログインリクエストにIDトークンが無い場合のメッセージ。
const messageIDTokenRequired = "idToken is required"

// Provider は接続ハンドルを提供する。接続が無い場合はnilを返す。
type Provider interface {
	Get(ctx context.Context) *sqlx.DB
}

// Handler はアカウント関連のルートグループが共有する依存関係を保持する。
type Handler struct {
	// provider は接続ハンドルの提供元。nilの場合はユーザーを保存しない。
	provider Provider
	// verifier はIDトークンの検証器。nilの場合は認証が構成されていない。
	verifier auth.TokenVerifier
	// now は現在時刻を返す。
	now func() time.Time
}

// NewHandler は新しいHandlerを生成する。
func NewHandler(provider Provider, verifier auth.TokenVerifier) *Handler {
	return &Handler{
		provider: provider,
		verifier: verifier,
		now:      time.Now,
	}
}

// AuthRoutes は認証済みユーザーの情報を返すルートグループ。
type AuthRoutes struct{ *Handler }

// Register はルートを登録する。
func (r AuthRoutes) Register(rg *gin.RouterGroup) {
	rg.GET("/me", auth.Authenticate(r.verifier), r.handleMe())
}

// FederatedRoutes は外部IDプロバイダーのIDトークンでログインするルートグループ。
type FederatedRoutes struct{ *Handler }

// Register はルートを登録する。
func (r FederatedRoutes) Register(rg *gin.RouterGroup) {
	rg.POST("/login", r.handleLogin())
}

// handleMe は検証済みトークンのクレームを返すハンドラを返す。
func (h *Handler) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.RespondSuccess(c, http.StatusOK, auth.GetIdentity(c))
	}
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// IDToken はIDプロバイダーが発行したIDトークン。
	IDToken string `json:"idToken"`
}

// loginResponse はログインレスポンスのJSON構造。
type loginResponse struct {
	// User はログインしたユーザー。
	User User `json:"user"`
	// Persisted はユーザーが永続化ストアに保存されたかどうか。
	Persisted bool `json:"persisted"`
}

// handleLogin はIDトークンを検証し、ユーザーを登録または更新するハンドラを返す。
// 永続化ストアに接続できない場合もログイン自体は成功させる。
func (h *Handler) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.verifier == nil {
			middleware.AbortWithFailure(c, http.StatusServiceUnavailable, auth.MessageAuthUnavailable)
			return
		}

		var req loginRequest
		if err := c.ShouldBindBodyWithJSON(&req); err != nil || strings.TrimSpace(req.IDToken) == "" {
			middleware.AbortWithFailure(c, http.StatusBadRequest, messageIDTokenRequired)
			return
		}

		token, err := h.verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(req.IDToken))
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				middleware.AbortWithFailure(c, http.StatusUnauthorized, auth.MessageInvalidToken)
				return
			}
			_ = c.Error(err)
			return
		}

		now := h.now().UTC().Truncate(time.Microsecond)
		user := User{
			ID:          token.UID,
			Email:       token.Email,
			DisplayName: token.Name,
			AvatarURL:   token.Picture,
			CreatedAt:   now,
			LastLoginAt: now,
		}

		var db *sqlx.DB
		if h.provider != nil {
			db = h.provider.Get(c.Request.Context())
		}
		if db == nil {
			middleware.RespondSuccess(c, http.StatusOK, loginResponse{User: user})
			return
		}

		saved, err := NewStore(db).Upsert(c.Request.Context(), user)
		if err != nil {
			_ = c.Error(err)
			return
		}
		middleware.RespondSuccess(c, http.StatusOK, loginResponse{User: saved, Persisted: true})
	}
}
