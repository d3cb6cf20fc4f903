package journal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/journal/internal/auth"
	"github.com/nao1215/journal/pkg/middleware"
)

// クライアントエラーのメッセージ。
const (
	messageEntryRequired = "Title and content are required"
	messageEntryNotFound = "Journal entry not found"
	messageQueryRequired = "Query parameter q is required"
)

// SearchLimit は検索結果の最大件数。
const SearchLimit = 50

// contextKeyStore はリクエストごとのStoreを格納するコンテキストキー。
const contextKeyStore = "journal_store"

// Provider は接続ハンドルを提供する。接続が無い場合はnilを返す。
type Provider interface {
	Get(ctx context.Context) *sqlx.DB
}

// Handler は日記関連のルートグループが共有する依存関係を保持する。
type Handler struct {
	// provider は接続ハンドルの提供元。
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

// JournalRoutes は日記エントリーのCRUDルートグループ。
type JournalRoutes struct{ *Handler }

// Register はルートを登録する。
func (r JournalRoutes) Register(rg *gin.RouterGroup) {
	rg.Use(auth.Authenticate(r.verifier), r.requireStore())
	rg.POST("", r.handleCreate())
	rg.GET("", r.handleList())
	rg.GET("/:id", r.handleGet())
	rg.PUT("/:id", r.handleUpdate())
	rg.DELETE("/:id", r.handleDelete())
}

// InsightsRoutes は気分の集計ルートグループ。
type InsightsRoutes struct{ *Handler }

// Register はルートを登録する。
func (r InsightsRoutes) Register(rg *gin.RouterGroup) {
	rg.Use(auth.Authenticate(r.verifier), r.requireStore())
	rg.GET("/moods", r.handleMoods())
}

// SearchRoutes は検索ルートグループ。
type SearchRoutes struct{ *Handler }

// Register はルートを登録する。
func (r SearchRoutes) Register(rg *gin.RouterGroup) {
	rg.Use(auth.Authenticate(r.verifier), r.requireStore())
	rg.GET("", r.handleSearch())
}

// requireStore は接続ハンドルを取得してStoreをコンテキストに設定するミドルウェアを返す。
// 接続が無い場合は503で中断する。
func (h *Handler) requireStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		var db *sqlx.DB
		if h.provider != nil {
			db = h.provider.Get(c.Request.Context())
		}
		if db == nil {
			middleware.AbortWithFailure(c, http.StatusServiceUnavailable, middleware.MessageDatabaseUnavailable)
			return
		}
		c.Set(contextKeyStore, NewStore(db))
		c.Next()
	}
}

// storeFrom はコンテキストからStoreを取得する。
func storeFrom(c *gin.Context) *Store {
	return c.MustGet(contextKeyStore).(*Store)
}

// entryRequest は日記エントリーの作成・更新リクエストのJSON構造。
type entryRequest struct {
	// Title はタイトル。
	Title string `json:"title"`
	// Content は本文。
	Content string `json:"content"`
	// Mood は気分を表すラベル。
	Mood string `json:"mood"`
}

// bindEntry はリクエストボディを読み取り、必須項目を検証する。
// 失敗した場合は400を書き込みfalseを返す。
func bindEntry(c *gin.Context) (entryRequest, bool) {
	var req entryRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		middleware.AbortWithFailure(c, http.StatusBadRequest, messageEntryRequired)
		return entryRequest{}, false
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	req.Mood = strings.ToLower(strings.TrimSpace(req.Mood))
	if req.Title == "" || req.Content == "" {
		middleware.AbortWithFailure(c, http.StatusBadRequest, messageEntryRequired)
		return entryRequest{}, false
	}
	return req, true
}

// handleCreate は日記エントリーの作成を処理するハンドラを返す。
func (h *Handler) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindEntry(c)
		if !ok {
			return
		}

		now := h.now().UTC().Truncate(time.Microsecond)
		entry := Entry{
			ID:        uuid.NewString(),
			UserID:    auth.GetUserID(c),
			Title:     req.Title,
			Content:   req.Content,
			Mood:      req.Mood,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := storeFrom(c).Create(c.Request.Context(), entry); err != nil {
			_ = c.Error(err)
			return
		}

		middleware.RespondSuccess(c, http.StatusCreated, entry)
	}
}

// handleList はユーザーの日記エントリー一覧を処理するハンドラを返す。
func (h *Handler) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := storeFrom(c).List(c.Request.Context(), auth.GetUserID(c))
		if err != nil {
			_ = c.Error(err)
			return
		}
		middleware.RespondSuccess(c, http.StatusOK, entries)
	}
}

// handleGet は日記エントリーの取得を処理するハンドラを返す。
func (h *Handler) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := storeFrom(c).Get(c.Request.Context(), auth.GetUserID(c), c.Param("id"))
		if err != nil {
			h.renderStoreError(c, err)
			return
		}
		middleware.RespondSuccess(c, http.StatusOK, entry)
	}
}

// handleUpdate は日記エントリーの更新を処理するハンドラを返す。
func (h *Handler) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindEntry(c)
		if !ok {
			return
		}

		store := storeFrom(c)
		userID := auth.GetUserID(c)
		entry, err := store.Get(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			h.renderStoreError(c, err)
			return
		}

		entry.Title = req.Title
		entry.Content = req.Content
		entry.Mood = req.Mood
		entry.UpdatedAt = h.now().UTC().Truncate(time.Microsecond)
		if err := store.Update(c.Request.Context(), entry); err != nil {
			h.renderStoreError(c, err)
			return
		}

		middleware.RespondSuccess(c, http.StatusOK, entry)
	}
}

// handleDelete は日記エントリーの削除を処理するハンドラを返す。
func (h *Handler) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := storeFrom(c).Delete(c.Request.Context(), auth.GetUserID(c), id); err != nil {
			h.renderStoreError(c, err)
			return
		}
		middleware.RespondSuccess(c, http.StatusOK, gin.H{"id": id})
	}
}

// handleMoods は気分ごとの集計を処理するハンドラを返す。
func (h *Handler) handleMoods() gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := storeFrom(c).CountByMood(c.Request.Context(), auth.GetUserID(c))
		if err != nil {
			_ = c.Error(err)
			return
		}
		middleware.RespondSuccess(c, http.StatusOK, counts)
	}
}

// handleSearch は日記エントリーの検索を処理するハンドラを返す。
func (h *Handler) handleSearch() gin.HandlerFunc {
	return func(c *gin.Context) {
		term := strings.TrimSpace(c.Query("q"))
		if term == "" {
			middleware.AbortWithFailure(c, http.StatusBadRequest, messageQueryRequired)
			return
		}

		entries, err := storeFrom(c).Search(c.Request.Context(), auth.GetUserID(c), term, SearchLimit)
		if err != nil {
			_ = c.Error(err)
			return
		}
		middleware.RespondSuccess(c, http.StatusOK, entries)
	}
}

// renderStoreError はErrNotFoundを404として書き込み、それ以外はFailureNormalizerに委ねる。
func (h *Handler) renderStoreError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		middleware.AbortWithFailure(c, http.StatusNotFound, messageEntryNotFound)
		return
	}
	_ = c.Error(fmt.Errorf("日記エントリーの処理に失敗 (id=%s): %w", c.Param("id"), err))
}
