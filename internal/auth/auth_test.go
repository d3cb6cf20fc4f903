package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/journal/internal/identity"
	"github.com/nao1215/journal/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeVerifier はテスト用のTokenVerifier。
type fakeVerifier struct {
	// tokens は有効なトークン文字列と検証結果の対応。
	tokens map[string]*identity.Token
	// err は設定されている場合、常にこのエラーを返す。
	err error
}

func (f *fakeVerifier) VerifyIDToken(_ context.Context, raw string) (*identity.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	if token, ok := f.tokens[raw]; ok {
		return token, nil
	}
	return nil, identity.ErrInvalidToken
}

// newAuthRouter はAuthenticateを適用したテスト用ルーターを生成する。
func newAuthRouter(verifier TokenVerifier) *gin.Engine {
	router := gin.New()
	router.Use(middleware.FailureNormalizer(slog.New(slog.NewTextHandler(io.Discard, nil))))
	router.GET("/protected", Authenticate(verifier), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c), "email": GetIdentity(c).Email})
	})
	return router
}

// TestAuthenticate はAuthenticateミドルウェアを検証する。
func TestAuthenticate(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{tokens: map[string]*identity.Token{
		"valid-token": {UID: "uid-123", Email: "test@example.com"},
	}}

	t.Run("有効なトークンでユーザー情報がコンテキストに設定されること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		newAuthRouter(verifier).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Body.String(); !strings.Contains(got, `"user_id":"uid-123"`) {
			t.Errorf("ボディ = %s, user_idが含まれていない", got)
		}
	})

	unauthorized := []struct {
		name   string
		header string
	}{
		{name: "Authorizationヘッダーが無い場合", header: ""},
		{name: "Bearer形式でない場合", header: "Basic dXNlcjpwYXNz"},
		{name: "トークンが空の場合", header: "Bearer  "},
		{name: "無効なトークンの場合", header: "Bearer invalid-token"},
	}
	for _, tt := range unauthorized {
		t.Run(tt.name+"は401が返ること", func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			newAuthRouter(verifier).ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}

	t.Run("IDプロバイダーが未設定の場合は503が返ること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		newAuthRouter(nil).ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
	})

	t.Run("想定外の検証エラーはFailureNormalizerで500に変換されること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		newAuthRouter(&fakeVerifier{err: errors.Join(identity.ErrCertificateUnavailable, errors.New("dial tcp: timeout"))}).ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if got, want := strings.TrimSpace(w.Body.String()), `{"success":false,"message":"Something went wrong!"}`; got != want {
			t.Errorf("ボディ = %s, want %s", got, want)
		}
	})
}

// TestGetUserID は未認証時のユーザーID取得を検証する。
func TestGetUserID(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := GetUserID(c); got != "" {
		t.Errorf("GetUserID() = %q, want empty string", got)
	}
	if GetIdentity(c) != nil {
		t.Error("GetIdentity()がnil以外を返した")
	}
}
