package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/journal/internal/identity"
	"github.com/nao1215/journal/pkg/middleware"
)

// 認証失敗時のメッセージ。
const (
	MessageAuthRequired    = "Authorization header is required"
	MessageInvalidBearer   = "Invalid bearer token format"
	MessageInvalidToken    = "Invalid or expired token"
	MessageAuthUnavailable = "Authentication is not configured"
)

// contextKeyIdentity は検証済みIDトークンを格納するコンテキストキー。
const contextKeyIdentity = "identity"

// TokenVerifier はIDトークンを検証するインターフェース。
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, raw string) (*identity.Token, error)
}

// Authenticate はBearerトークンとして送られたIDトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに検証済みトークンを設定する。
// verifierがnilの場合（IDプロバイダーが未設定）は503で中断する。
// 公開証明書の取得失敗など想定外のエラーはmiddleware.FailureNormalizerに委ねる。
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			middleware.AbortWithFailure(c, http.StatusServiceUnavailable, MessageAuthUnavailable)
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			middleware.AbortWithFailure(c, http.StatusUnauthorized, MessageAuthRequired)
			return
		}

		raw, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			middleware.AbortWithFailure(c, http.StatusUnauthorized, MessageInvalidBearer)
			return
		}

		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				middleware.AbortWithFailure(c, http.StatusUnauthorized, MessageInvalidToken)
				return
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(contextKeyIdentity, token)
		c.Next()
	}
}

// GetIdentity はGinコンテキストから検証済みトークンを取得する。
// Authenticateミドルウェアが事前に適用されている必要がある。
func GetIdentity(c *gin.Context) *identity.Token {
	v, _ := c.Get(contextKeyIdentity)
	if token, ok := v.(*identity.Token); ok {
		return token
	}
	return nil
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// 未認証の場合は空文字列を返す。
func GetUserID(c *gin.Context) string {
	if token := GetIdentity(c); token != nil {
		return token.UID
	}
	return ""
}
