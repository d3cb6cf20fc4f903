package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// FailureNormalizer は後段で処理されなかったエラーとパニックを統一形式のレスポンスに変換する
// Ginミドルウェアを返す。ルートグループを含む後段すべてより外側に置く。
//
// 元のエラー内容はサーバー側のログにのみ出力し、クライアントには汎用メッセージを返す。
// 既にレスポンスが書き込まれている場合はログ出力のみ行う。
func FailureNormalizer(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("[PANIC] 未処理のパニックが発生しました",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()))
				normalize(c)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		logger.Error("未処理のエラーが発生しました",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"error", c.Errors.String())
		normalize(c)
	}
}

// normalize はレスポンスが未送信の場合に500の失敗レスポンスを書き込む。
func normalize(c *gin.Context) {
	if c.Writer.Written() {
		c.Abort()
		return
	}
	AbortWithFailure(c, http.StatusInternalServerError, MessageSomethingWentWrong)
}
