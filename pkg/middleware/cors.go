package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MessageCORSViolation はオリジンが許可されていない場合のメッセージ。
const MessageCORSViolation = "Not allowed by CORS"

// 事前リクエストに返すCORSヘッダーの値。
const (
	allowMethods = "GET,HEAD,PUT,PATCH,POST,DELETE"
	maxAge       = "86400"
)

// Decision はオリジン評価の結果。
type Decision struct {
	// Accepted はリクエストを受け付けるかどうか。
	Accepted bool
	// Origin は評価したOriginヘッダーの値。ヘッダーが無い場合は空。
	Origin string
}

// Rejected はリクエストが拒否されたかどうかを返す。
func (d Decision) Rejected() bool {
	return !d.Accepted
}

// CrossOrigin はクロスオリジンリクエストとして受け付けたかどうかを返す。
func (d Decision) CrossOrigin() bool {
	return d.Accepted && d.Origin != ""
}

// OriginGate は許可リストに基づいてクロスオリジンリクエストを受け付けるか判定する。
// 許可リストは生成時に確定し、以降変更されない。
type OriginGate struct {
	// allowed は許可されたオリジンの集合。
	allowed map[string]struct{}
	// logger は拒否したリクエストを記録するロガー。
	logger *slog.Logger
}

// NewOriginGate は許可リストからOriginGateを生成する。
func NewOriginGate(allowedOrigins []string, logger *slog.Logger) *OriginGate {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &OriginGate{allowed: allowed, logger: logger}
}

// Evaluate はOriginヘッダーの値を評価する。
// Originヘッダーが無いリクエスト（サーバー間通信、同一オリジン、ツール）は常に受け付ける。
func (g *OriginGate) Evaluate(origin string) Decision {
	if origin == "" {
		return Decision{Accepted: true}
	}
	_, ok := g.allowed[origin]
	return Decision{Accepted: ok, Origin: origin}
}

// Middleware はOriginGateをGinミドルウェアとして返す。
// 許可されたオリジンには資格情報付きアクセスを許可するヘッダーを付与し、
// 許可されていないオリジンは403で中断する。OPTIONSリクエストは評価後に204で中断する。
func (g *OriginGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.Evaluate(c.GetHeader("Origin"))
		if d.Origin != "" {
			c.Header("Vary", "Origin")
		}

		if d.Rejected() {
			g.logger.Warn("[CORS] 許可されていないオリジンからのリクエストを拒否しました",
				"origin", d.Origin, "method", c.Request.Method, "path", c.Request.URL.Path)
			AbortWithFailure(c, http.StatusForbidden, MessageCORSViolation)
			return
		}

		if d.CrossOrigin() {
			c.Header("Access-Control-Allow-Origin", d.Origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", allowMethods)
			if requested := c.GetHeader("Access-Control-Request-Headers"); requested != "" {
				c.Header("Access-Control-Allow-Headers", requested)
				c.Header("Vary", "Origin, Access-Control-Request-Headers")
			}
			c.Header("Access-Control-Max-Age", maxAge)
			c.Header("Content-Length", "0")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
