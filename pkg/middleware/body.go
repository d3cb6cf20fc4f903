package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// MaxBodyBytes はJSONボディの最大サイズ。
const MaxBodyBytes = 100 << 10

// ボディ解析の失敗メッセージ。
const (
	MessageInvalidJSON    = "Invalid JSON body"
	MessageBodyTooLarge   = "Request entity too large"
	MessageBodyUnreadable = "Request body could not be read"
)

// contextKeyBody はパース済みのボディを格納するコンテキストキー。
const contextKeyBody = "parsed_body"

// ParseBody はJSONボディを一度だけ読み込んでパースするGinミドルウェアを返す。
//
// Content-Typeがapplication/jsonのリクエストのみ対象とする。読み込んだボディは
// 後段のハンドラーが再度バインドできるようRequest.Bodyに戻し、gin.BodyBytesKeyにも格納する。
// トップレベルがオブジェクトの場合はBodyで取得できる。
func ParseBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.ContentType() != binding.MIMEJSON {
			c.Next()
			return
		}

		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxBodyBytes+1))
		if err != nil {
			AbortWithFailure(c, http.StatusBadRequest, MessageBodyUnreadable)
			return
		}
		if len(raw) > MaxBodyBytes {
			AbortWithFailure(c, http.StatusRequestEntityTooLarge, MessageBodyTooLarge)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		c.Set(gin.BodyBytesKey, raw)

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			c.Next()
			return
		}
		// オブジェクトと配列のみ受け付ける
		if trimmed[0] != '{' && trimmed[0] != '[' {
			AbortWithFailure(c, http.StatusBadRequest, MessageInvalidJSON)
			return
		}

		var parsed any
		if err := json.Unmarshal(trimmed, &parsed); err != nil {
			AbortWithFailure(c, http.StatusBadRequest, MessageInvalidJSON)
			return
		}
		if fields, ok := parsed.(map[string]any); ok {
			c.Set(contextKeyBody, fields)
		}

		c.Next()
	}
}

// Body はParseBodyがパースしたトップレベルのオブジェクトを返す。
// ボディが無い、またはオブジェクトでない場合は空のマップを返す。
func Body(c *gin.Context) map[string]any {
	if v, ok := c.Get(contextKeyBody); ok {
		if fields, ok := v.(map[string]any); ok {
			return fields
		}
	}
	return map[string]any{}
}
