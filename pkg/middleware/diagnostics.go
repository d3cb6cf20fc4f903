package middleware

import (
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

// undefinedToken はクライアントが未定義値を文字列化した際に送られてくる値。
// JSONには未定義値が存在しないため、この文字列を「明示的に未定義」として扱う。
// nullや空文字列とは区別する。
const undefinedToken = "undefined"

// Diagnostics はボディとクエリに明示的に未定義な値が含まれていないかを検査するGinミドルウェアを返す。
// 見つかった場合は警告ログを出力するが、リクエストを拒否したり変更したりはしない。
func Diagnostics(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		if keys := UndefinedKeys(Body(c), c.Request.URL.Query()); len(keys) > 0 {
			logger.Warn("[Diagnostics] 未定義の値を持つフィールドがあります",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"missing", strings.Join(keys, ", "))
		}
		c.Next()
	}
}

// UndefinedKeys は値が明示的に未定義なキーの一覧を返す。
// ボディのキー、クエリのキーの順にそれぞれ辞書順で並べ、重複は除く。
// nilのボディやクエリは空として扱う。
func UndefinedKeys(body map[string]any, query url.Values) []string {
	var bodyKeys []string
	for k, v := range body {
		if s, ok := v.(string); ok && s == undefinedToken {
			bodyKeys = append(bodyKeys, k)
		}
	}
	slices.Sort(bodyKeys)

	var queryKeys []string
	for k, values := range query {
		if slices.Contains(values, undefinedToken) && !slices.Contains(bodyKeys, k) {
			queryKeys = append(queryKeys, k)
		}
	}
	slices.Sort(queryKeys)

	return append(bodyKeys, queryKeys...)
}
