package middleware

import "github.com/gin-gonic/gin"

// MessageSomethingWentWrong は未処理エラー時にクライアントへ返す汎用メッセージ。
const MessageSomethingWentWrong = "Something went wrong!"

// MessageDatabaseUnavailable は永続化ストアに接続できない場合のメッセージ。
const MessageDatabaseUnavailable = "Database unavailable"

// Failure は失敗時のレスポンスボディ。
type Failure struct {
	// Success は常にfalse。
	Success bool `json:"success"`
	// Message は人が読むためのメッセージ。
	Message string `json:"message"`
}

// AbortWithFailure は失敗レスポンスを書き込み、後続のハンドラーを中断する。
func AbortWithFailure(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Failure{Success: false, Message: message})
}

// Envelope は成功時のレスポンスボディ。
type Envelope struct {
	// Success は常にtrue。
	Success bool `json:"success"`
	// Data はレスポンスの本体。
	Data any `json:"data"`
}

// RespondSuccess は成功レスポンスを書き込む。
func RespondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}
