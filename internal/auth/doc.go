// Package auth はIDトークンによるBearer認証のGinミドルウェアを提供する。
package auth
