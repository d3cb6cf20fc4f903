// Package account は認証済みユーザーの情報取得と、
// 外部IDプロバイダーのIDトークンによるログインのルートグループを提供する。
package account
