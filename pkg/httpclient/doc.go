// Package httpclient は外部サービスのJSON APIを呼び出すクライアントを提供する。
//
// IDプロバイダーの公開証明書の取得など、タイムアウト付きで
// JSONを取得する通信パターンを統一する。
package httpclient
