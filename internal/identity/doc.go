// Package identity は外部IDプロバイダー（Firebase Authentication）との連携を提供する。
//
// base64エンコードされたサービスアカウントJSONを環境変数から読み込み、
// プロセスにつき一度だけIDクライアントを初期化する。IDクライアントは
// IDプロバイダーが発行したIDトークンを公開証明書で検証する。
//
// サービスアカウントが設定されていない場合は設定エラーとなり、
// ID検証を必要とするルートは利用できない。
package identity
