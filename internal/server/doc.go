// Package server はEmotion Journal APIのHTTPサーバーを組み立てる。
//
// すべてのリクエストは次の順に固定されたパイプラインを通過する。
//
//	RequestLogger → Metrics → FailureNormalizer → OriginGate → ParseBody → Diagnostics → ルートグループ
//
// ルートグループは固定のパスプレフィックスに登録され、処理しきれなかったエラーは
// FailureNormalizerが汎用の500レスポンスに変換する。
package server
