// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// リクエストは次の順序でパイプラインを通過する。
//
//	RequestLogger → Metrics → FailureNormalizer → OriginGate → ParseBody → Diagnostics → ルートグループ
//
// FailureNormalizerは後段で処理されなかったエラーやパニックを統一形式のレスポンスに
// 変換する。RequestLoggerとMetricsはその外側に置き、正規化後のステータスを記録する。各段は検査・中断・転送のいずれかを行う。
package middleware
