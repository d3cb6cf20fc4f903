// Package database は永続化ストアへの接続を管理する。
//
// 接続はプロセスにつき最大一度だけ試行され、結果（接続ハンドルまたは接続なし）は
// プロセスが再起動するまで再利用される。接続URIが設定されていない場合は
// 接続を試行せず、常に接続なしを返す。接続に失敗してもプロセスは停止せず、
// 永続化を必要としないルートは引き続き応答する。
//
// サポートするURI:
//   - postgres://, postgresql:// （pgxドライバー）
//   - sqlite://<path>, file:<path>, :memory: （SQLiteドライバー）
package database
