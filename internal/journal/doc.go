// Package journal は日記エントリーの作成・閲覧・更新・削除と、
// 気分ごとの集計および全文検索のルートグループを提供する。
//
// すべてのルートは検証済みユーザーにスコープされる。永続化ストアへの接続が
// 無い場合は503を返し、ストアのエラーはFailureNormalizerに委ねる。
package journal
