// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// リレートークンの検証、認証プロキシ経由の管理者ゲート、固定ウィンドウの
// レート制限、セキュリティヘッダー付与、リクエストボディ制限、
// リクエストログ、パニックリカバリを含む。ミドルウェアはそれぞれ独立して
// おり、ルートごとに順序を指定して合成する。
package middleware
