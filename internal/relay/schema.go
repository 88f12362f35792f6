package relay

import (
	"database/sql"
	"fmt"
)

// 発行済みトークンの監査台帳スキーマ。トークン本体は保存せず、
// フィンガープリントのみを記録する。
const schema = `
CREATE TABLE IF NOT EXISTS issued_tokens (
    -- 監査レコードの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- トークン所有者のユーザー名
    username TEXT NOT NULL,
    -- 発行を実行した管理者のメールアドレス
    issued_by TEXT NOT NULL,
    -- トークンの有効日数
    expires_in_days INTEGER NOT NULL,
    -- トークンのフィンガープリント（ログ相関用）
    token_fingerprint TEXT NOT NULL,
    -- 発行日時
    issued_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- 発行日時の降順一覧を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_issued_tokens_issued_at
    ON issued_tokens(issued_at);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
