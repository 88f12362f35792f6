package relay

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// auditListLimit は監査一覧で返すレコードの上限数。
const auditListLimit = 100

// issuedTokenRecord は発行済みトークンの監査レコード。
type issuedTokenRecord struct {
	// ID は監査レコードの一意識別子（UUID）。
	ID string
	// Username はトークン所有者のユーザー名。
	Username string
	// IssuedBy は発行を実行した管理者のメールアドレス。
	IssuedBy string
	// ExpiresInDays はトークンの有効日数。
	ExpiresInDays int
	// TokenFingerprint はトークンのフィンガープリント。
	TokenFingerprint string
	// IssuedAt は発行日時。
	IssuedAt time.Time
}

// auditStore は発行済みトークンの監査台帳への読み書きを行う。
type auditStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// newAuditStore は新しい監査ストアを生成する。
func newAuditStore(db *sql.DB) *auditStore {
	return &auditStore{db: db}
}

// record は発行済みトークンの監査レコードを追記する。
func (a *auditStore) record(ctx context.Context, rec issuedTokenRecord) error {
	const query = `
INSERT INTO issued_tokens (id, username, issued_by, expires_in_days, token_fingerprint)
VALUES (?, ?, ?, ?, ?)`

	if _, err := a.db.ExecContext(ctx, query,
		rec.ID, rec.Username, rec.IssuedBy, rec.ExpiresInDays, rec.TokenFingerprint); err != nil {
		return fmt.Errorf("監査レコードの書き込みに失敗: %w", err)
	}
	return nil
}

// list は発行済みトークンの監査レコードを新しい順に返す。
func (a *auditStore) list(ctx context.Context) ([]issuedTokenRecord, error) {
	const query = `
SELECT id, username, issued_by, expires_in_days, token_fingerprint, issued_at
FROM issued_tokens
ORDER BY issued_at DESC, id
LIMIT ?`

	rows, err := a.db.QueryContext(ctx, query, auditListLimit)
	if err != nil {
		return nil, fmt.Errorf("監査レコードの取得に失敗: %w", err)
	}
	defer rows.Close()

	records := make([]issuedTokenRecord, 0, auditListLimit)
	for rows.Next() {
		var rec issuedTokenRecord
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.IssuedBy,
			&rec.ExpiresInDays, &rec.TokenFingerprint, &rec.IssuedAt); err != nil {
			return nil, fmt.Errorf("監査レコードの読み取りに失敗: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("監査レコードの走査に失敗: %w", err)
	}

	return records, nil
}
