package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Scope はリレートークンのscopeクレームに設定する固定値。
// この値を持たないJWTはたとえ署名が正しくても受理しない。
const Scope = "sg-stats-relay"

// minSecretLength は署名秘密鍵の最小バイト長。
const minSecretLength = 32

// fingerprintLength はフィンガープリントの16進文字数。
// ログ相関用途には16文字で十分な衝突耐性がある。
const fingerprintLength = 16

// ErrInvalidToken はリレートークンの検証失敗を表す。
// 失敗理由の詳細はログにのみ記録し、クライアントへは返さない。
var ErrInvalidToken = errors.New("リレートークンが無効")

// Claims はリレートークンのクレーム（ペイロード）を表す。
type Claims struct {
	jwt.RegisteredClaims
	// Scope はトークンの用途を表す固定スコープ。
	Scope string `json:"scope"`
	// Username はトークン所有者のユーザー名。subクレームと同じ値を持つ。
	Username string `json:"username"`
}

// Service はリレートークンの発行・検証・フィンガープリント計算を行う。
// 署名アルゴリズムはHS256に固定し、アルゴリズム混同攻撃を防ぐ。
type Service struct {
	// secret はHMAC署名用の秘密鍵。プロセス起動時に固定される。
	secret []byte
}

// New は新しいトークンサービスを生成する。
// 秘密鍵が32バイト未満の場合はエラーを返す。
func New(secret string) (*Service, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("トークン秘密鍵は%dバイト以上が必要（現在%dバイト）", minSecretLength, len(secret))
	}
	return &Service{secret: []byte(secret)}, nil
}

// Issue は指定ユーザー名のリレートークンを発行する。
// expiresInDaysの範囲検証（1〜3650）は呼び出し側の責務。
func (s *Service) Issue(username string, expiresInDays int) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.AddDate(0, 0, expiresInDays)),
		},
		Scope:    Scope,
		Username: username,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("リレートークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はリレートークンを検証し、クレームを返す。
// 署名・アルゴリズム・scope・sub・有効期限のすべてが正しい場合のみ成功する。
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Scope != Scope {
		return nil, fmt.Errorf("%w: scopeクレームが不正", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subクレームが欠落", ErrInvalidToken)
	}

	return claims, nil
}

// Fingerprint はトークンのログ相関用フィンガープリントを返す。
// 一方向ハッシュの先頭16文字であり、認可判定には使用できない。
func (s *Service) Fingerprint(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}
