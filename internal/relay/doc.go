// Package relay は認証付きリバースプロキシリレーの内部実装を提供する。
//
// 署名付きベアラートークンの保有者からの許可されたHTTPリクエストを、
// 固定された単一のアップストリームオリジンへ転送する。トークンの発行は
// 前段の認証プロキシを通過した管理者のみが実行でき、発行のたびに
// SQLiteの監査台帳へ記録される。
package relay
