// Package token はリレートークン（署名付きベアラートークン）の
// 発行・検証・フィンガープリント計算を提供する。
//
// トークンはHS256で署名された自己完結型のJWTであり、有効性は署名と
// クレーム検査のみで決まる。サーバー側に状態は持たない。
package token
