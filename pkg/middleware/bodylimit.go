package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimit はリクエストボディの読み取りを指定バイト数までに制限する
// Ginミドルウェアを返す。超過時は後続のボディ読み取りが
// *http.MaxBytesErrorで失敗する。
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
