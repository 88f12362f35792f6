package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// newRateLimitedRouter はレート制限ミドルウェアを適用したテスト用ルーターを生成する。
func newRateLimitedRouter(limit int) *gin.Engine {
	router := gin.New()
	router.Use(RateLimit(limit, NewMemoryCounterStore()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// TestRateLimit はレート制限ミドルウェアを検証する。
func TestRateLimit(t *testing.T) {
	t.Parallel()

	t.Run("制限以内のリクエストが成功すること", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitedRouter(3)

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("%d回目のステータスコード = %d, want %d", i+1, w.Code, http.StatusOK)
			}
		}
	})

	t.Run("制限超過のリクエストに429が返ること", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitedRouter(2)

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			router.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("%d回目のステータスコード = %d, want %d", i+1, w.Code, http.StatusOK)
			}
		}

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusTooManyRequests {
			t.Errorf("制限超過時のステータスコード = %d, want %d", w.Code, http.StatusTooManyRequests)
		}
	})

	t.Run("標準レート制限ヘッダーが設定されること", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitedRouter(10)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)

		if got := w.Header().Get("RateLimit-Limit"); got != "10" {
			t.Errorf("RateLimit-Limit = %q, want %q", got, "10")
		}
		if got := w.Header().Get("RateLimit-Remaining"); got != "9" {
			t.Errorf("RateLimit-Remaining = %q, want %q", got, "9")
		}
		if got := w.Header().Get("RateLimit-Reset"); got == "" {
			t.Error("RateLimit-Resetヘッダーが設定されていない")
		}
	})

	t.Run("プロキシを信頼しない場合にX-Forwarded-Forの偽装でカウンタを分散できないこと", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		// プロキシを信頼しないため、ClientIP()は常に接続元アドレスを返す
		if err := router.SetTrustedProxies(nil); err != nil {
			t.Fatalf("信頼するプロキシの設定に失敗: %v", err)
		}
		router.Use(RateLimit(1, NewMemoryCounterStore()))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		var rejected int
		for i := 0; i < 10; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
			router.ServeHTTP(w, req)

			if w.Code == http.StatusTooManyRequests {
				rejected++
			}
		}

		if rejected != 9 {
			t.Errorf("429の件数 = %d, want 9", rejected)
		}
	})

	t.Run("異なるクライアントIPのカウンタが独立していること", func(t *testing.T) {
		t.Parallel()

		router := newRateLimitedRouter(1)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("1人目のステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		w2 := httptest.NewRecorder()
		req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
		req2.RemoteAddr = "10.0.0.2:1234"
		router.ServeHTTP(w2, req2)
		if w2.Code != http.StatusOK {
			t.Errorf("2人目のステータスコード = %d, want %d", w2.Code, http.StatusOK)
		}
	})
}

// TestMemoryCounterStore はインメモリカウンタストアを検証する。
func TestMemoryCounterStore(t *testing.T) {
	t.Parallel()

	t.Run("同一キー同一ウィンドウでカウンタが増加すること", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryCounterStore()
		window := time.Now().Truncate(time.Minute)

		for i := 1; i <= 3; i++ {
			if got := store.Increment("key-a", window); got != i {
				t.Errorf("Increment() = %d, want %d", got, i)
			}
		}
	})

	t.Run("ウィンドウが切り替わるとカウンタがリセットされること", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryCounterStore()
		window := time.Now().Truncate(time.Minute)

		store.Increment("key-b", window)
		store.Increment("key-b", window)

		next := window.Add(time.Minute)
		if got := store.Increment("key-b", next); got != 1 {
			t.Errorf("新ウィンドウのIncrement() = %d, want 1", got)
		}
	})

	t.Run("キーごとにカウンタが独立していること", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryCounterStore()
		window := time.Now().Truncate(time.Minute)

		store.Increment("key-c", window)
		store.Increment("key-c", window)
		if got := store.Increment("key-d", window); got != 1 {
			t.Errorf("別キーのIncrement() = %d, want 1", got)
		}
	})
}
