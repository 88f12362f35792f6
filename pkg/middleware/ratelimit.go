package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateLimitWindow は固定ウィンドウの長さ。
const rateLimitWindow = time.Minute

// CounterStore はレート制限カウンタの保存先を抽象化する。
// 単一インスタンスではインメモリ実装を使用し、複数インスタンスで
// カウンタを共有する場合は外部ストア実装に差し替える。
type CounterStore interface {
	// Increment は指定キーの指定ウィンドウにおけるカウンタを1増やし、
	// 増加後の値を返す。並行アクセスに対して安全でなければならない。
	Increment(key string, window time.Time) int
}

// memoryCounterStore はミューテックスで保護されたインメモリのカウンタストア。
type memoryCounterStore struct {
	// mu はentriesへのアクセスを保護する。
	mu sync.Mutex
	// entries はキーごとの現在ウィンドウとカウンタ。
	entries map[string]*counterEntry
	// lastSweep は古いエントリを掃除した最後のウィンドウ開始時刻。
	lastSweep time.Time
}

// counterEntry はひとつのキーに対するウィンドウ付きカウンタ。
type counterEntry struct {
	// window はカウント対象のウィンドウ開始時刻。
	window time.Time
	// count はウィンドウ内のリクエスト数。
	count int
}

// NewMemoryCounterStore は新しいインメモリカウンタストアを生成する。
func NewMemoryCounterStore() CounterStore {
	return &memoryCounterStore{entries: make(map[string]*counterEntry)}
}

// Increment は指定キーのカウンタを増やして返す。
// ウィンドウが切り替わっていた場合はカウンタをリセットする。
func (s *memoryCounterStore) Increment(key string, window time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.window.Equal(window) {
		e = &counterEntry{window: window}
		s.entries[key] = e
	}
	e.count++

	// ウィンドウが進むたびに、もうカウントされないエントリを削除してメモリを抑える
	if window.After(s.lastSweep) {
		s.lastSweep = window
		for k, v := range s.entries {
			if v.window.Before(window) {
				delete(s.entries, k)
			}
		}
	}

	return e.count
}

// RateLimit はクライアントIPごとの固定ウィンドウ（60秒）レート制限を行う
// Ginミドルウェアを返す。リレー面と管理面で別々のストアを渡すことで、
// 互いのカウンタを干渉させない。
func RateLimit(limitPerMinute int, store CounterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		window := time.Now().Truncate(rateLimitWindow)
		count := store.Increment(c.ClientIP(), window)

		remaining := limitPerMinute - count
		if remaining < 0 {
			remaining = 0
		}
		resetSeconds := int(math.Ceil(time.Until(window.Add(rateLimitWindow)).Seconds()))
		if resetSeconds < 0 {
			resetSeconds = 0
		}

		c.Header("RateLimit-Limit", strconv.Itoa(limitPerMinute))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(resetSeconds))

		if count > limitPerMinute {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "リクエスト数が制限を超えました。しばらく待ってから再試行してください",
			})
			return
		}

		c.Next()
	}
}
