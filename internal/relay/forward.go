package relay

import (
	"io"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/sg-stats-relay/pkg/logger"
	"github.com/nao1215/sg-stats-relay/pkg/middleware"
)

// upstreamTimeout はアップストリームへのリクエスト全体のタイムアウト。
const upstreamTimeout = 30 * time.Second

// hopByHopHeaders は転送してはならないホップバイホップヘッダー。
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder は検証済みリクエストを単一のアップストリームオリジンへ転送する。
type Forwarder struct {
	// target は転送先のオリジン（スキームとホストのみ）。
	target *url.URL
	// client はタイムアウトと接続数制限を設定したHTTPクライアント。
	client *http.Client
	// stripHeaders はアップストリームへ転送しないヘッダー名（正規形）。
	// リレー資格情報と認証プロキシのヘッダーをアップストリームから隠す。
	stripHeaders map[string]struct{}
}

// NewForwarder は新しいフォワーダーを生成する。
// credentialHeadersにはリレー資格情報を運ぶヘッダー名を指定する。
func NewForwarder(target *url.URL, credentialHeaders []string) *Forwarder {
	strip := make(map[string]struct{}, len(credentialHeaders))
	for _, h := range credentialHeaders {
		strip[textproto.CanonicalMIMEHeaderKey(h)] = struct{}{}
	}

	return &Forwarder{
		target: target,
		client: &http.Client{
			Timeout: upstreamTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 32,
				MaxConnsPerHost:     64,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		stripHeaders: strip,
	}
}

// Forward は検証済みリレーパスへリクエストを転送し、レスポンスを
// バッファせずにストリーミングで書き戻す。アップストリーム障害時は
// 502を返し、リトライは行わない（リトライ方針はクライアントの責務）。
// クライアントが切断した場合はリクエストコンテキスト経由で
// アップストリーム呼び出しもキャンセルされる。
func (f *Forwarder) Forward(c *gin.Context, relayPath string) {
	rel, err := url.Parse(relayPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リレーパスの解析に失敗しました"})
		return
	}
	outbound := f.target.ResolveReference(rel)

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, outbound.String(), c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "転送リクエストの作成に失敗しました"})
		logger.Error("転送リクエストの作成に失敗", logger.Fields{
			"url":   outbound.String(),
			"error": err.Error(),
		})
		return
	}

	f.copyRequestHeaders(req, c.Request)
	req.Host = f.target.Host

	resp, err := f.client.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "アップストリームとの通信に失敗しました"})
		logger.Error("アップストリームへの転送に失敗", logger.Fields{
			"url":              outbound.String(),
			"relayUser":        middleware.GetRelayUser(c),
			"tokenFingerprint": middleware.GetTokenFingerprint(c),
			"error":            err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}
	c.Status(resp.StatusCode)

	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		// ステータス送信後はエラーを返せないためログのみ記録する
		logger.Warn("レスポンスのストリーミングが中断", logger.Fields{
			"url":   outbound.String(),
			"error": err.Error(),
		})
	}
}

// copyRequestHeaders は元リクエストのヘッダーを転送リクエストへ複製する。
// ホップバイホップヘッダーとリレー資格情報は複製せず、X-Forwarded-*を設定する。
func (f *Forwarder) copyRequestHeaders(dst *http.Request, src *http.Request) {
	for name, values := range src.Header {
		canonical := textproto.CanonicalMIMEHeaderKey(name)
		if isHopByHop(canonical) {
			continue
		}
		if _, ok := f.stripHeaders[canonical]; ok {
			continue
		}
		for _, v := range values {
			dst.Header.Add(canonical, v)
		}
	}

	proto := "http"
	if src.TLS != nil {
		proto = "https"
	}
	dst.Header.Set("X-Forwarded-For", clientAddr(src))
	dst.Header.Set("X-Forwarded-Proto", proto)
	dst.Header.Set("X-Forwarded-Host", src.Host)
}

// clientAddr はリクエスト元のIPアドレスを返す。
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// isHopByHop は指定ヘッダーがホップバイホップヘッダーかどうかを返す。
func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}
