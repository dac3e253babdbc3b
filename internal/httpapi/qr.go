package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/nextlevelbuilder/wareact/internal/reactor"
)

const qrImageSize = 320

// handleQRImage renders the last pairing QR as PNG. 404 once the QR is
// absent or older than the TTL; a stale QR cannot be scanned anyway.
func (s *Server) handleQRImage(w http.ResponseWriter, _ *http.Request) {
	qr, at := s.core.QR()
	if qr == "" || time.Since(at) > reactor.QRTTL {
		http.Error(w, "QR not available (yet or expired)", http.StatusNotFound)
		return
	}

	png, err := qrcode.Encode(qr, qrcode.Medium, qrImageSize)
	if err != nil {
		http.Error(w, "QR render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// handleQRPage serves a self-refreshing page embedding the QR image.
func (s *Server) handleQRPage(w http.ResponseWriter, r *http.Request) {
	qr, at := s.core.QR()
	hasQR := qr != "" && time.Since(at) <= reactor.QRTTL

	token := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	tokenQS := ""
	if token != "" {
		tokenQS = "token=" + url.QueryEscape(token) + "&"
	}

	body := `<p>QR not available yet. Keep this page open; it refreshes every 8s.</p>`
	if hasQR {
		body = fmt.Sprintf(`<img src="/qr.png?%sts=%d" alt="QR">`, tokenQS, time.Now().UnixMilli())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html><html><head>
<meta http-equiv="refresh" content="8">
<title>Link device</title>
<style>
  body{display:grid;place-items:center;height:100vh;background:#0b0b0b;color:#fff;font:16px system-ui;margin:0}
  img{image-rendering:pixelated;border-radius:12px}
  p,small{opacity:.8}
</style>
</head><body>
<h1>Scan the QR</h1>
%s
<small>valid for %d seconds</small>
</body></html>`, body, int(reactor.QRTTL.Seconds()))
}
