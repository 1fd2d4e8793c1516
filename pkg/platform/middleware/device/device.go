package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

const maxUserAgentLength = 512

// Middleware classifies the caller's User-Agent into a short device label
// ("Firefox on Linux x86_64", "bot Googlebot") for audit events.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if label := Label(r.UserAgent()); label != "" {
			r = r.WithContext(WithDevice(r.Context(), label))
		}
		next.ServeHTTP(w, r)
	})
}

// Label summarises a raw User-Agent header.
func Label(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) > maxUserAgentLength {
		raw = raw[:maxUserAgentLength]
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	if ua.Bot() {
		return strings.TrimSpace("bot " + browser)
	}

	var b strings.Builder
	b.WriteString(browser)
	if os := ua.OS(); os != "" {
		if b.Len() > 0 {
			b.WriteString(" on ")
		}
		b.WriteString(os)
	}
	if ua.Mobile() {
		b.WriteString(" (mobile)")
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
