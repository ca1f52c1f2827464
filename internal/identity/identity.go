package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying an issued client token.
const CookieName = "haven_client"

// CookieMaxAge keeps issued identities stable for a year.
const CookieMaxAge = 365 * 24 * time.Hour

// UnknownClient is the bucket used when no identifying metadata is available.
// Requests landing here share one conversation log; that is a documented
// degradation, not an error.
const UnknownClient = "unknown"

const fingerprintHexLen = 16

// Resolve determines the client identity for a request, in order of
// preference: explicit id supplied by the caller, previously issued cookie
// token, then request fingerprint. issued is true when the id was derived
// from the fingerprint; the HTTP layer should pin it with a cookie so the
// identity survives address or header changes.
func Resolve(r *http.Request, explicit string) (clientID string, issued bool) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, false
	}
	if c, err := r.Cookie(CookieName); err == nil {
		if id := strings.TrimSpace(c.Value); id != "" {
			return id, false
		}
	}
	return Fingerprint(r), true
}

// Issue generates a fresh opaque client token.
func Issue() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewCookie builds the long-lived identity cookie for an issued token.
func NewCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Fingerprint derives a stable anonymous identifier from request metadata.
// The hash is one-way and truncated, so no single input field is recoverable.
func Fingerprint(r *http.Request) string {
	ua := strings.TrimSpace(r.Header.Get("User-Agent"))
	lang := strings.TrimSpace(r.Header.Get("Accept-Language"))
	enc := strings.TrimSpace(r.Header.Get("Accept-Encoding"))
	addr := sourceAddr(r)

	if ua == "" && lang == "" && enc == "" && addr == "" {
		return UnknownClient
	}

	raw := strings.Join([]string{ua, lang, enc, addr}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:fingerprintHexLen]
}

func sourceAddr(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		// First hop is the original client when proxies append.
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
