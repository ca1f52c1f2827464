package identity

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFingerprintStableAcrossRequests(t *testing.T) {
	r1 := httptest.NewRequest("GET", "/v1/chat", nil)
	r1.Header.Set("User-Agent", "Mozilla/5.0")
	r1.Header.Set("Accept-Language", "en-US")
	r1.Header.Set("Accept-Encoding", "gzip")
	r1.RemoteAddr = "203.0.113.7:51234"

	r2 := httptest.NewRequest("GET", "/v1/chat", nil)
	r2.Header.Set("User-Agent", "Mozilla/5.0")
	r2.Header.Set("Accept-Language", "en-US")
	r2.Header.Set("Accept-Encoding", "gzip")
	r2.RemoteAddr = "203.0.113.7:61000" // new source port, same host

	a, b := Fingerprint(r1), Fingerprint(r2)
	if a != b {
		t.Fatalf("Fingerprint() = %q vs %q, want stable identifier", a, b)
	}
	if len(a) != fingerprintHexLen {
		t.Fatalf("Fingerprint() len = %d, want %d", len(a), fingerprintHexLen)
	}
	if strings.Contains(a, "Mozilla") {
		t.Fatalf("Fingerprint() leaks raw user agent: %q", a)
	}
}

func TestFingerprintDiffersByClient(t *testing.T) {
	r1 := httptest.NewRequest("GET", "/", nil)
	r1.Header.Set("User-Agent", "Mozilla/5.0")
	r2 := httptest.NewRequest("GET", "/", nil)
	r2.Header.Set("User-Agent", "curl/8.0")

	if Fingerprint(r1) == Fingerprint(r2) {
		t.Fatalf("different user agents produced the same fingerprint")
	}
}

func TestFingerprintUnknownBucket(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Del("User-Agent")
	r.RemoteAddr = ""

	if got := Fingerprint(r); got != UnknownClient {
		t.Fatalf("Fingerprint() = %q, want %q", got, UnknownClient)
	}
}

func TestFingerprintPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	r.RemoteAddr = "10.0.0.1:443"

	direct := httptest.NewRequest("GET", "/", nil)
	direct.Header.Set("User-Agent", "Mozilla/5.0")
	direct.RemoteAddr = "198.51.100.4:1234"

	if Fingerprint(r) != Fingerprint(direct) {
		t.Fatalf("forwarded-for client should fingerprint like the direct client")
	}
}

func TestResolvePrecedence(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.AddCookie(NewCookie("tok-cookie", false))

	if got, _ := Resolve(r, "explicit-id"); got != "explicit-id" {
		t.Fatalf("Resolve() = %q, want explicit id to win", got)
	}
	if got, _ := Resolve(r, ""); got != "tok-cookie" {
		t.Fatalf("Resolve() = %q, want cookie token", got)
	}

	bare := httptest.NewRequest("GET", "/", nil)
	bare.Header.Set("User-Agent", "Mozilla/5.0")
	if got, _ := Resolve(bare, ""); got != Fingerprint(bare) {
		t.Fatalf("Resolve() = %q, want fingerprint fallback", got)
	}
}

func TestIssueTokensAreOpaqueAndUnique(t *testing.T) {
	a, b := Issue(), Issue()
	if a == b {
		t.Fatalf("Issue() returned duplicate tokens")
	}
	if strings.Contains(a, "-") {
		t.Fatalf("Issue() token %q should be opaque hex-ish, no separators", a)
	}
}
