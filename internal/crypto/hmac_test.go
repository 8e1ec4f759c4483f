package crypto

import (
	"net/http"
	"strings"
	"testing"
)

func TestStreamHeadersAtDeterministic(t *testing.T) {
	auth := &HMACAuth{Key: "test-key", Secret: "test-secret"}

	h1 := auth.StreamHeadersAt(http.MethodGet, "/api/v1/ws", nil, 1700000000000)
	h2 := auth.StreamHeadersAt(http.MethodGet, "/api/v1/ws", nil, 1700000000000)

	if h1["Authorization"] != "test-key" {
		t.Fatalf("Authorization = %s, want test-key", h1["Authorization"])
	}
	if h1["X-Authorization-Timestamp"] != "1700000000000" {
		t.Fatalf("timestamp = %s", h1["X-Authorization-Timestamp"])
	}
	sig := h1["X-Authorization-Signature-SHA256"]
	if len(sig) != 64 {
		t.Fatalf("signature length = %d, want 64 hex chars", len(sig))
	}
	if sig != h2["X-Authorization-Signature-SHA256"] {
		t.Fatal("same inputs produced different signatures")
	}
}

func TestStreamHeadersVaryWithInputs(t *testing.T) {
	auth := &HMACAuth{Key: "test-key", Secret: "test-secret"}
	base := auth.StreamHeadersAt(http.MethodGet, "/api/v1/ws", nil, 1700000000000)

	variants := []map[string]string{
		auth.StreamHeadersAt(http.MethodPost, "/api/v1/ws", nil, 1700000000000),
		auth.StreamHeadersAt(http.MethodGet, "/api/v1/reports", nil, 1700000000000),
		auth.StreamHeadersAt(http.MethodGet, "/api/v1/ws", []byte("body"), 1700000000000),
		auth.StreamHeadersAt(http.MethodGet, "/api/v1/ws", nil, 1700000000001),
	}
	for i, v := range variants {
		if v["X-Authorization-Signature-SHA256"] == base["X-Authorization-Signature-SHA256"] {
			t.Errorf("variant %d produced the same signature as base", i)
		}
	}
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "supersecretkey", Secret: "supersecretvalue"}
	s := auth.String()
	if strings.Contains(s, "secretkey") || strings.Contains(s, "secretvalue") {
		t.Fatalf("String leaked credentials: %s", s)
	}
	if !strings.Contains(s, "supe") {
		t.Fatalf("String should keep a short prefix for identification: %s", s)
	}
}
