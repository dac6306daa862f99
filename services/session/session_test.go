package session

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func fixedCodec(now time.Time) *Codec {
	c := NewCodec(true)
	c.Now = func() time.Time { return now }
	return c
}

func encodeRaw(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := fixedCodec(now)

	in := Session{Token: "t", UserID: "1", Username: "teacher1", Email: "t@x.com", Type: 1, ExpiresAt: now.Add(time.Hour).UnixMilli()}
	value, err := c.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.ContainsAny(value, "+/=") {
		t.Fatalf("encoded value is not url-safe: %q", value)
	}

	out := c.Decode(value)
	if out == nil {
		t.Fatalf("expected a session")
	}
	if *out != in {
		t.Fatalf("round trip mismatch: %+v vs %+v", *out, in)
	}
}

func TestDecodeTreatsBadInputAsAbsent(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := fixedCodec(now)
	future := now.Add(time.Hour).UnixMilli()
	past := now.Add(-time.Second).UnixMilli()

	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"not base64", "%%%not-base64%%%"},
		{"not json", encodeRaw("hello")},
		{"json array", encodeRaw(`[1,2,3]`)},
		{"json null", encodeRaw(`null`)},
		{"missing token", encodeRaw(`{"userId":"1","username":"u","email":"e","type":1,"expiresAt":` + itoa(future) + `}`)},
		{"numeric user id", encodeRaw(`{"token":"t","userId":1,"username":"u","email":"e","type":1,"expiresAt":` + itoa(future) + `}`)},
		{"string type", encodeRaw(`{"token":"t","userId":"1","username":"u","email":"e","type":"1","expiresAt":` + itoa(future) + `}`)},
		{"missing expiry", encodeRaw(`{"token":"t","userId":"1","username":"u","email":"e","type":1}`)},
		{"expired", encodeRaw(`{"token":"t","userId":"1","username":"u","email":"e","type":1,"expiresAt":` + itoa(past) + `}`)},
		{"expires now", encodeRaw(`{"token":"t","userId":"1","username":"u","email":"e","type":1,"expiresAt":` + itoa(now.UnixMilli()) + `}`)},
		{"student role", encodeRaw(`{"token":"t","userId":"1","username":"u","email":"e","type":2,"expiresAt":` + itoa(future) + `}`)},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Decode(tc.value); got != nil {
				t.Fatalf("expected no session, got %+v", got)
			}
		})
	}
}

func TestDecodeAcceptsPaddedBase64(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := fixedCodec(now)
	payload := `{"token":"tok","userId":"42","username":"guru","email":"g@x.com","type":1,"expiresAt":` + itoa(now.Add(time.Minute).UnixMilli()) + `}`
	padded := base64.URLEncoding.EncodeToString([]byte(payload))

	if got := c.Decode(padded); got == nil || got.UserID != "42" {
		t.Fatalf("expected padded value to decode, got %+v", got)
	}
}

func TestIssueSetsCookie(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := fixedCodec(now)

	app := fiber.New()
	app.Get("/issue", func(ctx *fiber.Ctx) error {
		s, err := c.Issue(ctx, Identity{Token: "t", UserID: "1", Username: "teacher1", Email: "t@x.com", Type: 1})
		if err != nil {
			return err
		}
		if s.ExpiresAt != now.Add(TTL).UnixMilli() {
			t.Errorf("unexpected expiry %d", s.ExpiresAt)
		}
		return ctx.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/clear", func(ctx *fiber.Ctx) error {
		c.Clear(ctx)
		return ctx.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/issue", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	header := resp.Header.Get("Set-Cookie")
	for _, want := range []string{CookieName + "=", "max-age=28800", "path=/", "HttpOnly", "secure", "SameSite=Lax"} {
		if !strings.Contains(strings.ToLower(header), strings.ToLower(want)) {
			t.Fatalf("Set-Cookie %q missing %q", header, want)
		}
	}
	if strings.Contains(strings.ToLower(header), "domain=") {
		t.Fatalf("cookie must be host-only, got %q", header)
	}

	var issued *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == CookieName {
			issued = ck
		}
	}
	if issued == nil || c.Decode(issued.Value) == nil {
		t.Fatalf("issued cookie does not decode back to a session")
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/clear", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	cleared := resp.Header.Get("Set-Cookie")
	if !strings.HasPrefix(cleared, CookieName+"=;") {
		t.Fatalf("expected cookie to be cleared, got %q", cleared)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
