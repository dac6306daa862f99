package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"laporan_ramadhan/controllers"
	"laporan_ramadhan/database"
	"laporan_ramadhan/middleware"
	"laporan_ramadhan/routes"
	"laporan_ramadhan/services"
	"laporan_ramadhan/services/identity"
	"laporan_ramadhan/services/session"
	"laporan_ramadhan/utils"

	"github.com/gofiber/fiber/v2"
)

// 2026-03-10 08:00 WIB
var fixedNow = time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)

type fakeAuth struct {
	loggedOut []string
}

func (f *fakeAuth) Login(_ context.Context, identifier, password string) (*session.Identity, error) {
	switch {
	case identifier == "" || password == "":
		return nil, utils.ValidationError("Email/username dan password wajib diisi")
	case identifier == "student1":
		return nil, utils.ForbiddenError("Akses ditolak. Halaman laporan hanya untuk guru.")
	case password != "secret":
		return nil, utils.UpstreamError(http.StatusUnauthorized, "Kredensial salah")
	}
	return &session.Identity{Token: "t", UserID: "1", Username: identifier, Email: "t@x.com", Type: 1}, nil
}

func (f *fakeAuth) Logout(_ context.Context, s *session.Session) {
	f.loggedOut = append(f.loggedOut, s.Token)
}

type testEnv struct {
	app   *fiber.App
	auth  *fakeAuth
	codec *session.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	sheets := services.NewSheetService(db, utils.LoadLocation("Asia/Jakarta")).
		WithClock(func() time.Time { return fixedNow })
	codec := session.NewCodec(true)
	auth := &fakeAuth{}
	mock := identity.NewMockStudentLookup()

	app := fiber.New()
	app.Use(middleware.TeacherGate(codec))
	routes.SetupRoutes(app, routes.Controllers{
		Auth:       controllers.NewAuthController(auth, codec),
		Identity:   controllers.NewIdentityController(mock, mock),
		Sheets:     controllers.NewSheetController(sheets),
		Health:     controllers.NewHealthController(services.NewHealthService(db, nil, "test")),
		EnableMock: true,
	})
	return &testEnv{app: app, auth: auth, codec: codec}
}

func (e *testEnv) teacherCookie(t *testing.T) *http.Cookie {
	t.Helper()
	value, err := e.codec.Encode(session.Session{
		Token: "t", UserID: "1", Username: "teacher1", Email: "t@x.com", Type: 1,
		ExpiresAt: time.Now().Add(time.Hour).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return &http.Cookie{Name: session.CookieName, Value: value}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}, cookie *http.Cookie) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	out := map[string]interface{}{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode %s %s: %v", method, target, err)
		}
	}
	return resp, out
}

func sheetBody(nis, tanggal string) map[string]interface{} {
	return map[string]interface{}{
		"nis":           nis,
		"fullname":      "Ahmad Rizky",
		"rombel":        "XII TKJ 1",
		"tanggal":       tanggal,
		"sholat_fardhu": []string{"subuh", "dzuhur", "ashar", "maghrib", "isya"},
		"status_puasa":  "PENUH",
		"ibadah_sunnah": []string{},
		"tadarus":       "Juz 1",
		"kebiasaan":     []string{"sedekah"},
	}
}

func TestLoginSetsCookie(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"identifier": "teacher1", "password": "secret"}, nil)
	if resp.StatusCode != http.StatusOK || body["message"] != "Login berhasil" {
		t.Fatalf("login: %d %v", resp.StatusCode, body)
	}
	teacher, _ := body["teacher"].(map[string]interface{})
	if teacher["username"] != "teacher1" || teacher["email"] != "t@x.com" {
		t.Fatalf("unexpected teacher summary %v", body["teacher"])
	}
	if _, leaked := teacher["token"]; leaked {
		t.Fatalf("token must not be returned")
	}

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == session.CookieName {
			cookie = ck
		}
	}
	if cookie == nil || cookie.MaxAge != 28800 || !cookie.HttpOnly {
		t.Fatalf("session cookie not set correctly: %+v", cookie)
	}

	resp, body = env.do(t, http.MethodGet, "/api/auth/session", nil, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	if resp.StatusCode != http.StatusOK || body["authenticated"] != true {
		t.Fatalf("session after login: %d %v", resp.StatusCode, body)
	}
}

func TestLoginErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"missing password", map[string]string{"identifier": "teacher1"}, http.StatusBadRequest},
		{"student account", map[string]string{"identifier": "student1", "password": "secret"}, http.StatusForbidden},
		{"bad credentials", map[string]string{"email": "teacher1", "password": "nope"}, http.StatusUnauthorized},
	}
	for _, tc := range tests {
		resp, body := env.do(t, http.MethodPost, "/api/auth/login", tc.body, nil)
		if resp.StatusCode != tc.status || body["error"] == nil {
			t.Fatalf("%s: got %d %v", tc.name, resp.StatusCode, body)
		}
		if len(resp.Cookies()) != 0 {
			t.Fatalf("%s: no cookie expected on failure", tc.name)
		}
	}
}

func TestSessionAndLogout(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/auth/session", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized || body["authenticated"] != false {
		t.Fatalf("anonymous session: %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/auth/logout", nil, env.teacherCookie(t))
	if resp.StatusCode != http.StatusOK || body["message"] != "Logout berhasil" {
		t.Fatalf("logout: %d %v", resp.StatusCode, body)
	}
	if len(env.auth.loggedOut) != 1 || env.auth.loggedOut[0] != "t" {
		t.Fatalf("remote logout not invoked: %v", env.auth.loggedOut)
	}
	if !strings.HasPrefix(resp.Header.Get("Set-Cookie"), session.CookieName+"=;") {
		t.Fatalf("cookie not cleared: %q", resp.Header.Get("Set-Cookie"))
	}

	// logout without a session still succeeds
	resp, _ = env.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("anonymous logout: %d", resp.StatusCode)
	}
}

func TestSubmitSheetFlow(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/sheet", sheetBody("12345", "2026-03-10"), nil)
	if resp.StatusCode != http.StatusOK || body["message"] != "Laporan berhasil disimpan" {
		t.Fatalf("create: %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/sheet", sheetBody("12345", "2026-03-10"), nil)
	if resp.StatusCode != http.StatusOK || body["updated"] != true {
		t.Fatalf("update: %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/sheet", sheetBody("12345", "2026-03-11"), nil)
	if resp.StatusCode != http.StatusBadRequest || body["future"] != true {
		t.Fatalf("future: %d %v", resp.StatusCode, body)
	}

	env.do(t, http.MethodPost, "/api/sheet", sheetBody("12345", "2026-03-01"), nil)
	resp, body = env.do(t, http.MethodPost, "/api/sheet", sheetBody("12345", "2026-03-01"), nil)
	if resp.StatusCode != http.StatusConflict || body["readonly"] != true || body["existingDate"] != "2026-03-01" {
		t.Fatalf("locked: %d %v", resp.StatusCode, body)
	}

	bad := sheetBody("12345", "2026-03-10")
	bad["status_puasa"] = "KADANG"
	resp, body = env.do(t, http.MethodPost, "/api/sheet", bad, nil)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Status puasa tidak valid" {
		t.Fatalf("invalid status: %d %v", resp.StatusCode, body)
	}

	wrongType := sheetBody("12345", "2026-03-10")
	wrongType["nis"] = 12345
	resp, body = env.do(t, http.MethodPost, "/api/sheet", wrongType, nil)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Data laporan tidak lengkap atau tidak sesuai format" {
		t.Fatalf("wrong type: %d %v", resp.StatusCode, body)
	}
}

func TestTeacherEndpointsRequireSession(t *testing.T) {
	env := newTestEnv(t)
	for _, target := range []string{
		"/api/sheet", "/api/sheet/summary", "/api/sheet/rombel", "/api/sheet/export",
		"/API/SHEET/SUMMARY", "/Api/Sheet", "/api/sheet/Rombel", "/api/sheet/EXPORT",
	} {
		resp, body := env.do(t, http.MethodGet, target, nil, nil)
		if resp.StatusCode != http.StatusUnauthorized || body["error"] != "Akses ditolak. Halaman ini khusus guru." {
			t.Fatalf("%s: expected 401, got %d %v", target, resp.StatusCode, body)
		}
	}
}

func TestListSheetsPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 7; i++ {
		day := fixedNow.AddDate(0, 0, -i).Format(utils.DateLayout)
		if resp, body := env.do(t, http.MethodPost, "/api/sheet", sheetBody("12345", day), nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("seed %s: %d %v", day, resp.StatusCode, body)
		}
	}
	cookie := env.teacherCookie(t)

	resp, body := env.do(t, http.MethodGet, "/api/sheet?limit=5&offset=0", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %v", resp.StatusCode, body)
	}
	sheets, _ := body["sheets"].([]interface{})
	page, _ := body["pagination"].(map[string]interface{})
	if len(sheets) != 5 || page["hasMore"] != true || page["nextOffset"] != float64(5) || page["limit"] != float64(5) {
		t.Fatalf("first page: %d rows %v", len(sheets), page)
	}

	_, body = env.do(t, http.MethodGet, "/api/sheet?limit=5&offset=5", nil, cookie)
	sheets, _ = body["sheets"].([]interface{})
	page, _ = body["pagination"].(map[string]interface{})
	if len(sheets) != 2 || page["hasMore"] != false || page["nextOffset"] != float64(7) {
		t.Fatalf("second page: %d rows %v", len(sheets), page)
	}

	_, body = env.do(t, http.MethodGet, "/api/sheet?limit=abc&offset=-3", nil, cookie)
	page, _ = body["pagination"].(map[string]interface{})
	if page["limit"] != float64(utils.DefaultLimit) || page["offset"] != float64(0) {
		t.Fatalf("garbage params must fall back to defaults: %v", page)
	}

	resp, body = env.do(t, http.MethodGet, "/api/sheet?nis=12345", nil, cookie)
	student, _ := body["student"].(map[string]interface{})
	if resp.StatusCode != http.StatusOK || student["nis"] != "12345" {
		t.Fatalf("single-student mode: %d %v", resp.StatusCode, body)
	}
	if studentSheets, _ := student["sheets"].([]interface{}); len(studentSheets) != 7 {
		t.Fatalf("expected 7 sheets for student, got %d", len(studentSheets))
	}

	resp, _ = env.do(t, http.MethodGet, "/api/sheet?nis=00000", nil, cookie)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown nis: %d", resp.StatusCode)
	}

	_, body = env.do(t, http.MethodGet, "/api/sheet?nis=12345&flat=1&limit=3", nil, cookie)
	if sheets, _ := body["sheets"].([]interface{}); len(sheets) != 3 {
		t.Fatalf("flat mode should paginate, got %v", body)
	}
}

func TestRombelSummaryAndExport(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.teacherCookie(t)

	// no data yet: empty arrays, not null
	_, body := env.do(t, http.MethodGet, "/api/sheet/rombel", nil, cookie)
	if rombel, ok := body["rombel"].([]interface{}); !ok || len(rombel) != 0 {
		t.Fatalf("expected empty rombel list, got %v", body)
	}

	env.do(t, http.MethodPost, "/api/sheet", sheetBody("12345", "2026-03-10"), nil)

	_, body = env.do(t, http.MethodGet, "/api/sheet/summary?tanggal=2026-03-09", nil, cookie)
	summary, _ := body["summary"].([]interface{})
	if len(summary) != 1 {
		t.Fatalf("expected one rombel, got %v", body)
	}
	row := summary[0].(map[string]interface{})
	if row["total_siswa"] != float64(1) || row["total_laporan"] != float64(0) || row["avg_puasa_penuh"] != float64(0) {
		t.Fatalf("rombel without matching reports must report zeros: %v", row)
	}

	_, body = env.do(t, http.MethodGet, "/api/sheet/summary?tanggal=2026-03-10", nil, cookie)
	row = body["summary"].([]interface{})[0].(map[string]interface{})
	if row["avg_puasa_penuh"] != float64(100) || row["avg_sholat"] != float64(100) {
		t.Fatalf("unexpected summary %v", row)
	}

	resp, _ := env.do(t, http.MethodGet, "/api/sheet/export?tanggal=2026-03-10", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "laporan-2026-03-10.xlsx") {
		t.Fatalf("unexpected disposition %q", resp.Header.Get("Content-Disposition"))
	}
}

func TestMockStudentEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/identity/student/mock?nis=12345", nil, nil)
	if resp.StatusCode != http.StatusOK || body["fullname"] != "Ahmad Rizky" || body["rombel"] != "XII TKJ 1" {
		t.Fatalf("mock lookup: %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/identity/student?nis=", nil, nil)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Parameter nis wajib diisi" {
		t.Fatalf("missing nis: %d %v", resp.StatusCode, body)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/health", nil, nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}
}
