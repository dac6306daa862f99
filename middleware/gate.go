package middleware

import (
	"strings"

	"laporan_ramadhan/services/session"

	"github.com/gofiber/fiber/v2"
)

const (
	TeacherLandingPath = "/laporan"
	TeacherLoginPath   = "/laporan/login"

	teacherSessionKey = "teacherSession"
	msgTeacherOnly    = "Akses ditolak. Halaman ini khusus guru."
)

// Decision is the gate's verdict for a request.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionRedirectLogin
	DecisionDeny
	DecisionRedirectHome
)

func (d Decision) String() string {
	switch d {
	case DecisionRedirectLogin:
		return "redirect_login"
	case DecisionDeny:
		return "deny"
	case DecisionRedirectHome:
		return "redirect_home"
	default:
		return "allow"
	}
}

type apiRoute struct {
	method string // empty matches any method
	path   string
}

var teacherAPIRoutes = []apiRoute{
	{method: fiber.MethodGet, path: "/api/sheet"},
	{path: "/api/sheet/summary"},
	{path: "/api/sheet/rombel"},
	{path: "/api/sheet/export"},
}

// normalizePath lowercases and drops trailing slashes; routing is case-insensitive.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	p = strings.ToLower(p)
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func isTeacherPage(p string) bool {
	return p == TeacherLandingPath || strings.HasPrefix(p, TeacherLandingPath+"/")
}

func isTeacherAPI(p, method string) bool {
	// app.Get also serves HEAD
	if strings.EqualFold(method, fiber.MethodHead) {
		method = fiber.MethodGet
	}
	for _, r := range teacherAPIRoutes {
		if r.path == p && (r.method == "" || strings.EqualFold(r.method, method)) {
			return true
		}
	}
	return false
}

// Decide is the pure access rule, applied in order: protected page without a session,
// teacher-only API without a session, login page with a session, everything else.
func Decide(path, method string, authenticated bool) Decision {
	p := normalizePath(path)

	if !authenticated && isTeacherPage(p) && p != TeacherLoginPath {
		return DecisionRedirectLogin
	}
	if !authenticated && isTeacherAPI(p, method) {
		return DecisionDeny
	}
	if authenticated && p == TeacherLoginPath {
		return DecisionRedirectHome
	}
	return DecisionAllow
}

// TeacherGate decodes the session cookie once per request and enforces Decide.
func TeacherGate(codec *session.Codec) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := codec.FromRequest(c)
		if s != nil {
			c.Locals(teacherSessionKey, s)
		}

		switch Decide(c.Path(), c.Method(), s != nil) {
		case DecisionRedirectLogin:
			return c.Redirect(TeacherLoginPath, fiber.StatusSeeOther)
		case DecisionDeny:
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": msgTeacherOnly,
			})
		case DecisionRedirectHome:
			return c.Redirect(TeacherLandingPath, fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

// GetTeacherSession returns the session stored by TeacherGate, or nil.
func GetTeacherSession(c *fiber.Ctx) *session.Session {
	s, _ := c.Locals(teacherSessionKey).(*session.Session)
	return s
}
