package controllers

import (
	"context"
	"strings"

	"laporan_ramadhan/middleware"
	"laporan_ramadhan/services/session"
	"laporan_ramadhan/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Authenticator is the identity-service login handshake.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (*session.Identity, error)
	Logout(ctx context.Context, s *session.Session)
}

type AuthController struct {
	auth  Authenticator
	codec *session.Codec
}

func NewAuthController(auth Authenticator, codec *session.Codec) *AuthController {
	return &AuthController{auth: auth, codec: codec}
}

// LoginRequest accepts identifier, or the email/username pair the login form may send.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

func (r LoginRequest) identifier() string {
	for _, v := range []string{r.Identifier, r.Email, r.Username} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type teacherSummary struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Login authenticates a teacher against the identity service and sets the session cookie
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Payload tidak valid",
		})
	}

	identity, err := ac.auth.Login(c.UserContext(), req.identifier(), req.Password)
	if err != nil {
		return utils.RespondError(c, err)
	}

	s, err := ac.codec.Issue(c, *identity)
	if err != nil {
		return utils.RespondError(c, utils.InternalError("Gagal membuat sesi").Wrap(err))
	}

	logrus.WithFields(logrus.Fields{
		"username": s.Username,
		"user_id":  s.UserID,
	}).Info("Teacher logged in")

	return c.JSON(fiber.Map{
		"message": "Login berhasil",
		"teacher": teacherSummary{Username: s.Username, Email: s.Email},
	})
}

// Logout notifies the identity service best-effort and always clears the cookie
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	s := middleware.GetTeacherSession(c)
	if s == nil {
		s = ac.codec.FromRequest(c)
	}
	if s != nil {
		ac.auth.Logout(c.UserContext(), s)
	}

	ac.codec.Clear(c)
	return c.JSON(fiber.Map{"message": "Logout berhasil"})
}

// Session reports whether the caller holds a live teacher session
func (ac *AuthController) Session(c *fiber.Ctx) error {
	s := middleware.GetTeacherSession(c)
	if s == nil {
		s = ac.codec.FromRequest(c)
	}
	if s == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"authenticated": false})
	}
	return c.JSON(fiber.Map{
		"authenticated": true,
		"teacher":       teacherSummary{Username: s.Username, Email: s.Email},
	})
}
