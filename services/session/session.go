// Package session encodes the teacher session into the teacher_session cookie.
//
// The cookie value is base64url(JSON) and is NOT signed or encrypted. Confidentiality
// relies on HTTPS plus the HttpOnly/Secure/SameSite flags; a client able to write its own
// cookies can forge a session. Decode treats every malformed, expired or non-teacher
// value as "no session".
package session

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	CookieName = "teacher_session"
	TTL        = 8 * time.Hour

	// TeacherType is the identity-service user type allowed to hold a session.
	TeacherType = 1
)

// Session is the decoded teacher session. ExpiresAt is epoch milliseconds.
type Session struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Type      int    `json:"type"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Identity is what a successful login hands to the codec.
type Identity struct {
	Token    string
	UserID   string
	Username string
	Email    string
	Type     int
}

// wirePayload uses pointers so missing fields can be told apart from zero values.
type wirePayload struct {
	Token     *string `json:"token"`
	UserID    *string `json:"userId"`
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	Type      *int    `json:"type"`
	ExpiresAt *int64  `json:"expiresAt"`
}

type Codec struct {
	TTL    time.Duration
	Secure bool
	Now    func() time.Time
}

func NewCodec(secure bool) *Codec {
	return &Codec{TTL: TTL, Secure: secure, Now: time.Now}
}

func (c *Codec) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Encode serializes s into a cookie-safe value.
func (c *Codec) Encode(s Session) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode returns nil for anything that is not a live teacher session. It never panics.
func (c *Codec) Decode(value string) *Session {
	if value == "" {
		return nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		// tolerate padded input
		raw, err = base64.URLEncoding.DecodeString(value)
		if err != nil {
			return nil
		}
	}

	var p wirePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	if p.Token == nil || p.UserID == nil || p.Username == nil || p.Email == nil || p.Type == nil || p.ExpiresAt == nil {
		return nil
	}
	if *p.ExpiresAt <= c.now().UnixMilli() {
		return nil
	}
	if *p.Type != TeacherType {
		return nil
	}

	return &Session{
		Token:     *p.Token,
		UserID:    *p.UserID,
		Username:  *p.Username,
		Email:     *p.Email,
		Type:      *p.Type,
		ExpiresAt: *p.ExpiresAt,
	}
}

// Issue mints a session valid for TTL from now and sets the cookie.
func (c *Codec) Issue(ctx *fiber.Ctx, id Identity) (*Session, error) {
	issuedAt := c.now()
	s := Session{
		Token:     id.Token,
		UserID:    id.UserID,
		Username:  id.Username,
		Email:     id.Email,
		Type:      id.Type,
		ExpiresAt: issuedAt.Add(c.TTL).UnixMilli(),
	}

	value, err := c.Encode(s)
	if err != nil {
		return nil, err
	}

	ctx.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.TTL / time.Second),
		Expires:  issuedAt.Add(c.TTL),
		Secure:   c.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return &s, nil
}

// Clear expires the session cookie.
func (c *Codec) Clear(ctx *fiber.Ctx) {
	ctx.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   c.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// FromRequest decodes the session cookie of the current request.
func (c *Codec) FromRequest(ctx *fiber.Ctx) *Session {
	return c.Decode(ctx.Cookies(CookieName))
}
