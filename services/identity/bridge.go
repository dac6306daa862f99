package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"laporan_ramadhan/services/session"
	"laporan_ramadhan/utils"

	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 10 * time.Second

	msgMissingCredentials = "Email/username dan password wajib diisi"
	msgLoginFailed        = "Login gagal. Periksa email/username dan password."
	msgUnreachable        = "Gagal menghubungi layanan autentikasi"
	msgInvalidContract    = "Respons login tidak valid dari backend"
	msgNotTeacher         = "Akses ditolak. Halaman laporan hanya untuk guru."
	msgLoginNotConfigured = "Endpoint login tidak valid"

	xsrfCookieName = "XSRF-TOKEN"
)

// BridgeConfig holds the identity endpoints. An empty CSRFURL skips the pre-flight and
// an empty LogoutURL skips the remote logout.
type BridgeConfig struct {
	CSRFURL   string
	LoginURL  string
	LogoutURL string
	Timeout   time.Duration
}

// Bridge performs the Sanctum-style login handshake against the identity service.
type Bridge struct {
	client    *http.Client
	csrfURL   string
	loginURL  string
	logoutURL string
}

func NewBridge(cfg BridgeConfig) *Bridge {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{
		client:    &http.Client{Timeout: timeout},
		csrfURL:   cfg.CSRFURL,
		loginURL:  cfg.LoginURL,
		logoutURL: cfg.LogoutURL,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse decodes loosely; the contract is checked field by field afterwards.
type loginResponse struct {
	Token interface{} `json:"token"`
	User  *struct {
		ID       interface{} `json:"id"`
		Username interface{} `json:"username"`
		Email    interface{} `json:"email"`
		Type     interface{} `json:"type"`
	} `json:"user"`
}

// Login exchanges credentials for a teacher identity. Every failure is an *utils.AppError.
func (b *Bridge) Login(ctx context.Context, identifier, password string) (*session.Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, utils.ValidationError(msgMissingCredentials)
	}
	if b.loginURL == "" {
		return nil, utils.InternalError(msgLoginNotConfigured)
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	headers.Set("X-Requested-With", "XMLHttpRequest")
	b.preflight(ctx, headers)

	body, err := json.Marshal(loginRequest{Email: identifier, Username: identifier, Password: password})
	if err != nil {
		return nil, utils.InternalError(msgUnreachable).Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.loginURL, bytes.NewReader(body))
	if err != nil {
		return nil, utils.InternalError(msgLoginNotConfigured).Wrap(err)
	}
	req.Header = headers
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		logrus.WithError(err).WithField("timeout", isTimeout(err)).Warn("Identity login request failed")
		return nil, utils.UpstreamError(http.StatusBadGateway, msgUnreachable).Wrap(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.UpstreamError(http.StatusBadGateway, msgUnreachable).Wrap(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, utils.UpstreamError(resp.StatusCode, upstreamMessage(raw, "message", msgLoginFailed))
	}

	return parseLoginResponse(raw)
}

func parseLoginResponse(raw []byte) (*session.Identity, error) {
	var payload loginResponse
	if err := json.Unmarshal(raw, &payload); err != nil || payload.User == nil {
		return nil, utils.UpstreamError(http.StatusBadGateway, msgInvalidContract).Wrap(err)
	}

	token, _ := payload.Token.(string)
	userID, _ := payload.User.ID.(string)
	username, _ := payload.User.Username.(string)
	email, _ := payload.User.Email.(string)
	userType, typeOK := payload.User.Type.(float64)

	if token == "" || userID == "" || username == "" || email == "" || !typeOK || userType != math.Trunc(userType) {
		return nil, utils.UpstreamError(http.StatusBadGateway, msgInvalidContract)
	}
	if int(userType) != session.TeacherType {
		return nil, utils.ForbiddenError(msgNotTeacher)
	}

	return &session.Identity{
		Token:    token,
		UserID:   userID,
		Username: username,
		Email:    email,
		Type:     int(userType),
	}, nil
}

// preflight fetches the Sanctum CSRF cookie and carries the session cookies and
// X-XSRF-TOKEN into headers. Any failure leaves headers untouched.
func (b *Bridge) preflight(ctx context.Context, headers http.Header) {
	if b.csrfURL == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.csrfURL, nil)
	if err != nil {
		logrus.WithError(err).Warn("CSRF pre-flight request could not be built")
		return
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := b.client.Do(req)
	if err != nil {
		logrus.WithError(err).Warn("CSRF pre-flight failed, continuing without CSRF context")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logrus.WithField("status", resp.StatusCode).Warn("CSRF pre-flight rejected, continuing without CSRF context")
		return
	}

	var pairs []string
	xsrf := ""
	for _, ck := range resp.Cookies() {
		pairs = append(pairs, ck.Name+"="+ck.Value)
		if ck.Name == xsrfCookieName {
			if v, err := url.QueryUnescape(ck.Value); err == nil {
				xsrf = v
			} else {
				xsrf = ck.Value
			}
		}
	}
	if len(pairs) > 0 {
		headers.Set("Cookie", strings.Join(pairs, "; "))
	}
	if xsrf != "" {
		headers.Set("X-XSRF-TOKEN", xsrf)
	}
}

// Logout notifies the identity service. Failures are logged and swallowed.
func (b *Bridge) Logout(ctx context.Context, s *session.Session) {
	if s == nil || s.Token == "" || b.logoutURL == "" {
		return
	}
	if err := b.remoteLogout(ctx, s.Token); err != nil {
		logrus.WithError(err).WithField("username", s.Username).Warn("Remote assembly logout failed")
	}
}

func (b *Bridge) remoteLogout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.logoutURL, strings.NewReader("{}"))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("logout endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// upstreamMessage extracts body[field] as a string, or returns fallback.
func upstreamMessage(raw []byte, field, fallback string) string {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return fallback
	}
	v, ok := body[field]
	if !ok || v == nil {
		return fallback
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return fallback
		}
		return s
	}
	return fmt.Sprint(v)
}

// isTimeout reports whether err came from the client deadline.
func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
