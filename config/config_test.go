package config

import (
	"testing"
	"time"
)

func TestEndpointDerivation(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantCSRF   string
		wantLogin  string
		wantLogout string
	}{
		{
			name:       "derived from api url",
			cfg:        Config{IdentityAPIURL: "https://id.example.sch.id/api/siswa", IdentityCSRFEnabled: true},
			wantCSRF:   "https://id.example.sch.id/sanctum/csrf-cookie",
			wantLogin:  "https://id.example.sch.id/assembly-login",
			wantLogout: "https://id.example.sch.id/assembly-logout",
		},
		{
			name: "logout follows login host",
			cfg: Config{
				IdentityAPIURL:      "https://api.example.sch.id/v1",
				IdentityLoginURL:    "https://auth.example.sch.id/custom/login",
				IdentityCSRFEnabled: true,
			},
			wantCSRF:   "https://api.example.sch.id/sanctum/csrf-cookie",
			wantLogin:  "https://auth.example.sch.id/custom/login",
			wantLogout: "https://auth.example.sch.id/assembly-logout",
		},
		{
			name: "explicit overrides",
			cfg: Config{
				IdentityAPIURL:      "https://api.example.sch.id",
				IdentityCSRFURL:     "https://api.example.sch.id/csrf",
				IdentityLogoutURL:   "https://api.example.sch.id/bye",
				IdentityCSRFEnabled: true,
			},
			wantCSRF:   "https://api.example.sch.id/csrf",
			wantLogin:  "https://api.example.sch.id/assembly-login",
			wantLogout: "https://api.example.sch.id/bye",
		},
		{
			name:       "csrf disabled",
			cfg:        Config{IdentityAPIURL: "https://api.example.sch.id"},
			wantCSRF:   "",
			wantLogin:  "https://api.example.sch.id/assembly-login",
			wantLogout: "https://api.example.sch.id/assembly-logout",
		},
		{
			name:       "unparsable base",
			cfg:        Config{IdentityAPIURL: "not a url", IdentityCSRFEnabled: true},
			wantCSRF:   "",
			wantLogin:  "",
			wantLogout: "",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.CSRFURL(); got != tc.wantCSRF {
				t.Fatalf("csrf: expected %q, got %q", tc.wantCSRF, got)
			}
			if got := tc.cfg.LoginURL(); got != tc.wantLogin {
				t.Fatalf("login: expected %q, got %q", tc.wantLogin, got)
			}
			if got := tc.cfg.LogoutURL(); got != tc.wantLogout {
				t.Fatalf("logout: expected %q, got %q", tc.wantLogout, got)
			}
		})
	}
}

func TestBuildConfigDefaults(t *testing.T) {
	cfg := buildConfig(func(_, def string) string { return def })

	if cfg.IdentityTimeout != 10*time.Second {
		t.Fatalf("expected 10s identity timeout, got %s", cfg.IdentityTimeout)
	}
	if cfg.ReportTimezone != "Asia/Jakarta" {
		t.Fatalf("unexpected timezone %q", cfg.ReportTimezone)
	}
	if !cfg.CookieSecure || !cfg.IdentityCSRFEnabled {
		t.Fatalf("secure cookie and csrf pre-flight must default to on")
	}
	if cfg.IdentityMock {
		t.Fatalf("mock identity must default to off")
	}
}

func TestStudentURLFallsBackToAPIURL(t *testing.T) {
	cfg := Config{IdentityAPIURL: "https://api.example.sch.id/siswa"}
	if got := cfg.StudentURL(); got != cfg.IdentityAPIURL {
		t.Fatalf("expected %q, got %q", cfg.IdentityAPIURL, got)
	}
	cfg.IdentityStudentURL = "https://other.example.sch.id/lookup"
	if got := cfg.StudentURL(); got != cfg.IdentityStudentURL {
		t.Fatalf("expected override, got %q", got)
	}
}
