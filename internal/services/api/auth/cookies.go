package auth

import (
	"net/http"
	"strings"
	"time"
)

type CookieConfig struct {
	AccessName  string
	RefreshName string
	Domain      string
	Path        string
	Secure      bool
	SameSite    http.SameSite
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.AccessName == "" {
		c.AccessName = "access_token"
	}
	if c.RefreshName == "" {
		c.RefreshName = "refresh_token"
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteStrictMode
	}
	return c
}

// ParseSameSite maps a config string to http.SameSite, strict by default.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

func (s *Server) setSessionCookies(w http.ResponseWriter, pair TokenPair) {
	http.SetCookie(w, s.cookie(s.cookies.AccessName, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, s.cookie(s.cookies.RefreshName, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{s.cookies.AccessName, s.cookies.RefreshName} {
		c := s.cookie(name, "", time.Unix(0, 0).UTC())
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (s *Server) cookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.cookies.Path,
		Domain:   s.cookies.Domain,
		HttpOnly: true,
		Secure:   s.cookies.Secure,
		SameSite: s.cookies.SameSite,
		Expires:  expires.UTC(),
	}
	if value != "" {
		if maxAge := int(expires.Sub(s.uc.cfg.Now()).Seconds()); maxAge > 0 {
			c.MaxAge = maxAge
		}
	}
	return c
}
