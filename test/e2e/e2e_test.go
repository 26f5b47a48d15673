//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type cfg struct {
	APIBase       string // http://localhost:8080
	AdminUser     string
	AdminPassword string
}

func loadCfg() cfg {
	return cfg{
		APIBase:       getenv("E2E_API_BASE", "http://localhost:8080"),
		AdminUser:     getenv("E2E_ADMIN_USER", "admin"),
		AdminPassword: getenv("E2E_ADMIN_PASSWORD", "Adm1n$ecur3!2024"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

type identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type apiError struct {
	Error            string `json:"error"`
	Message          string `json:"message"`
	RemainingMinutes int    `json:"remaining_minutes"`
}

type client struct {
	t    *testing.T
	base string
	hc   *http.Client
}

func newClient(t *testing.T, base string) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: base, hc: &http.Client{Jar: jar, Timeout: 10 * time.Second}}
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if out != nil && len(data) > 0 {
		require.NoError(c.t, json.Unmarshal(data, out), string(data))
	}
	return resp.StatusCode
}

func TestE2E_SessionLifecycle(t *testing.T) {
	c := loadCfg()
	suffix := strconv.FormatInt(time.Now().UnixNano()%1_000_000, 10)
	username := "e2e" + suffix

	admin := newClient(t, c.APIBase)
	require.Equal(t, http.StatusOK, admin.do(http.MethodPost, "/api/auth/login",
		map[string]string{"username": c.AdminUser, "password": c.AdminPassword}, nil))

	var created identity
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/auth/register", map[string]string{
		"username": username, "password": "E2e!pass1", "email": username + "@e2e.local",
	}, &created))
	require.Equal(t, "user", created.Role)

	var dup apiError
	require.Equal(t, http.StatusConflict, admin.do(http.MethodPost, "/api/auth/register", map[string]string{
		"username": username, "password": "E2e!pass1", "email": "other" + suffix + "@e2e.local",
	}, &dup))

	u := newClient(t, c.APIBase)
	var forbidden apiError
	require.Equal(t, http.StatusForbidden, u.do(http.MethodGet, "/api/auth/me", nil, &forbidden))
	require.Equal(t, "unauthenticated", forbidden.Error)

	require.Equal(t, http.StatusOK, u.do(http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": "E2e!pass1"}, nil))

	var me identity
	require.Equal(t, http.StatusOK, u.do(http.MethodGet, "/api/auth/me", nil, &me))
	require.Equal(t, created.ID, me.ID)

	var denied apiError
	require.Equal(t, http.StatusForbidden, u.do(http.MethodPost, "/api/auth/register", map[string]string{
		"username": "x" + suffix, "password": "E2e!pass1", "email": "x" + suffix + "@e2e.local",
	}, &denied))
	require.Equal(t, "insufficient_permissions", denied.Error)

	require.Equal(t, http.StatusOK, u.do(http.MethodPost, "/api/auth/refresh", nil, nil))

	require.Equal(t, http.StatusNoContent, u.do(http.MethodPut, "/api/profile/password", map[string]string{
		"current_password": "E2e!pass1", "new_password": "E2e!pass2",
	}, nil))

	var bad apiError
	require.Equal(t, http.StatusUnauthorized, u.do(http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": "E2e!pass1"}, &bad))
	require.Equal(t, "invalid_credentials", bad.Error)

	require.Equal(t, http.StatusOK, u.do(http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": "E2e!pass2"}, nil))
	require.Equal(t, http.StatusOK, u.do(http.MethodPost, "/api/auth/logout", nil, nil))
	require.Equal(t, http.StatusForbidden, u.do(http.MethodGet, "/api/auth/me", nil, nil))
}
