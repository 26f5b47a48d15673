//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"
)

func adminSession(t *testing.T, cfg Cfg) *Session {
	t.Helper()
	s := NewSession(t, cfg.APIBase)
	code, body := s.Do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": cfg.AdminUser, "password": cfg.AdminPassword,
	})
	if code != http.StatusOK {
		t.Fatalf("[admin] login: %d %s", code, body)
	}
	return s
}

func registerUser(t *testing.T, cfg Cfg, username, password string) {
	t.Helper()
	admin := adminSession(t, cfg)
	code, body := admin.Do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username, "password": password, "email": username + "@it.local",
	})
	if code != http.StatusCreated {
		t.Fatalf("[register] %s: %d %s", username, code, body)
	}
}

func TestRefreshRotationAndReuse(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.APIBase+"/healthz", 60*time.Second)
	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	username := "it-rot-" + RandSuffix()
	registerUser(t, cfg, username, "Rotate1!pw")

	s := NewSession(t, cfg.APIBase)
	if code, body := s.Do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username, "password": "Rotate1!pw",
	}); code != http.StatusOK {
		t.Fatalf("[login] %d %s", code, body)
	}
	first := s.Cookie(t, "refresh_token")
	if first == "" {
		t.Fatal("[login] no refresh cookie")
	}

	if code, body := s.Do(t, http.MethodPost, "/api/auth/refresh", nil); code != http.StatusOK {
		t.Fatalf("[refresh] %d %s", code, body)
	}
	if got := ActiveTokenCount(t, db, username); got != 1 {
		t.Fatalf("[db] active tokens after rotation: got %d want 1", got)
	}

	// Replay the first token from a second client.
	thief := &http.Cookie{Name: "refresh_token", Value: first}
	req, _ := http.NewRequest(http.MethodPost, cfg.APIBase+"/api/auth/refresh", nil)
	req.AddCookie(thief)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("[replay] %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("[replay] got %d want 403", resp.StatusCode)
	}
	if got := ActiveTokenCount(t, db, username); got != 0 {
		t.Fatalf("[db] active tokens after reuse: got %d want 0", got)
	}
}

func TestLoginLockout(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.APIBase+"/healthz", 60*time.Second)
	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	username := "it-lock-" + RandSuffix()
	registerUser(t, cfg, username, "Locked1!pw")

	s := NewSession(t, cfg.APIBase)
	var code int
	for i := 0; i < 10; i++ {
		code, _ = s.Do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"username": username, "password": "wrong",
		})
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("[lock] 10th failure: got %d want 429", code)
	}
	n, until := LoginAttempts(t, db, username)
	if n != 10 || !until.Valid {
		t.Fatalf("[db] attempts=%d blocked_until=%v", n, until)
	}

	code, _ = s.Do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username, "password": "Locked1!pw",
	})
	if code != http.StatusTooManyRequests {
		t.Fatalf("[lock] correct password while blocked: got %d want 429", code)
	}
}

func TestSecurityEventsReachKafka(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.APIBase+"/healthz", 60*time.Second)

	username := "it-ev-" + RandSuffix()
	registerUser(t, cfg, username, "Events1!pw")

	s := NewSession(t, cfg.APIBase)
	if code, body := s.Do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username, "password": "Events1!pw",
	}); code != http.StatusOK {
		t.Fatalf("[login] %d %s", code, body)
	}

	ev, ok := WaitSecurityEvent(t, cfg.KafkaBootstrap, cfg.SecurityTopic, 30*time.Second, func(ev SecurityEvent) bool {
		return ev.Type == "login_succeeded" && ev.Username == username
	})
	if !ok {
		t.Fatalf("[kafka] no login_succeeded event for %s", username)
	}
	t.Logf("[kafka] got event id=%s user_id=%d", ev.ID, ev.UserID)
}
