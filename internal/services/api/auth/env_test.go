package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	coreauth "github.com/NordCoder/Stocker/internal/auth"
	domainauth "github.com/NordCoder/Stocker/internal/domain/auth"
	"github.com/NordCoder/Stocker/internal/domain/user"
	"github.com/NordCoder/Stocker/internal/repository/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []domainauth.SecurityEvent
}

func (s *recordingSink) Record(_ context.Context, ev domainauth.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) count(t domainauth.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
	testMaxAttempt = 10
	testBlock      = time.Minute
)

type env struct {
	clock    *fakeClock
	users    *memory.UserRepo
	rt       *memory.RefreshTokenRepo
	attempts *memory.LoginAttemptRepo
	store    *RefreshStore
	throttle *Throttle
	codec    *coreauth.TokenCodec
	hasher   *coreauth.PasswordHasher
	sink     *recordingSink
	uc       *Usecase
}

type envOpt func(*Config)

func withIPThrottle() envOpt { return func(c *Config) { c.ThrottleIP = true } }

func newEnv(t *testing.T, opts ...envOpt) *env {
	t.Helper()
	e := &env{
		clock:    &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		rt:       memory.NewRefreshTokenRepo(),
		attempts: memory.NewLoginAttemptRepo(),
		hasher:   coreauth.NewPasswordHasher(bcrypt.MinCost),
		sink:     &recordingSink{},
	}
	e.users = memory.NewUserRepo(e.clock.Now)
	e.store = NewRefreshStore(e.rt, e.clock.Now)
	e.throttle = NewThrottle(e.attempts, ThrottleConfig{
		MaxAttempts:   testMaxAttempt,
		BlockDuration: testBlock,
		Now:           e.clock.Now,
	})

	codec, err := coreauth.NewTokenCodec([]byte("unit-test-secret"), "stocker", e.clock.Now)
	require.NoError(t, err)
	e.codec = codec

	cfg := Config{AccessTTL: testAccessTTL, RefreshTTL: testRefreshTTL, Now: e.clock.Now}
	for _, o := range opts {
		o(&cfg)
	}
	e.uc = NewUsecase(Deps{
		Users:    e.users,
		Tokens:   e.store,
		Throttle: e.throttle,
		Codec:    e.codec,
		Hasher:   e.hasher,
		Tx:       memory.Transactor{},
		Events:   e.sink,
		Logger:   zap.NewNop(),
	}, cfg)
	return e
}

func (e *env) addUser(t *testing.T, username, password string, role user.Role, active bool) *user.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)
	u := &user.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
		Active:       active,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *env) login(t *testing.T, username, password string) TokenPair {
	t.Helper()
	pair, err := e.uc.Login(context.Background(), LoginInput{Username: username, Password: password})
	require.NoError(t, err)
	return pair
}
