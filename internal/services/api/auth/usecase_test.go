package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreauth "github.com/NordCoder/Stocker/internal/auth"
	domainauth "github.com/NordCoder/Stocker/internal/domain/auth"
	"github.com/NordCoder/Stocker/internal/domain/user"
)

func TestLogin_IssuesPairAndCountsFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.uc.Register(ctx, RegisterInput{Username: "alice", Password: "Correct1!", Email: "alice@x.com"})
	require.NoError(t, err)

	pair := e.login(t, "alice", "Correct1!")
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, e.clock.Now().Add(testAccessTTL), pair.AccessExpiresAt)
	assert.Equal(t, e.clock.Now().Add(testRefreshTTL), pair.RefreshExpiresAt)

	access, err := e.codec.VerifyKind(pair.AccessToken, coreauth.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "alice", access.Username)
	assert.Equal(t, string(user.RoleUser), access.Role)

	valid, err := e.store.IsValid(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, valid)

	_, err = e.uc.Login(ctx, LoginInput{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	n, err := e.throttle.Attempts(ctx, "alice", domainauth.IdentifierUsername)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, e.sink.count(domainauth.EventLoginSucceeded))
	assert.Equal(t, 1, e.sink.count(domainauth.EventLoginFailed))
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "alice", "Correct1!", user.RoleUser, true)

	for i := 0; i < 3; i++ {
		_, err := e.uc.Login(ctx, LoginInput{Username: "alice", Password: "nope"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	e.login(t, "alice", "Correct1!")

	n, err := e.throttle.Attempts(ctx, "alice", domainauth.IdentifierUsername)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLogin_LocksAfterMaxAttempts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "bob", "Bobpass1!", user.RoleUser, true)

	for i := 1; i <= testMaxAttempt; i++ {
		_, err := e.uc.Login(ctx, LoginInput{Username: "bob", Password: "wrong"})
		if i < testMaxAttempt {
			require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i)
			continue
		}
		require.ErrorIs(t, err, ErrAccountLocked, "attempt %d", i)
		var locked *LockedError
		require.True(t, errors.As(err, &locked))
		assert.Equal(t, 1, locked.RemainingMinutes())
	}

	_, err := e.uc.Login(ctx, LoginInput{Username: "bob", Password: "Bobpass1!"})
	require.ErrorIs(t, err, ErrAccountLocked)

	// Rejected while blocked: the counter does not move.
	n, err := e.throttle.Attempts(ctx, "bob", domainauth.IdentifierUsername)
	require.NoError(t, err)
	assert.Equal(t, testMaxAttempt, n)

	e.clock.Advance(testBlock)
	_, err = e.uc.Login(ctx, LoginInput{Username: "bob", Password: "Bobpass1!"})
	require.ErrorIs(t, err, ErrAccountLocked, "block holds up to and including its end")

	e.clock.Advance(time.Second)
	e.login(t, "bob", "Bobpass1!")

	n, err = e.throttle.Attempts(ctx, "bob", domainauth.IdentifierUsername)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, e.sink.count(domainauth.EventAccountLocked))
}

func TestLogin_WrongPasswordAfterBlockExpiryStartsFresh(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "bob", "Bobpass1!", user.RoleUser, true)

	for i := 0; i < testMaxAttempt; i++ {
		_, _ = e.uc.Login(ctx, LoginInput{Username: "bob", Password: "wrong"})
	}
	e.clock.Advance(testBlock + time.Second)

	_, err := e.uc.Login(ctx, LoginInput{Username: "bob", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	n, err := e.throttle.Attempts(ctx, "bob", domainauth.IdentifierUsername)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLogin_UnknownUserIsInvalidCredentials(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.uc.Login(ctx, LoginInput{Username: "ghost", Password: "whatever"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	n, err := e.throttle.Attempts(ctx, "ghost", domainauth.IdentifierUsername)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLogin_Inactive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "eve", "Evepass1!", user.RoleUser, false)

	_, err := e.uc.Login(ctx, LoginInput{Username: "eve", Password: "Evepass1!"})
	require.ErrorIs(t, err, ErrAccountInactive)

	_, err = e.uc.Login(ctx, LoginInput{Username: "eve", Password: "bad"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_EmptyInput(t *testing.T) {
	e := newEnv(t)
	_, err := e.uc.Login(context.Background(), LoginInput{Username: "  ", Password: "x"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.uc.Login(context.Background(), LoginInput{Username: "a", Password: ""})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestLogin_IPThrottle(t *testing.T) {
	e := newEnv(t, withIPThrottle())
	ctx := context.Background()
	e.addUser(t, "frank", "Frankpw1!", user.RoleUser, true)

	const ip = "10.0.0.7"
	var err error
	for i := 0; i < testMaxAttempt; i++ {
		_, err = e.uc.Login(ctx, LoginInput{Username: fmt.Sprintf("user%d", i), Password: "x", IP: ip})
	}
	require.ErrorIs(t, err, ErrAccountLocked)

	_, err = e.uc.Login(ctx, LoginInput{Username: "frank", Password: "Frankpw1!", IP: ip})
	require.ErrorIs(t, err, ErrAccountLocked)

	_, err = e.uc.Login(ctx, LoginInput{Username: "frank", Password: "Frankpw1!", IP: "10.0.0.8"})
	require.NoError(t, err)
}

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "carol", "Carolpw1!", user.RoleUser, true)

	r1 := e.login(t, "carol", "Carolpw1!").RefreshToken
	e.clock.Advance(time.Second)

	p2, err := e.uc.Refresh(ctx, r1)
	require.NoError(t, err)
	r2 := p2.RefreshToken
	require.NotEqual(t, r1, r2)

	old, err := e.store.FindByRaw(ctx, r1)
	require.NoError(t, err)
	assert.True(t, old.Revoked)
	require.NotNil(t, old.ReplacedBy)
	assert.Equal(t, coreauth.HashToken(r2), *old.ReplacedBy)

	_, err = e.uc.Refresh(ctx, r1)
	require.ErrorIs(t, err, ErrTokenRevoked)

	valid, err := e.store.IsValid(ctx, r2)
	require.NoError(t, err)
	assert.False(t, valid, "reuse revokes the whole family")

	_, err = e.uc.Refresh(ctx, r2)
	require.ErrorIs(t, err, ErrTokenRevoked)
	assert.GreaterOrEqual(t, e.sink.count(domainauth.EventTokenReuse), 1)
}

func TestRefresh_ReuseRevokesOtherSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "carol", "Carolpw1!", user.RoleUser, true)

	laptop := e.login(t, "carol", "Carolpw1!").RefreshToken
	phone := e.login(t, "carol", "Carolpw1!").RefreshToken

	_, err := e.uc.Refresh(ctx, laptop)
	require.NoError(t, err)
	_, err = e.uc.Refresh(ctx, laptop)
	require.ErrorIs(t, err, ErrTokenRevoked)

	_, err = e.uc.Refresh(ctx, phone)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefresh_ConcurrentSameToken(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "carol", "Carolpw1!", user.RoleUser, true)
	r1 := e.login(t, "carol", "Carolpw1!").RefreshToken

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		revoked   int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.uc.Refresh(context.Background(), r1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrTokenRevoked):
				revoked++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, revoked)
}

func TestRefresh_Rejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.addUser(t, "dan", "Danpass1!", user.RoleUser, true)
	pair := e.login(t, "dan", "Danpass1!")

	_, err := e.uc.Refresh(ctx, "")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = e.uc.Refresh(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = e.uc.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken, "access token is the wrong kind")

	// Correctly signed but never stored.
	forged, _, err := e.codec.Sign(coreauth.Claims{
		Kind:             coreauth.KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{Subject: coreauth.SubjectFromID(u.ID), ID: "never-stored"},
	}, time.Hour)
	require.NoError(t, err)
	_, err = e.uc.Refresh(ctx, forged)
	require.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, e.users.SetActive(u.ID, false))
	_, err = e.uc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRefresh_Expired(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "dan", "Danpass1!", user.RoleUser, true)
	pair := e.login(t, "dan", "Danpass1!")

	e.clock.Advance(testRefreshTTL + time.Second)
	_, err := e.uc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser(t, "gina", "Ginapass1!", user.RoleUser, true)
	pair := e.login(t, "gina", "Ginapass1!")

	e.uc.Logout(ctx, pair.RefreshToken)
	valid, err := e.store.IsValid(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.False(t, valid)

	// Never panics or errors on junk.
	e.uc.Logout(ctx, "")
	e.uc.Logout(ctx, "garbage")
	e.uc.Logout(ctx, pair.AccessToken)
	assert.Equal(t, 1, e.sink.count(domainauth.EventLogout))
}

func TestRegister(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ident, err := e.uc.Register(ctx, RegisterInput{Username: "dave", Password: "Str0ng!pwd", Email: "Dave@X.com"})
	require.NoError(t, err)
	assert.Equal(t, "dave", ident.Username)
	assert.Equal(t, "dave@x.com", ident.Email)
	assert.Equal(t, user.RoleUser, ident.Role)
	assert.True(t, ident.Active)

	stored, err := e.users.GetByUsername(ctx, "dave")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng!pwd", stored.PasswordHash)
	assert.True(t, e.hasher.Verify("Str0ng!pwd", stored.PasswordHash))

	_, err = e.uc.Register(ctx, RegisterInput{Username: "dave", Password: "Str0ng!pwd", Email: "other@x.com"})
	require.ErrorIs(t, err, ErrConflict)

	_, err = e.uc.Register(ctx, RegisterInput{Username: "dave2", Password: "Str0ng!pwd", Email: "dave@x.com"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.uc.Register(ctx, RegisterInput{Username: "weak", Password: "password", Email: "w@x.com"})
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = e.uc.Register(ctx, RegisterInput{Username: "", Password: "Str0ng!pwd", Email: "a@x.com"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.uc.Register(ctx, RegisterInput{Username: "x", Password: "Str0ng!pwd", Email: "nope"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.uc.Register(ctx, RegisterInput{Username: "x", Password: "Str0ng!pwd", Email: "x@x.com", Role: "root"})
	require.ErrorIs(t, err, ErrInvalidInput)

	ident, err := e.uc.Register(ctx, RegisterInput{Username: "boss", Password: "Str0ng!pwd", Email: "b@x.com", Role: user.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, ident.Role)
}

func TestWhoAmI(t *testing.T) {
	e := newEnv(t)
	u := e.addUser(t, "hank", "Hankpass1!", user.RoleAdmin, true)

	ident, err := e.uc.WhoAmI(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hank", ident.Username)
	assert.Equal(t, user.RoleAdmin, ident.Role)

	_, err = e.uc.WhoAmI(context.Background(), 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.addUser(t, "ivy", "Ivypass1!", user.RoleUser, true)
	pair := e.login(t, "ivy", "Ivypass1!")

	err := e.uc.ChangePassword(ctx, u.ID, "wrong", "Newpass1!")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	err = e.uc.ChangePassword(ctx, u.ID, "Ivypass1!", "short")
	require.ErrorIs(t, err, ErrWeakPassword)

	require.NoError(t, e.uc.ChangePassword(ctx, u.ID, "Ivypass1!", "Newpass1!"))

	valid, err := e.store.IsValid(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.False(t, valid)

	_, err = e.uc.Login(ctx, LoginInput{Username: "ivy", Password: "Ivypass1!"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	e.login(t, "ivy", "Newpass1!")

	err = e.uc.ChangePassword(ctx, 999, "a", "b")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBootstrapAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seed := AdminSeed{Username: "admin", Email: "admin@stocker.local", Password: "Adm1n$ecur3!2024"}

	created, err := e.uc.BootstrapAdmin(ctx, seed)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = e.uc.BootstrapAdmin(ctx, seed)
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := e.users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)
	e.login(t, "admin", "Adm1n$ecur3!2024")

	_, err = e.uc.BootstrapAdmin(ctx, AdminSeed{Username: "admin"})
	require.ErrorIs(t, err, ErrInvalidInput)
}
