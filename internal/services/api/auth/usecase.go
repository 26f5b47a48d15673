package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	coreauth "github.com/NordCoder/Stocker/internal/auth"
	"github.com/NordCoder/Stocker/internal/domain"
	domainauth "github.com/NordCoder/Stocker/internal/domain/auth"
	"github.com/NordCoder/Stocker/internal/domain/user"
	"github.com/NordCoder/Stocker/internal/obs"
)

type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type TxRunner interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// ThrottleIP adds the client address as a second throttle dimension.
	ThrottleIP bool
	Now        func() time.Time
}

type Deps struct {
	Users    user.Repo
	Tokens   *RefreshStore
	Throttle *Throttle
	Codec    *coreauth.TokenCodec
	Hasher   Hasher
	Tx       TxRunner
	Events   domainauth.SecurityEventSink
	Logger   *zap.Logger
}

type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type LoginInput struct {
	Username string
	Password string
	IP       string
}

type RegisterInput struct {
	Username string
	Password string
	Email    string
	Role     user.Role
}

type Usecase struct {
	users    user.Repo
	tokens   *RefreshStore
	throttle *Throttle
	codec    *coreauth.TokenCodec
	hasher   Hasher
	tx       TxRunner
	events   domainauth.SecurityEventSink
	log      *zap.Logger
	cfg      Config

	dummyOnce sync.Once
	dummy     string
}

func NewUsecase(d Deps, cfg Config) *Usecase {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Tx == nil {
		d.Tx = noTx{}
	}
	return &Usecase{
		users:    d.Users,
		tokens:   d.Tokens,
		throttle: d.Throttle,
		codec:    d.Codec,
		hasher:   d.Hasher,
		tx:       d.Tx,
		events:   d.Events,
		log:      d.Logger,
		cfg:      cfg,
	}
}

type noTx struct{}

func (noTx) WithTx(ctx context.Context, function func(ctx context.Context) error) error {
	return function(ctx)
}

type throttleKey struct {
	id   string
	kind domainauth.IdentifierKind
}

func (u *Usecase) throttleKeys(username, ip string) []throttleKey {
	keys := []throttleKey{{id: username, kind: domainauth.IdentifierUsername}}
	if u.cfg.ThrottleIP && ip != "" {
		keys = append(keys, throttleKey{id: ip, kind: domainauth.IdentifierIP})
	}
	return keys
}

func (u *Usecase) Login(ctx context.Context, in LoginInput) (TokenPair, error) {
	ctx, span := obs.Tracer().Start(ctx, "auth.Login")
	defer span.End()

	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		mLogin.WithLabelValues("invalid_input").Inc()
		return TokenPair{}, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	keys := u.throttleKeys(username, in.IP)
	for _, k := range keys {
		until, err := u.throttle.Check(ctx, k.id, k.kind)
		if err != nil {
			return TokenPair{}, u.fail(span, err)
		}
		if until != nil {
			mLogin.WithLabelValues("blocked").Inc()
			lerr := &LockedError{Until: *until, Now: u.cfg.Now()}
			u.security(ctx, zapcore.WarnLevel, domainauth.SecurityEvent{
				Type: domainauth.EventLoginBlocked, Username: username, IP: in.IP,
				Detail: map[string]string{
					"dimension":         string(k.kind),
					"remaining_minutes": fmt.Sprint(lerr.RemainingMinutes()),
				},
			})
			return TokenPair{}, lerr
		}
	}

	usr, err := u.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return TokenPair{}, u.fail(span, fmt.Errorf("login: get user: %w", err))
	}
	if usr == nil {
		// Same bcrypt cost on the unknown-user path so timing does not reveal it.
		u.hasher.Verify(in.Password, u.dummyHash())
		return TokenPair{}, u.loginFailed(ctx, keys, username, in.IP, 0, "unknown_user")
	}
	if !u.hasher.Verify(in.Password, usr.PasswordHash) {
		return TokenPair{}, u.loginFailed(ctx, keys, username, in.IP, usr.ID, "bad_password")
	}
	if !usr.Active {
		mLogin.WithLabelValues("inactive").Inc()
		u.security(ctx, zapcore.WarnLevel, domainauth.SecurityEvent{
			Type: domainauth.EventLoginInactive, UserID: usr.ID, Username: username, IP: in.IP,
		})
		return TokenPair{}, ErrAccountInactive
	}

	if err := u.throttle.Reset(ctx, username, domainauth.IdentifierUsername); err != nil {
		return TokenPair{}, u.fail(span, err)
	}
	pair, err := u.issuePair(ctx, usr)
	if err != nil {
		return TokenPair{}, u.fail(span, err)
	}

	mLogin.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int64("user.id", usr.ID))
	u.security(ctx, zapcore.InfoLevel, domainauth.SecurityEvent{
		Type: domainauth.EventLoginSucceeded, UserID: usr.ID, Username: username, IP: in.IP,
	})
	return pair, nil
}

// loginFailed records the failure on every throttle dimension. If that
// failure trips a block the caller sees LockedError rather than bad
// credentials.
func (u *Usecase) loginFailed(ctx context.Context, keys []throttleKey, username, ip string, userID int64, reason string) error {
	now := u.cfg.Now()
	var (
		attempts int
		locked   *LockedError
	)
	for _, k := range keys {
		a, err := u.throttle.RecordFailedAttempt(ctx, k.id, k.kind)
		if err != nil {
			return u.fail(trace.SpanFromContext(ctx), fmt.Errorf("login: %w", err))
		}
		if k.kind == domainauth.IdentifierUsername {
			attempts = a.Attempts
		}
		if a.BlockedAt(now) && locked == nil {
			locked = &LockedError{Until: *a.BlockedUntil, Now: now}
		}
	}

	u.security(ctx, zapcore.WarnLevel, domainauth.SecurityEvent{
		Type: domainauth.EventLoginFailed, UserID: userID, Username: username, IP: ip,
		Detail: map[string]string{"reason": reason, "attempts": fmt.Sprint(attempts)},
	})
	if locked != nil {
		mLogin.WithLabelValues("locked").Inc()
		u.security(ctx, zapcore.WarnLevel, domainauth.SecurityEvent{
			Type: domainauth.EventAccountLocked, UserID: userID, Username: username, IP: ip,
			Detail: map[string]string{"until": locked.Until.Format(time.RFC3339)},
		})
		return locked
	}
	mLogin.WithLabelValues("invalid_credentials").Inc()
	return ErrInvalidCredentials
}

func (u *Usecase) dummyHash() string {
	u.dummyOnce.Do(func() {
		h, err := u.hasher.Hash(uuid.NewString())
		if err != nil {
			u.log.Warn("dummy hash", zap.Error(err))
		}
		u.dummy = h
	})
	return u.dummy
}

var errRotationLost = errors.New("refresh token revoked concurrently")

func (u *Usecase) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	ctx, span := obs.Tracer().Start(ctx, "auth.Refresh")
	defer span.End()

	if raw == "" {
		mRefresh.WithLabelValues("invalid").Inc()
		return TokenPair{}, ErrInvalidToken
	}
	claims, err := u.codec.VerifyKind(raw, coreauth.KindRefresh)
	if err != nil {
		if errors.Is(err, coreauth.ErrTokenExpired) {
			mRefresh.WithLabelValues("expired").Inc()
			return TokenPair{}, ErrTokenExpired
		}
		mRefresh.WithLabelValues("invalid").Inc()
		return TokenPair{}, ErrInvalidToken
	}
	subject, err := claims.SubjectID()
	if err != nil {
		mRefresh.WithLabelValues("invalid").Inc()
		return TokenPair{}, ErrInvalidToken
	}

	rec, err := u.tokens.FindByRaw(ctx, raw)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			mRefresh.WithLabelValues("invalid").Inc()
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, u.fail(span, fmt.Errorf("refresh: find token: %w", err))
	}
	if rec.UserID != subject {
		mRefresh.WithLabelValues("invalid").Inc()
		return TokenPair{}, ErrInvalidToken
	}
	if rec.Revoked {
		return TokenPair{}, u.reuseDetected(ctx, rec.UserID, "revoked_token_presented")
	}
	if rec.Expired(u.cfg.Now()) {
		mRefresh.WithLabelValues("expired").Inc()
		return TokenPair{}, ErrTokenExpired
	}

	usr, err := u.users.GetByID(ctx, rec.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return TokenPair{}, u.fail(span, fmt.Errorf("refresh: get user: %w", err))
	}
	if usr == nil || !usr.Active {
		mRefresh.WithLabelValues("forbidden").Inc()
		return TokenPair{}, ErrForbidden
	}

	var pair TokenPair
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := u.issuePair(ctx, usr)
		if err != nil {
			return err
		}
		ok, err := u.tokens.Revoke(ctx, raw, p.RefreshToken)
		if err != nil {
			return err
		}
		if !ok {
			return errRotationLost
		}
		pair = p
		return nil
	})
	if errors.Is(err, errRotationLost) {
		return TokenPair{}, u.reuseDetected(ctx, rec.UserID, "concurrent_rotation")
	}
	if err != nil {
		return TokenPair{}, u.fail(span, fmt.Errorf("refresh: rotate: %w", err))
	}

	mRefresh.WithLabelValues("ok").Inc()
	u.security(ctx, zapcore.InfoLevel, domainauth.SecurityEvent{
		Type: domainauth.EventTokenRefreshed, UserID: usr.ID, Username: usr.Username,
	})
	return pair, nil
}

// reuseDetected revokes every outstanding refresh token of the user. A
// revoked token only resurfaces when it was copied, so the whole session
// family is treated as compromised.
func (u *Usecase) reuseDetected(ctx context.Context, userID int64, reason string) error {
	mRefresh.WithLabelValues("revoked").Inc()
	mReuse.Inc()
	n, err := u.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke after reuse: %w", err)
	}
	u.security(ctx, zapcore.ErrorLevel, domainauth.SecurityEvent{
		Type: domainauth.EventTokenReuse, UserID: userID,
		Detail: map[string]string{"reason": reason, "revoked": fmt.Sprint(n)},
	})
	return ErrTokenRevoked
}

// Logout revokes the presented refresh token. It never fails from the
// caller's point of view; problems are only logged.
func (u *Usecase) Logout(ctx context.Context, raw string) {
	ctx, span := obs.Tracer().Start(ctx, "auth.Logout")
	defer span.End()
	mLogout.Inc()

	if raw == "" {
		return
	}
	log := obs.WithTrace(ctx, u.log)
	claims, err := u.codec.VerifyKind(raw, coreauth.KindRefresh)
	if err != nil {
		log.Warn("logout with unusable token", zap.Error(err))
		return
	}
	if _, err := u.tokens.Revoke(ctx, raw, ""); err != nil {
		span.RecordError(err)
		log.Error("logout revoke", zap.Error(err))
		return
	}
	subject, _ := claims.SubjectID()
	u.security(ctx, zapcore.InfoLevel, domainauth.SecurityEvent{Type: domainauth.EventLogout, UserID: subject})
}

func (u *Usecase) Register(ctx context.Context, in RegisterInput) (user.Identity, error) {
	ctx, span := obs.Tracer().Start(ctx, "auth.Register")
	defer span.End()

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	role := in.Role
	if role == "" {
		role = user.RoleUser
	}
	switch {
	case username == "":
		return user.Identity{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	case !strings.Contains(email, "@"):
		return user.Identity{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	case !role.Valid():
		return user.Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if err := coreauth.CheckPasswordPolicy(in.Password); err != nil {
		mRegister.WithLabelValues("weak_password").Inc()
		return user.Identity{}, err
	}

	if err := u.ensureFree(ctx, u.users.GetByUsername, username, "username already taken"); err != nil {
		return user.Identity{}, err
	}
	if err := u.ensureFree(ctx, u.users.GetByEmail, email, "email already in use"); err != nil {
		return user.Identity{}, err
	}

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return user.Identity{}, u.fail(span, err)
	}
	usr := &user.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := u.users.Create(ctx, usr); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			mRegister.WithLabelValues("conflict").Inc()
			return user.Identity{}, fmt.Errorf("%w: username or email already in use", ErrConflict)
		}
		return user.Identity{}, u.fail(span, fmt.Errorf("register: create user: %w", err))
	}

	mRegister.WithLabelValues("ok").Inc()
	u.security(ctx, zapcore.InfoLevel, domainauth.SecurityEvent{
		Type: domainauth.EventUserRegistered, UserID: usr.ID, Username: usr.Username,
		Detail: map[string]string{"role": string(usr.Role)},
	})
	return usr.Identity(), nil
}

func (u *Usecase) ensureFree(ctx context.Context, lookup func(context.Context, string) (*user.User, error), value, msg string) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		mRegister.WithLabelValues("conflict").Inc()
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("register: lookup: %w", err)
	}
}

func (u *Usecase) WhoAmI(ctx context.Context, subjectID int64) (user.Identity, error) {
	usr, err := u.users.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return user.Identity{}, ErrNotFound
		}
		return user.Identity{}, fmt.Errorf("whoami: %w", err)
	}
	return usr.Identity(), nil
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every refresh token so other sessions must sign in again.
func (u *Usecase) ChangePassword(ctx context.Context, subjectID int64, current, next string) error {
	ctx, span := obs.Tracer().Start(ctx, "auth.ChangePassword")
	defer span.End()

	usr, err := u.users.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrNotFound
		}
		return u.fail(span, fmt.Errorf("change password: %w", err))
	}
	if !u.hasher.Verify(current, usr.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := coreauth.CheckPasswordPolicy(next); err != nil {
		return err
	}
	hash, err := u.hasher.Hash(next)
	if err != nil {
		return u.fail(span, err)
	}

	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := u.users.UpdatePassword(ctx, usr.ID, hash); err != nil {
			return err
		}
		_, err := u.tokens.RevokeAllForUser(ctx, usr.ID)
		return err
	})
	if err != nil {
		return u.fail(span, fmt.Errorf("change password: %w", err))
	}

	u.security(ctx, zapcore.InfoLevel, domainauth.SecurityEvent{
		Type: domainauth.EventPasswordChanged, UserID: usr.ID, Username: usr.Username,
	})
	return nil
}

func (u *Usecase) issuePair(ctx context.Context, usr *user.User) (TokenPair, error) {
	subject := coreauth.SubjectFromID(usr.ID)
	access, accessExp, err := u.codec.Sign(coreauth.Claims{
		Kind:             coreauth.KindAccess,
		Username:         usr.Username,
		Role:             string(usr.Role),
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}, u.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access: %w", err)
	}

	jti, err := uuid.NewRandom()
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh jti: %w", err)
	}
	refresh, refreshExp, err := u.codec.Sign(coreauth.Claims{
		Kind:             coreauth.KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject, ID: jti.String()},
	}, u.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh: %w", err)
	}
	if _, err := u.tokens.Create(ctx, usr.ID, refresh, refreshExp); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// security writes the event to the security log and the event sink. Sink
// failures are logged and never fail the operation.
func (u *Usecase) security(ctx context.Context, lvl zapcore.Level, ev domainauth.SecurityEvent) {
	if ev.At.IsZero() {
		ev.At = u.cfg.Now()
	}
	log := obs.Security(obs.WithTrace(ctx, u.log))
	fields := []zap.Field{
		zap.String("event", string(ev.Type)),
		zap.Int64("user_id", ev.UserID),
		zap.String("username", ev.Username),
		zap.String("ip", ev.IP),
	}
	for k, v := range ev.Detail {
		fields = append(fields, zap.String(k, v))
	}
	if ce := log.Check(lvl, "security event"); ce != nil {
		ce.Write(fields...)
	}

	if u.events == nil {
		return
	}
	if err := u.events.Record(ctx, ev); err != nil {
		log.Warn("record security event", zap.String("event", string(ev.Type)), zap.Error(err))
	}
}

func (u *Usecase) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
