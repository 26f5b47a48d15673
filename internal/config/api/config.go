package api_config

import (
	"time"

	janitorcfg "github.com/NordCoder/Stocker/internal/config/janitor"
	"github.com/NordCoder/Stocker/internal/obs"
	outboxsvc "github.com/NordCoder/Stocker/internal/outbox"
	pg "github.com/NordCoder/Stocker/internal/repository/postgres"
	authsvc "github.com/NordCoder/Stocker/internal/services/api/auth"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	TrustProxy      bool          `mapstructure:"trust_proxy"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() obs.OTELConfig {
	return obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Auth struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	Issuer           string        `mapstructure:"issuer"`
	AccessTTL        time.Duration `mapstructure:"access_ttl"`
	RefreshTTL       time.Duration `mapstructure:"refresh_ttl"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	BlockDuration    time.Duration `mapstructure:"block_duration"`
	BcryptCost       int           `mapstructure:"bcrypt_cost"`
	ThrottleIP       bool          `mapstructure:"throttle_ip"`
}

func (a *Auth) AsUsecaseConfig() authsvc.Config {
	return authsvc.Config{
		AccessTTL:  a.AccessTTL,
		RefreshTTL: a.RefreshTTL,
		ThrottleIP: a.ThrottleIP,
	}
}

func (a *Auth) AsThrottleConfig() authsvc.ThrottleConfig {
	return authsvc.ThrottleConfig{
		MaxAttempts:   a.MaxLoginAttempts,
		BlockDuration: a.BlockDuration,
	}
}

type Cookie struct {
	AccessName  string `mapstructure:"access_name"`
	RefreshName string `mapstructure:"refresh_name"`
	Domain      string `mapstructure:"domain"`
	Path        string `mapstructure:"path"`
	Secure      bool   `mapstructure:"secure"`
	SameSite    string `mapstructure:"samesite"`
}

func (c *Cookie) AsCookieConfig() authsvc.CookieConfig {
	return authsvc.CookieConfig{
		AccessName:  c.AccessName,
		RefreshName: c.RefreshName,
		Domain:      c.Domain,
		Path:        c.Path,
		Secure:      c.Secure,
		SameSite:    authsvc.ParseSameSite(c.SameSite),
	}
}

type Bootstrap struct {
	Enable        bool   `mapstructure:"enable"`
	AdminUsername string `mapstructure:"admin_username"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

func (b *Bootstrap) AsAdminSeed() authsvc.AdminSeed {
	return authsvc.AdminSeed{
		Username: b.AdminUsername,
		Email:    b.AdminEmail,
		Password: b.AdminPassword,
	}
}

type Storage struct {
	Driver string `mapstructure:"driver"`
}

type Config struct {
	App       App                    `mapstructure:"app"`
	Server    Server                 `mapstructure:"server"`
	Storage   Storage                `mapstructure:"storage"`
	DB        pg.Config              `mapstructure:"db"`
	Auth      Auth                   `mapstructure:"auth"`
	Cookie    Cookie                 `mapstructure:"cookie"`
	Bootstrap Bootstrap              `mapstructure:"bootstrap"`
	Outbox    outboxsvc.RunnerConfig `mapstructure:"outbox"`
	Janitor   janitorcfg.JanitorCfg  `mapstructure:"janitor"`
	OTEL      OTEL                   `mapstructure:"otel"`
	Sentry    obs.SentryConfig       `mapstructure:"sentry"`
	Log       Log                    `mapstructure:"log"`
}

func (c *Config) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    "stocker/" + c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
