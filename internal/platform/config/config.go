package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string        `env:"REGISTRAR_ADDR" envDefault:":8080"`
	Environment   string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	AdminAPIToken string        `env:"ADMIN_API_TOKEN"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`
	// TrustedProxies are the peers (IPs or CIDRs) whose X-Forwarded-For and
	// X-Real-IP headers name the client. Empty means the peer address is used.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	Registration Registration
	RateLimit    RateLimitConfig
	Database     DatabaseConfig
	Redis        RedisConfig
}

// RateLimitConfig bounds registration and challenge requests per client IP.
// A zero limit disables throttling for that scope.
type RateLimitConfig struct {
	RegisterLimit  int           `env:"REGISTRATION_RATE_LIMIT" envDefault:"10"`
	ChallengeLimit int           `env:"CHALLENGE_RATE_LIMIT" envDefault:"30"`
	Window         time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Registration holds the settings the registration flow reads on every
// request. UseCaptcha is handed to the CAPTCHA gate explicitly.
type Registration struct {
	UseCaptcha        bool          `env:"USE_CAPTCHA" envDefault:"true"`
	CaptchaTTL        time.Duration `env:"CAPTCHA_TTL" envDefault:"5m"`
	PasswordMinLength int           `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
}

// DatabaseConfig selects the Postgres account store. An empty URL keeps
// accounts in memory.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	TxTimeout       time.Duration `env:"DB_TX_TIMEOUT" envDefault:"5s"`
}

// RedisConfig selects the Redis CAPTCHA challenge store. An empty URL keeps
// challenges in memory.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// FromEnv parses configuration from environment variables.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) validate() error {
	if s.Registration.PasswordMinLength < 1 {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be positive, got %d", s.Registration.PasswordMinLength)
	}
	if s.RateLimit.RegisterLimit < 0 || s.RateLimit.ChallengeLimit < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if s.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", s.RateLimit.Window)
	}
	if s.Registration.CaptchaTTL <= 0 {
		return fmt.Errorf("CAPTCHA_TTL must be positive, got %s", s.Registration.CaptchaTTL)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}
