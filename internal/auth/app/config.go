package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/pkg/jwtx"
)

const (
	KeyModeEphemeral = "ephemeral"
	KeyModeFile      = "file"

	DenylistSQLite = "sqlite"
	DenylistRedis  = "redis"
)

type Config struct {
	Issuer   string `koanf:"issuer"`   // Issuer claim of access tokens
	Audience string `koanf:"audience"` // Audience claim of access tokens

	Algorithm      string `koanf:"algorithm"`        // JWT signing algorithm (RS256, ES256, EdDSA) (default: EdDSA)
	KeyMode        string `koanf:"key_mode"`         // ephemeral or file (default: ephemeral)
	SigningKeyFile string `koanf:"signing_key_file"` // PEM private key, created when missing (file mode)
	NumKeys        int    `koanf:"num_keys"`         // Signing keys generated in ephemeral mode (default: 2)
	RSABits        int    `koanf:"rsa_bits"`         // RSA key size for RS256 (default: 3072)

	DatabaseFile string `koanf:"database_file"` // SQLite database path (default: ./auth.db)
	PepperFile   string `koanf:"pepper_file"`   // Password hashing pepper, created when missing (default: ./pepper)

	AccessTTL       time.Duration `koanf:"access_ttl"`
	RefreshTTL      time.Duration `koanf:"refresh_ttl"`
	RememberMeTTL   time.Duration `koanf:"remember_me_ttl"`
	MFAChallengeTTL time.Duration `koanf:"mfa_challenge_ttl"`
	EmailOTPTTL     time.Duration `koanf:"email_otp_ttl"`
	ResetTTL        time.Duration `koanf:"reset_ttl"`
	MFAIssuer       string        `koanf:"mfa_issuer"` // Label shown in authenticator apps

	DenylistBackend string `koanf:"denylist_backend"` // sqlite or redis (default: sqlite)
	RedisAddr       string `koanf:"redis_addr"`
	RedisPassword   string `koanf:"redis_password"`
	RedisDB         int    `koanf:"redis_db"`

	SMTPHost     string `koanf:"smtp_host"` // Empty logs mail instead of sending it
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUsername string `koanf:"smtp_username"`
	SMTPPassword string `koanf:"smtp_password"`
	SMTPFrom     string `koanf:"smtp_from"`
	AppBaseURL   string `koanf:"app_base_url"` // Public CMS address used in reset links

	RecaptchaSecret   string  `koanf:"recaptcha_secret"` // Empty disables captcha checks
	RecaptchaMinScore float64 `koanf:"recaptcha_min_score"`

	BootstrapAdminEmail string `koanf:"bootstrap_admin_email"` // Creates the first admin of an empty database
	TrustProxyHeaders   bool   `koanf:"trust_proxy_headers"`

	Env                  string        `koanf:"env"`        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        `koanf:"log_level"`  // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        `koanf:"log_format"` // Log format (json, text) (default: json)
	Port                 int           `koanf:"port"`       // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration `koanf:"shutdown_grace_period"`
	HousekeepingInterval time.Duration `koanf:"housekeeping_interval"`
}

// envDefaults is the base configuration layer, read from the environment.
func envDefaults() map[string]any {
	return map[string]any{
		"issuer":           getEnvOrDefault("AUTH_ISSUER", "quill-auth"),
		"audience":         getEnvOrDefault("AUTH_AUDIENCE", "quill"),
		"algorithm":        getEnvOrDefault("AUTH_ALGORITHM", jwtx.AlgorithmEdDSA),
		"key_mode":         getEnvOrDefault("AUTH_KEY_MODE", KeyModeEphemeral),
		"signing_key_file": getEnvOrDefault("AUTH_SIGNING_KEY_FILE", "signing_key.pem"),
		"num_keys":         getEnvIntOrDefault("AUTH_NUM_KEYS", 2),
		"rsa_bits":         getEnvIntOrDefault("AUTH_RSA_BITS", 3072),

		"database_file": getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		"pepper_file":   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		"access_ttl":        getEnvDurationOrDefault("AUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		"refresh_ttl":       getEnvDurationOrDefault("AUTH_REFRESH_TTL", service.DefaultRefreshTTL),
		"remember_me_ttl":   getEnvDurationOrDefault("AUTH_REMEMBER_ME_TTL", service.DefaultRememberMeTTL),
		"mfa_challenge_ttl": getEnvDurationOrDefault("AUTH_MFA_CHALLENGE_TTL", service.DefaultChallengeTTL),
		"email_otp_ttl":     getEnvDurationOrDefault("AUTH_EMAIL_OTP_TTL", service.DefaultEmailOTPTTL),
		"reset_ttl":         getEnvDurationOrDefault("AUTH_RESET_TTL", service.DefaultPasswordResetTTL),
		"mfa_issuer":        getEnvOrDefault("AUTH_MFA_ISSUER", "Quill"),

		"denylist_backend": getEnvOrDefault("AUTH_DENYLIST_BACKEND", DenylistSQLite),
		"redis_addr":       getEnvOrDefault("AUTH_REDIS_ADDR", "localhost:6379"),
		"redis_password":   os.Getenv("AUTH_REDIS_PASSWORD"),
		"redis_db":         getEnvIntOrDefault("AUTH_REDIS_DB", 0),

		"smtp_host":     os.Getenv("AUTH_SMTP_HOST"),
		"smtp_port":     getEnvIntOrDefault("AUTH_SMTP_PORT", 587),
		"smtp_username": os.Getenv("AUTH_SMTP_USERNAME"),
		"smtp_password": os.Getenv("AUTH_SMTP_PASSWORD"),
		"smtp_from":     getEnvOrDefault("AUTH_SMTP_FROM", "quill@localhost"),
		"app_base_url":  getEnvOrDefault("AUTH_APP_BASE_URL", "http://localhost:3000"),

		"recaptcha_secret":    os.Getenv("AUTH_RECAPTCHA_SECRET"),
		"recaptcha_min_score": getEnvFloatOrDefault("AUTH_RECAPTCHA_MIN_SCORE", 0.5),

		"bootstrap_admin_email": os.Getenv("AUTH_BOOTSTRAP_ADMIN_EMAIL"),
		"trust_proxy_headers":   getEnvBoolOrDefault("AUTH_TRUST_PROXY_HEADERS", false),

		"env":                   getEnvOrDefault("ENV", "dev"),
		"log_level":             getEnvOrDefault("LOG_LEVEL", "info"),
		"log_format":            getEnvOrDefault("LOG_FORMAT", "json"),
		"port":                  getEnvIntOrDefault("PORT", 8080),
		"shutdown_grace_period": getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		"housekeeping_interval": getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// RegisterFlags adds the command line overrides to fs. Flag names are the
// config keys with dashes, e.g. --database-file.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("port", 8080, "HTTP server port")
	fs.String("database-file", "auth.db", "SQLite database path")
	fs.String("pepper-file", "pepper", "password hashing pepper file")
	fs.String("key-mode", KeyModeEphemeral, "signing key mode (ephemeral, file)")
	fs.String("signing-key-file", "signing_key.pem", "PEM signing key for file mode")
	fs.String("denylist-backend", DenylistSQLite, "access token denylist (sqlite, redis)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "json", "log format (json, text)")
	fs.String("env", "dev", "environment (dev, staging, prod)")
}

// LoadConfig layers the environment, the optional YAML file at path and any
// flags explicitly set on fs, later layers winning. fs may be nil.
func LoadConfig(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	for key, val := range envDefaults() {
		if err := k.Set(key, val); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").With("file", path).Wrapf(err, "load config file")
		}
	}

	if fs != nil {
		flags := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
		})
		if err := k.Load(flags, nil); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").Wrapf(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Issuer == "" {
		errs = append(errs, errors.New("issuer is required"))
	}
	switch c.KeyMode {
	case KeyModeEphemeral:
	case KeyModeFile:
		if c.SigningKeyFile == "" {
			errs = append(errs, errors.New("signing_key_file is required in file key mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("key_mode %q must be ephemeral or file", c.KeyMode))
	}
	switch c.DenylistBackend {
	case DenylistSQLite:
	case DenylistRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr is required for the redis denylist"))
		}
	default:
		errs = append(errs, fmt.Errorf("denylist_backend %q must be sqlite or redis", c.DenylistBackend))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.RememberMeTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.RememberMeTTL < c.RefreshTTL {
		errs = append(errs, errors.New("remember_me_ttl must not be shorter than refresh_ttl"))
	}
	if u, err := url.Parse(c.AppBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("app_base_url %q must be an absolute URL", c.AppBaseURL))
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		errs = append(errs, errors.New("smtp_from is required when smtp_host is set"))
	}

	if err := errors.Join(errs...); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
