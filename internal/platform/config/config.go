package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	LogLevel        string
	// TrustedProxies are CIDRs or addresses allowed to set forwarding headers.
	TrustedProxies  []string
}

// Auth configures credential signing and the session cookie.
type Auth struct {
	JWTSigningKey  string
	JWTIssuer      string
	ClientTokenTTL time.Duration
	// AdminTokenTTL of zero issues admin tokens without an expiry claim.
	AdminTokenTTL time.Duration
	CookieSecure  bool
	// OpsToken guards the /ops routes. Empty disables them.
	OpsToken string
}

// Codes configures verification code issuance.
type Codes struct {
	TTL        time.Duration
	MaxRetries int
}

// Upload configures the staging area and the artifact sink.
type Upload struct {
	Sink              string // "drive" or "local"
	TmpDir            string
	LocalDir          string
	RemoteCallTimeout time.Duration
}

// Google configures the Drive and Sheets clients.
type Google struct {
	CredentialsFile string
	Scopes          []string
	RootFolderID    string
}

// Ledger configures the status mirror.
type Ledger struct {
	SpreadsheetID string
	SheetName     string
	Timeout       time.Duration
}

// DatabaseConfig configures the postgres record store. An empty URL selects in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the revocation list backend. An empty URL selects the in-memory list.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimit bounds code authentication attempts per client IP.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

// BootstrapAdmin seeds one admin account at startup when all fields are set.
type BootstrapAdmin struct {
	Name     string
	Email    string
	Password string
}

type Config struct {
	Server    Server
	Auth      Auth
	Codes     Codes
	Upload    Upload
	Google    Google
	Ledger    Ledger
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimit
	Bootstrap BootstrapAdmin
}

const devSigningKey = "dev-secret-key-change-in-production"

// Load reads an optional .env file and then builds Config from the environment.
func Load(logger *slog.Logger) Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", "error", err)
	}
	return FromEnv(logger)
}

// FromEnv builds Config from environment variables so main stays lean.
func FromEnv(logger *slog.Logger) Config {
	e := envReader{logger: logger}
	return Config{
		Server: Server{
			Addr:            e.str("KYC_ADDR", ":8080"),
			ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
			LogLevel:        e.str("LOG_LEVEL", "info"),
			TrustedProxies:  e.list("TRUSTED_PROXIES", nil),
		},
		Auth: Auth{
			JWTSigningKey:  e.str("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:      e.str("JWT_ISSUER", "kycdesk"),
			ClientTokenTTL: e.duration("CLIENT_TOKEN_TTL", 24*time.Hour),
			AdminTokenTTL:  e.duration("ADMIN_TOKEN_TTL", 0),
			CookieSecure:   e.boolean("COOKIE_SECURE", false),
			OpsToken:       e.str("OPS_ADMIN_TOKEN", ""),
		},
		Codes: Codes{
			TTL:        e.duration("CODE_TTL", 7*24*time.Hour),
			MaxRetries: e.integer("CODE_MAX_RETRIES", 10),
		},
		Upload: Upload{
			Sink:              strings.ToLower(e.str("UPLOAD_SINK", "local")),
			TmpDir:            e.str("UPLOAD_TMP_DIR", os.TempDir()),
			LocalDir:          e.str("UPLOAD_LOCAL_DIR", "./uploads"),
			RemoteCallTimeout: e.duration("REMOTE_CALL_TIMEOUT", 30*time.Second),
		},
		Google: Google{
			CredentialsFile: e.str("GOOGLE_CREDENTIALS_FILE", ""),
			Scopes: e.list("GOOGLE_SCOPES", []string{
				"https://www.googleapis.com/auth/drive",
				"https://www.googleapis.com/auth/spreadsheets",
			}),
			RootFolderID: e.str("DRIVE_ROOT_FOLDER_ID", ""),
		},
		Ledger: Ledger{
			SpreadsheetID: e.str("LEDGER_SPREADSHEET_ID", ""),
			SheetName:     e.str("LEDGER_SHEET_NAME", "Master Sheet"),
			Timeout:       e.duration("LEDGER_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.integer("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    e.integer("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 15*time.Minute),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimit{
			PerSecond: e.float("AUTH_RATE_PER_SECOND", 1),
			Burst:     e.integer("AUTH_RATE_BURST", 5),
		},
		Bootstrap: BootstrapAdmin{
			Name:     e.str("BOOTSTRAP_ADMIN_NAME", ""),
			Email:    e.str("BOOTSTRAP_ADMIN_EMAIL", ""),
			Password: e.str("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
	}
}

// Validate rejects combinations the server cannot run with.
func (c Config) Validate() error {
	switch c.Upload.Sink {
	case "local":
	case "drive":
		if c.Google.RootFolderID == "" {
			return errors.New("UPLOAD_SINK=drive requires DRIVE_ROOT_FOLDER_ID")
		}
	default:
		return fmt.Errorf("unknown UPLOAD_SINK %q", c.Upload.Sink)
	}
	return nil
}

// UsesDevSigningKey reports whether the placeholder signing key is in effect.
func (c Config) UsesDevSigningKey() bool {
	return c.Auth.JWTSigningKey == devSigningKey
}

type envReader struct {
	logger *slog.Logger
}

func (e envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		e.invalid(key, raw)
		return def
	}
	return d
}

func (e envReader) integer(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		e.invalid(key, raw)
		return def
	}
	return n
}

func (e envReader) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		e.invalid(key, raw)
		return def
	}
	return f
}

func (e envReader) boolean(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		e.invalid(key, raw)
		return def
	}
	return b
}

func (e envReader) list(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (e envReader) invalid(key, raw string) {
	if e.logger != nil {
		e.logger.Warn("invalid config value, using default", "key", key, "value", raw)
	}
}
