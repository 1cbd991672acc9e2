// Package config loads process configuration for the admin server from
// the environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/spf13/pflag"

	"github.com/ggoodman/webadmin-go/admins/filestore"
	"github.com/ggoodman/webadmin-go/auth"
	"github.com/ggoodman/webadmin-go/admins/redisstore"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Admin store kinds.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// DefaultServerKeyFile is the key file name inside the home directory.
const DefaultServerKeyFile = "serverKey.pem"

// Config is the server configuration. Environment variables are named in
// the struct tags; flags registered by BindFlags override them.
type Config struct {
	Port    int    `env:"PORT,default=8080"`
	HomeDir string `env:"WEBADMIN_HOME,default=."`

	// AdminStore selects the admin list backend: file, redis or memory.
	AdminStore     string `env:"WEBADMIN_ADMIN_STORE,default=file"`
	AdminFile      string `env:"WEBADMIN_ADMIN_FILE"`
	WatchAdminFile bool   `env:"WEBADMIN_WATCH_ADMIN_FILE,default=true"`
	Redis          redisstore.Config

	ServerKeyFile string        `env:"WEBADMIN_SERVER_KEY_FILE"`
	IdleTimeout   time.Duration `env:"WEBADMIN_IDLE_TIMEOUT,default=10m"`
	TokenTTL      time.Duration `env:"WEBADMIN_TOKEN_TTL,default=1h"`
	// AllowedOrigins lists host patterns allowed to open the channel from
	// another origin, separated by ';' in the environment.
	AllowedOrigins []string `env:"WEBADMIN_ALLOWED_ORIGINS"`

	// OIDCIssuer enables external access tokens on the HTTP API.
	OIDCIssuer         string        `env:"OIDC_ISSUER"`
	OIDCAudience       string        `env:"OIDC_AUDIENCE"`
	OIDCExtraAudiences []string      `env:"OIDC_EXTRA_AUDIENCES"`
	OIDCAllowedAlgs    []string      `env:"OIDC_ALLOWED_ALGS"`
	OIDCLeeway         time.Duration `env:"OIDC_LEEWAY,default=2m"`
	OIDCSkipTypCheck   bool          `env:"OIDC_SKIP_TYP_CHECK,default=false"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
}

// FromEnv decodes a Config from the environment, applying tag defaults.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}

// BindFlags registers flags overriding the environment.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.HomeDir, "home-dir", c.HomeDir, "directory holding the admin list and server key")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "port to listen on")
	fs.StringVar(&c.AdminStore, "admin-store", c.AdminStore, "admin list backend: file, redis or memory")
	fs.StringVar(&c.AdminFile, "admin-file", c.AdminFile, "admin list file (default <home-dir>/serverAdmins.json)")
	fs.BoolVar(&c.WatchAdminFile, "watch-admin-file", c.WatchAdminFile, "reload the admin list file when it changes")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origin", c.AllowedOrigins, "host pattern allowed to connect cross-origin (repeatable)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
}

// Load reads the environment, then parses args as flags, and validates
// the result. It returns pflag.ErrHelp when help was requested.
func Load(name string, args []string) (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrInvalid, fs.Arg(0))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values and their combinations.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port))
	}
	switch c.AdminStore {
	case StoreFile, StoreRedis, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown admin store %q", ErrInvalid, c.AdminStore))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: idle timeout must be positive", ErrInvalid))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: token ttl must be positive", ErrInvalid))
	}
	if c.OIDCIssuer != "" && c.OIDCAudience == "" {
		errs = append(errs, fmt.Errorf("%w: OIDC_AUDIENCE is required with OIDC_ISSUER", ErrInvalid))
	}
	if c.OIDCLeeway < 0 {
		errs = append(errs, fmt.Errorf("%w: OIDC leeway must not be negative", ErrInvalid))
	}
	for _, alg := range c.OIDCAllowedAlgs {
		if strings.EqualFold(alg, "none") {
			errs = append(errs, fmt.Errorf("%w: OIDC algorithm none is not allowed", ErrInvalid))
		}
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.LogFormat))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

// AdminFilePath is AdminFile, defaulting to serverAdmins.json in HomeDir.
func (c *Config) AdminFilePath() string {
	if c.AdminFile != "" {
		return c.AdminFile
	}
	return filepath.Join(c.HomeDir, filestore.DefaultFileName)
}

// ServerKeyPath is ServerKeyFile, defaulting to serverKey.pem in HomeDir.
func (c *Config) ServerKeyPath() string {
	if c.ServerKeyFile != "" {
		return c.ServerKeyFile
	}
	return filepath.Join(c.HomeDir, DefaultServerKeyFile)
}

// AccessTokenOptions translates the OIDC settings into options for
// auth.NewFromDiscovery.
func (c *Config) AccessTokenOptions() []auth.AccessTokenAuthOption {
	opts := []auth.AccessTokenAuthOption{auth.WithLeeway(c.OIDCLeeway)}
	if len(c.OIDCAllowedAlgs) > 0 {
		opts = append(opts, auth.WithAllowedAlgs(c.OIDCAllowedAlgs...))
	}
	if len(c.OIDCExtraAudiences) > 0 {
		opts = append(opts, auth.WithAdditionalAudiences(c.OIDCExtraAudiences...))
	}
	if c.OIDCSkipTypCheck {
		opts = append(opts, auth.WithoutTypCheck())
	}
	return opts
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, s)
	}
	return l, nil
}
