// Package config loads the server configuration.
//
// Values are layered, later sources winning:
//   - built-in defaults
//   - the YAML file named by --config (or PAIRCHAT_CONFIG)
//   - a dotenv file (--env-file, default ".env") exporting PAIRCHAT_* variables
//   - PAIRCHAT_* environment variables
//   - command line flags
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "PAIRCHAT_"

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	ServiceName string `yaml:"service_name"`

	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	HTTP     HTTPConfig     `yaml:"http"`
	Push     PushConfig     `yaml:"push"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Redis    RedisConfig    `yaml:"redis"`
}

type LogConfig struct {
	// Level is a zerolog level name.
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	// Driver is sqlite3, postgres or pgx.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type HTTPConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	// AuthRateLimit is requests per second per IP on register/login/verify.
	AuthRateLimit   float64       `yaml:"auth_rate_limit"`
	AuthRateBurst   int           `yaml:"auth_rate_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type PushConfig struct {
	// GatewayURL is the push gateway endpoint. Empty disables delivery and
	// only logs notifications.
	GatewayURL    string        `yaml:"gateway_url"`
	ServerKey     string        `yaml:"server_key"`
	Timeout       time.Duration `yaml:"timeout"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type RedisConfig struct {
	// Addr enables the cross-instance live relay when set.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

func Default() *Config {
	return &Config{
		ListenAddr:  ":8080",
		ServiceName: "PairChat",
		Log:         LogConfig{Level: "info", Format: "json"},
		Database:    DatabaseConfig{Driver: "sqlite3", DSN: "pairchat.db"},
		Auth:        AuthConfig{TokenTTL: 7 * 24 * time.Hour},
		HTTP: HTTPConfig{
			AuthRateLimit:   5,
			AuthRateBurst:   20,
			ShutdownTimeout: 10 * time.Second,
		},
		Push: PushConfig{
			Timeout:       10 * time.Second,
			NotifyTimeout: 5 * time.Second,
		},
		SMTP:  SMTPConfig{Port: "587"},
		Redis: RedisConfig{Channel: "pairchat:live"},
	}
}

// setting is one option reachable from both the environment and the command
// line.
type setting struct {
	name  string
	usage string
	set   func(c *Config, v string) error
}

func str(target func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*target(c) = v
		return nil
	}
}

func duration(target func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*target(c) = d
		return nil
	}
}

func integer(target func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*target(c) = n
		return nil
	}
}

var settings = []setting{
	{"listen-addr", "HTTP listen address", str(func(c *Config) *string { return &c.ListenAddr })},
	{"service-name", "name shown in push notifications and mails", str(func(c *Config) *string { return &c.ServiceName })},
	{"log-level", "log level (trace, debug, info, warn, error)", str(func(c *Config) *string { return &c.Log.Level })},
	{"log-format", "log format (json or console)", str(func(c *Config) *string { return &c.Log.Format })},
	{"db-driver", "database driver (sqlite3, postgres, pgx)", str(func(c *Config) *string { return &c.Database.Driver })},
	{"db-dsn", "database connection string", str(func(c *Config) *string { return &c.Database.DSN })},
	{"jwt-secret", "secret used to sign bearer tokens", str(func(c *Config) *string { return &c.Auth.JWTSecret })},
	{"token-ttl", "bearer token lifetime", duration(func(c *Config) *time.Duration { return &c.Auth.TokenTTL })},
	{"allowed-origins", "comma separated CORS origins", func(c *Config, v string) error {
		c.HTTP.AllowedOrigins = splitList(v)
		return nil
	}},
	{"auth-rate-limit", "requests per second per IP on unauthenticated routes, 0 disables", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.HTTP.AuthRateLimit = f
		return nil
	}},
	{"auth-rate-burst", "burst for the unauthenticated route rate limit", integer(func(c *Config) *int { return &c.HTTP.AuthRateBurst })},
	{"shutdown-timeout", "graceful shutdown timeout", duration(func(c *Config) *time.Duration { return &c.HTTP.ShutdownTimeout })},
	{"push-gateway-url", "push gateway endpoint, empty to only log", str(func(c *Config) *string { return &c.Push.GatewayURL })},
	{"push-server-key", "push gateway server key", str(func(c *Config) *string { return &c.Push.ServerKey })},
	{"push-timeout", "push gateway HTTP timeout", duration(func(c *Config) *time.Duration { return &c.Push.Timeout })},
	{"notify-timeout", "upper bound for one notification dispatch", duration(func(c *Config) *time.Duration { return &c.Push.NotifyTimeout })},
	{"smtp-host", "SMTP host, empty to only log mails", str(func(c *Config) *string { return &c.SMTP.Host })},
	{"smtp-port", "SMTP port", str(func(c *Config) *string { return &c.SMTP.Port })},
	{"smtp-username", "SMTP username", str(func(c *Config) *string { return &c.SMTP.Username })},
	{"smtp-password", "SMTP password", str(func(c *Config) *string { return &c.SMTP.Password })},
	{"smtp-from", "sender address of verification mails", str(func(c *Config) *string { return &c.SMTP.From })},
	{"redis-addr", "redis address for the live relay, empty disables it", str(func(c *Config) *string { return &c.Redis.Addr })},
	{"redis-password", "redis password", str(func(c *Config) *string { return &c.Redis.Password })},
	{"redis-db", "redis database number", integer(func(c *Config) *int { return &c.Redis.DB })},
	{"redis-channel", "redis pub/sub channel of the live relay", str(func(c *Config) *string { return &c.Redis.Channel })},
}

func envName(name string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load builds the configuration from args (without the program name) and the
// process environment.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("pairchat", pflag.ContinueOnError)
	configPath := flags.String("config", os.Getenv(EnvPrefix+"CONFIG"), "path to a YAML config file")
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	values := make(map[string]*string, len(settings))
	for _, s := range settings {
		values[s.name] = flags.String(s.name, "", s.usage+" (env "+envName(s.name)+")")
	}
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", *envFile, err)
		}
	}
	for _, s := range settings {
		if v, ok := os.LookupEnv(envName(s.name)); ok {
			if err := s.set(cfg, v); err != nil {
				return nil, fmt.Errorf("invalid %s: %w", envName(s.name), err)
			}
		}
	}

	for _, s := range settings {
		if !flags.Changed(s.name) {
			continue
		}
		if err := s.set(cfg, *values[s.name]); err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", s.name, err)
		}
	}

	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn must be set")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret must be set (" + envName("jwt-secret") + ")")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.Push.NotifyTimeout <= 0 {
		return errors.New("notify timeout must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}
