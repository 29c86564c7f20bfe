package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr           string        `yaml:"addr" env:"ADDR"`
	ReadTimeout    time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	IdleTimeout    time.Duration `yaml:"idleTimeout" env:"IDLE_TIMEOUT"`
	AllowedOrigins []string      `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS"` // "*" allows all
}

// GRPC serves the health service; empty addr disables it.
type GRPC struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

type Logging struct {
	Env       string `yaml:"env" env:"ENV"`             // dev|stage|prod
	Service   string `yaml:"service" env:"SERVICE"`     // chat-relay
	Version   string `yaml:"version" env:"VERSION"`     // v0.1.0
	Backend   string `yaml:"backend" env:"BACKEND"`     // std|zap
	AddSource bool   `yaml:"addSource" env:"ADD_SOURCE"` // false|true
	Debug     bool   `yaml:"debug" env:"DEBUG"`         // false|true
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Store struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	// Path is the sqlite database file.
	Path string `yaml:"path" env:"PATH"`
	// DSN is the postgres connection string.
	DSN               string        `yaml:"dsn" env:"DSN"`
	MaxConns          int32         `yaml:"maxConns" env:"MAX_CONNS"`
	MinConns          int32         `yaml:"minConns" env:"MIN_CONNS"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime" env:"MAX_CONN_LIFETIME"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime" env:"MAX_CONN_IDLE_TIME"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod" env:"HEALTH_CHECK_PERIOD"`
	ApplicationName   string        `yaml:"applicationName" env:"APPLICATION_NAME"`
}

type Persist struct {
	Workers   int           `yaml:"workers" env:"WORKERS"`
	QueueSize int           `yaml:"queueSize" env:"QUEUE_SIZE"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type Chat struct {
	GuestName        string   `yaml:"guestName" env:"GUEST_NAME"`
	DefaultRoom      string   `yaml:"defaultRoom" env:"DEFAULT_ROOM"`
	MaxMessageLength int      `yaml:"maxMessageLength" env:"MAX_MESSAGE_LENGTH"`
	HistoryLimit     int      `yaml:"historyLimit" env:"HISTORY_LIMIT"`
	MaxHistoryLimit  int      `yaml:"maxHistoryLimit" env:"MAX_HISTORY_LIMIT"`
	SuggestedRooms   []string `yaml:"suggestedRooms" env:"SUGGESTED_ROOMS"`
}

type WS struct {
	PingInterval          time.Duration `yaml:"pingInterval" env:"PING_INTERVAL"`
	WriteTimeout          time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	ReadLimit             int64         `yaml:"readLimit" env:"READ_LIMIT"`
	SendBuffer            int           `yaml:"sendBuffer" env:"SEND_BUFFER"`
	NotifyUnauthenticated bool          `yaml:"notifyUnauthenticated" env:"NOTIFY_UNAUTHENTICATED"`
}

type JWT struct {
	Alg           string        `yaml:"alg" env:"ALG"` // HS256|RS256
	Secret        string        `yaml:"secret" env:"SECRET"`
	PublicKeyPath string        `yaml:"publicKeyPath" env:"PUBLIC_KEY_PATH"`
	Issuer        string        `yaml:"issuer" env:"ISSUER"`
	Audience      string        `yaml:"audience" env:"AUDIENCE"`
	ClockSkew     time.Duration `yaml:"clockSkew" env:"CLOCK_SKEW"`
}

func (j JWT) Enabled() bool {
	return j.Secret != "" || j.PublicKeyPath != ""
}

type Auth struct {
	// TrustClientUsername accepts ?username= without a token (dev only).
	TrustClientUsername bool     `yaml:"trustClientUsername" env:"TRUST_CLIENT_USERNAME"`
	AllowGuests         bool     `yaml:"allowGuests" env:"ALLOW_GUESTS"`
	InactiveUsers       []string `yaml:"inactiveUsers" env:"INACTIVE_USERS"`
	JWT                 JWT      `yaml:"jwt" envPrefix:"JWT_"`
}

// Redis enables cross-process fan-out; empty addr disables it.
type Redis struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	Channel  string `yaml:"channel" env:"CHANNEL"`
}

type Config struct {
	HTTP    HTTP    `yaml:"http" envPrefix:"HTTP_"`
	GRPC    GRPC    `yaml:"grpc" envPrefix:"GRPC_"`
	Logging Logging `yaml:"logging" envPrefix:"LOG_"`
	Store   Store   `yaml:"store" envPrefix:"STORE_"`
	Persist Persist `yaml:"persist" envPrefix:"PERSIST_"`
	Chat    Chat    `yaml:"chat" envPrefix:"CHAT_"`
	WS      WS      `yaml:"ws" envPrefix:"WS_"`
	Auth    Auth    `yaml:"auth" envPrefix:"AUTH_"`
	Redis   Redis   `yaml:"redis" envPrefix:"REDIS_"`
}

const envPrefix = "CHAT_"

// LoadConfig reads CONFIG_PATH (default ./config/config.yaml), applies CHAT_* env overrides,
// fills defaults and validates. A missing file is not an error.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}

	return Load(path)
}

func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "chat-relay"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Store.Driver == DriverSQLite && c.Store.Path == "" {
		c.Store.Path = "chat.db"
	}
	if c.Store.ApplicationName == "" {
		c.Store.ApplicationName = c.Logging.Service
	}

	if c.Persist.Workers <= 0 {
		c.Persist.Workers = 4
	}
	if c.Persist.QueueSize <= 0 {
		c.Persist.QueueSize = 256
	}
	if c.Persist.Timeout <= 0 {
		c.Persist.Timeout = 5 * time.Second
	}

	if c.Chat.GuestName == "" {
		c.Chat.GuestName = "Guest"
	}
	if c.Chat.DefaultRoom == "" {
		c.Chat.DefaultRoom = "general"
	}
	if c.Chat.MaxMessageLength <= 0 {
		c.Chat.MaxMessageLength = 4000
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = 50
	}
	if c.Chat.MaxHistoryLimit <= 0 {
		c.Chat.MaxHistoryLimit = 100
	}
	if len(c.Chat.SuggestedRooms) == 0 {
		c.Chat.SuggestedRooms = []string{"general", "random", "tech"}
	}

	if c.WS.PingInterval <= 0 {
		c.WS.PingInterval = 20 * time.Second
	}
	if c.WS.WriteTimeout <= 0 {
		c.WS.WriteTimeout = 5 * time.Second
	}
	if c.WS.ReadLimit <= 0 {
		c.WS.ReadLimit = 64 << 10
	}
	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = 64
	}

	if c.Auth.JWT.Alg == "" {
		c.Auth.JWT.Alg = "HS256"
	}
	if c.Auth.JWT.ClockSkew == 0 {
		c.Auth.JWT.ClockSkew = 30 * time.Second
	}

	if c.Redis.Channel == "" {
		c.Redis.Channel = "chat-relay:events"
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			return errors.New("store.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}

	switch c.Logging.Backend {
	case "", "std", "zap":
	default:
		return fmt.Errorf("logging.backend %q is not supported", c.Logging.Backend)
	}

	if c.Chat.HistoryLimit > c.Chat.MaxHistoryLimit {
		return errors.New("chat.historyLimit must be <= chat.maxHistoryLimit")
	}

	switch strings.ToUpper(c.Auth.JWT.Alg) {
	case "HS256":
	case "RS256":
		if c.Auth.JWT.Secret != "" {
			return errors.New("auth.jwt.secret is not used with RS256, set publicKeyPath")
		}
	default:
		return fmt.Errorf("auth.jwt.alg %q is not supported", c.Auth.JWT.Alg)
	}
	if c.Auth.JWT.ClockSkew < 0 || c.Auth.JWT.ClockSkew > time.Minute {
		return errors.New("auth.jwt.clockSkew must be in [0..1m]")
	}
	if !c.Auth.JWT.Enabled() && !c.Auth.TrustClientUsername && !c.Auth.AllowGuests {
		return errors.New("auth: no way to authenticate, configure jwt, trustClientUsername or allowGuests")
	}

	return nil
}
