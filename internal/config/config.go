package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Server     ServerConfig
	Realtime   RealtimeConfig
	Agent      AgentConfig
	Docker     DockerConfig
	Slack      SlackConfig
	Log        LogConfig
	SelfHosted bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// AuthConfig holds settings for verifying tokens minted by the external
// identity provider.
type AuthConfig struct {
	JWTSecret string //nolint:gosec // G117: shared HS256 verification secret
	// PermanentSuperuserEmail can never lose superuser rights through the
	// admin API.
	PermanentSuperuserEmail string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CORSOrigins    []string
	StaticDir      string
	RateLimitRPS   float64
	RateLimitBurst int
}

// RealtimeConfig tunes the board session behaviour.
type RealtimeConfig struct {
	IdleTimeout    time.Duration
	CursorThrottle time.Duration
	PresenceTTL    time.Duration
}

// AgentConfig holds the AI agent endpoints.
type AgentConfig struct {
	DefaultBackend string
	ServiceURL     string
	DockerURL      string
	Container      string
	HealthTimeout  time.Duration
}

// DockerConfig holds container runtime settings.
type DockerConfig struct {
	Host string
}

// SlackConfig holds Slack integration settings.
type SlackConfig struct {
	BotToken      string
	InviteChannel string
	AppBaseURL    string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("ORIM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("ORIM_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("ORIM_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("ORIM_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("ORIM_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateRPS, err := getEnvFloat("ORIM_RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateBurst, err := getEnvInt("ORIM_RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	idleTimeout, err := getEnvDuration("ORIM_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cursorThrottle, err := getEnvDuration("ORIM_CURSOR_THROTTLE", 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	presenceTTL, err := getEnvDuration("ORIM_PRESENCE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	agentHealthTimeout, err := getEnvDuration("ORIM_AGENT_HEALTH_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("ORIM_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("ORIM_CORS_ORIGINS", []string{"http://localhost:3000"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("ORIM_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("ORIM_DB_USER", "orim"),
			Password: getEnv("ORIM_DB_PASSWORD", ""),
			DBName:   getEnv("ORIM_DB_NAME", "orim_dev"),
			SSLMode:  getEnv("ORIM_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("ORIM_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("ORIM_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:               getEnv("ORIM_AUTH_JWT_SECRET", ""),
			PermanentSuperuserEmail: getEnv("ORIM_PERMANENT_SUPERUSER_EMAIL", ""),
		},
		Server: ServerConfig{
			Addr:           getEnv("ORIM_SERVER_ADDR", ":8080"),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			CORSOrigins:    corsOrigins,
			StaticDir:      getEnv("ORIM_STATIC_DIR", ""),
			RateLimitRPS:   rateRPS,
			RateLimitBurst: rateBurst,
		},
		Realtime: RealtimeConfig{
			IdleTimeout:    idleTimeout,
			CursorThrottle: cursorThrottle,
			PresenceTTL:    presenceTTL,
		},
		Agent: AgentConfig{
			DefaultBackend: getEnv("ORIM_AGENT_DEFAULT_BACKEND", "sdk"),
			ServiceURL:     getEnv("ORIM_AGENT_SERVICE_URL", "http://localhost:8001"),
			DockerURL:      getEnv("ORIM_AGENT_DOCKER_URL", "http://localhost:8000"),
			Container:      getEnv("ORIM_AGENT_CONTAINER", "orim-agent"),
			HealthTimeout:  agentHealthTimeout,
		},
		Docker: DockerConfig{
			Host: getEnv("ORIM_DOCKER_HOST", "unix:///var/run/docker.sock"),
		},
		Slack: SlackConfig{
			BotToken:      getEnv("ORIM_SLACK_BOT_TOKEN", ""),
			InviteChannel: getEnv("ORIM_SLACK_INVITE_CHANNEL", ""),
			AppBaseURL:    getEnv("ORIM_APP_BASE_URL", "http://localhost:3000"),
		},
		Log: LogConfig{
			Level:  getEnv("ORIM_LOG_LEVEL", "info"),
			Format: getEnv("ORIM_LOG_FORMAT", "json"),
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// The verification secret is required (no insecure default).
	if c.Auth.JWTSecret == "" {
		return errors.New("ORIM_AUTH_JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("ORIM_AUTH_JWT_SECRET must be at least 32 characters")
	}

	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("ORIM_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("ORIM_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("ORIM_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("ORIM_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("ORIM_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("ORIM_RATE_LIMIT_RPS must be positive, got %g", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("ORIM_RATE_LIMIT_BURST must be >= 1, got %d", c.Server.RateLimitBurst)
	}
	if c.Realtime.IdleTimeout <= 0 {
		return fmt.Errorf("ORIM_IDLE_TIMEOUT must be positive, got %s", c.Realtime.IdleTimeout)
	}
	if c.Realtime.CursorThrottle <= 0 {
		return fmt.Errorf("ORIM_CURSOR_THROTTLE must be positive, got %s", c.Realtime.CursorThrottle)
	}
	if c.Realtime.PresenceTTL < time.Second {
		return fmt.Errorf("ORIM_PRESENCE_TTL must be at least 1s, got %s", c.Realtime.PresenceTTL)
	}
	if c.Agent.HealthTimeout <= 0 {
		return fmt.Errorf("ORIM_AGENT_HEALTH_TIMEOUT must be positive, got %s", c.Agent.HealthTimeout)
	}
	if c.Agent.DefaultBackend != "sdk" && c.Agent.DefaultBackend != "docker" {
		return fmt.Errorf("ORIM_AGENT_DEFAULT_BACKEND must be sdk or docker, got %q", c.Agent.DefaultBackend)
	}
	for key, raw := range map[string]string{
		"ORIM_AGENT_SERVICE_URL": c.Agent.ServiceURL,
		"ORIM_AGENT_DOCKER_URL":  c.Agent.DockerURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("ORIM_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
