package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultChatEndpoint = "https://api-inference.huggingface.co/models/gpt2"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Polls    PollsConfig
	Chat     ChatConfig
	Kafka    KafkaConfig
	MinIO    MinIOConfig
	CORS     CORSConfig
}

var (
	ConfigInstance *Config
	loadErr        error
	once           sync.Once
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

type DatabaseConfig struct {
	Type     string // postgres or sqlite
	URI      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns URI when set, otherwise a postgres DSN assembled from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URI != "" {
		return d.URI
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
}

type RedisConfig struct {
	URI          string
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

type PollsConfig struct {
	GrantAddOnRegister bool
	DashboardCacheTTL  time.Duration
}

// ChatConfig holds the text-generation proxy settings. APIKey is the
// HUGGING_FACE_API_KEY bearer token.
type ChatConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

type KafkaConfig struct {
	Brokers   []string
	VoteTopic string
	GroupID   string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

type CORSConfig struct {
	AllowedOrigins []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("POLLS_HOST", "")
	v.SetDefault("POLLS_PORT", "8080")
	v.SetDefault("POLLS_READ_TIMEOUT", "30s")
	v.SetDefault("POLLS_WRITE_TIMEOUT", "30s")
	v.SetDefault("POLLS_IDLE_TIMEOUT", "60s")
	v.SetDefault("POLLS_JWT_SECRET", "secret")
	v.SetDefault("POLLS_JWT_EXPIRE", "168h")
	v.SetDefault("POLLS_GRANT_ADD_ON_REGISTER", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "30s")
	v.SetDefault("DATABASE_TYPE", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "password")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_DB", "polls")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_POOL_SIZE", 100)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")
	v.SetDefault("HUGGING_FACE_API_KEY", "")
	v.SetDefault("CHAT_ENDPOINT", DefaultChatEndpoint)
	v.SetDefault("CHAT_TIMEOUT", "30s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_VOTE_TOPIC", "poll-votes")
	v.SetDefault("KAFKA_GROUP_ID", "polls-vote-events")
	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "poll-archive")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("ALLOWED_ORIGINS", "")
}

// LoadConfig loads the process-wide configuration once. A .env file in the
// working directory is applied to the environment first when present.
func LoadConfig() (*Config, error) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file loaded", "error", err)
		}
		ConfigInstance, loadErr = Load(viper.New())
	})
	return ConfigInstance, loadErr
}

// Load builds a Config from v, which must not have been configured yet.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	durations := map[string]*time.Duration{}
	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("POLLS_HOST"),
			Port: v.GetString("POLLS_PORT"),
		},
		Database: DatabaseConfig{
			Type:     strings.ToLower(v.GetString("DATABASE_TYPE")),
			URI:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
		Redis: RedisConfig{
			URI:          v.GetString("REDIS_URL"),
			MaxRetries:   v.GetInt("REDIS_MAX_RETRIES"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("POLLS_JWT_SECRET"),
		},
		Polls: PollsConfig{
			GrantAddOnRegister: v.GetBool("POLLS_GRANT_ADD_ON_REGISTER"),
		},
		Chat: ChatConfig{
			Endpoint: v.GetString("CHAT_ENDPOINT"),
			APIKey:   v.GetString("HUGGING_FACE_API_KEY"),
		},
		Kafka: KafkaConfig{
			Brokers:   splitList(v.GetString("KAFKA_BROKERS")),
			VoteTopic: v.GetString("KAFKA_VOTE_TOPIC"),
			GroupID:   v.GetString("KAFKA_GROUP_ID"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
	}

	durations["POLLS_READ_TIMEOUT"] = &cfg.Server.ReadTimeout
	durations["POLLS_WRITE_TIMEOUT"] = &cfg.Server.WriteTimeout
	durations["POLLS_IDLE_TIMEOUT"] = &cfg.Server.IdleTimeout
	durations["REDIS_DIAL_TIMEOUT"] = &cfg.Redis.DialTimeout
	durations["REDIS_READ_TIMEOUT"] = &cfg.Redis.ReadTimeout
	durations["REDIS_WRITE_TIMEOUT"] = &cfg.Redis.WriteTimeout
	durations["POLLS_JWT_EXPIRE"] = &cfg.JWT.ExpirationTime
	durations["DASHBOARD_CACHE_TTL"] = &cfg.Polls.DashboardCacheTTL
	durations["CHAT_TIMEOUT"] = &cfg.Chat.Timeout

	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	switch cfg.Database.Type {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_TYPE %q (use postgres or sqlite)", cfg.Database.Type)
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.URI == "" {
		return nil, fmt.Errorf("DATABASE_URL required when DATABASE_TYPE is sqlite")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
