package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable holding an optional YAML config path.
const ConfigFileEnv = "TRIPDESK_CONFIG"

type Config struct {
	ServerPort int            `yaml:"server_port"`
	Database   DatabaseConfig `yaml:"database"`
	Auth       AuthConfig     `yaml:"auth"`
	Log        LogConfig      `yaml:"log"`
	Redis      RedisConfig    `yaml:"redis"`
	MQ         MQConfig       `yaml:"mq"`
	RabbitMQ   RabbitMQConfig `yaml:"rabbitmq"`
	PubSub     PubSubConfig   `yaml:"pubsub"`
	Kafka      KafkaConfig    `yaml:"kafka"`
	Storage    StorageConfig  `yaml:"storage"`
	Minio      MinioConfig    `yaml:"minio"`
	GCS        GCSConfig      `yaml:"gcs"`
	Pagination PageConfig     `yaml:"pagination"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	UseSSL   bool   `yaml:"use_ssl"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RedisConfig struct {
	URL       string        `yaml:"url"`
	LookupTTL time.Duration `yaml:"lookup_ttl"`
}

type MQConfig struct {
	// Backend is one of "none", "memory", "rabbitmq", "pubsub" or "kafka".
	Backend              string `yaml:"backend"`
	NotificationsChannel string `yaml:"notifications_channel"`
}

type RabbitMQConfig struct {
	URL             string `yaml:"url"`
	QueueDurable    bool   `yaml:"queue_durable"`
	QueueAutoDelete bool   `yaml:"queue_auto_delete"`
	PrefetchCount   int    `yaml:"prefetch_count"`
}

type PubSubConfig struct {
	ProjectID          string `yaml:"project_id"`
	CredentialsFile    string `yaml:"credentials_file"`
	SubscriptionSuffix string `yaml:"subscription_suffix"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type StorageConfig struct {
	// Backend is "minio", "gcs" or "memory".
	Backend string `yaml:"backend"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type PageConfig struct {
	DefaultSize int `yaml:"default_size"`
	MaxSize     int `yaml:"max_size"`
}

func defaults() Config {
	return Config{
		ServerPort: 8080,
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "tripdesk",
			Password: "password",
			DBName:   "tripdesk_db",
		},
		Auth: AuthConfig{TokenTTL: time.Hour},
		Log:  LogConfig{Level: "info", Format: "json"},
		Redis: RedisConfig{
			LookupTTL: 5 * time.Minute,
		},
		MQ: MQConfig{
			Backend:              "none",
			NotificationsChannel: "trip-request-status",
		},
		RabbitMQ: RabbitMQConfig{QueueDurable: true, PrefetchCount: 10},
		PubSub:   PubSubConfig{SubscriptionSuffix: "-sub"},
		Kafka:    KafkaConfig{GroupID: "tripdesk-notifier"},
		Storage:  StorageConfig{Backend: "minio"},
		Minio:    MinioConfig{Bucket: "tripdesk"},
		Pagination: PageConfig{
			DefaultSize: 15,
			MaxSize:     100,
		},
	}
}

// LoadConfig reads the YAML file named by TRIPDESK_CONFIG (if any) and then
// applies environment overrides.
func LoadConfig() Config {
	cfg, err := LoadConfigFile(os.Getenv(ConfigFileEnv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v, falling back to environment\n", err)
		cfg, _ = LoadConfigFile("")
	}
	return cfg
}

// LoadConfigFile builds a Config from defaults, the YAML file at path (skipped
// when path is empty) and environment overrides, in that order.
func LoadConfigFile(path string) (Config, error) {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ServerPort = getEnvInt("SERVER_PORT", cfg.ServerPort)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.UseSSL = getEnvBool("DB_USE_SSL", cfg.Database.UseSSL)

	cfg.Auth.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", cfg.Auth.JWTSecret))
	cfg.Auth.TokenTTL = getEnvDuration("JWT_TTL", cfg.Auth.TokenTTL)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.LookupTTL = getEnvDuration("REDIS_LOOKUP_TTL", cfg.Redis.LookupTTL)

	cfg.MQ.Backend = getEnv("MQ_BACKEND", cfg.MQ.Backend)
	cfg.MQ.NotificationsChannel = getEnv("MQ_NOTIFICATIONS_CHANNEL", cfg.MQ.NotificationsChannel)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.QueueDurable = getEnvBool("RABBITMQ_QUEUE_DURABLE", cfg.RabbitMQ.QueueDurable)
	cfg.RabbitMQ.QueueAutoDelete = getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", cfg.RabbitMQ.QueueAutoDelete)
	cfg.RabbitMQ.PrefetchCount = getEnvInt("RABBITMQ_PREFETCH", cfg.RabbitMQ.PrefetchCount)

	cfg.PubSub.ProjectID = getEnv("PUBSUB_PROJECT_ID", cfg.PubSub.ProjectID)
	cfg.PubSub.CredentialsFile = getEnv("PUBSUB_CREDENTIALS_FILE", cfg.PubSub.CredentialsFile)
	cfg.PubSub.SubscriptionSuffix = getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", cfg.PubSub.SubscriptionSuffix)

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Minio.Endpoint = getEnv("MINIO_ENDPOINT", cfg.Minio.Endpoint)
	cfg.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", cfg.Minio.AccessKey)
	cfg.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", cfg.Minio.SecretKey)
	cfg.Minio.Bucket = getEnv("MINIO_BUCKET", cfg.Minio.Bucket)
	cfg.Minio.UseSSL = getEnvBool("MINIO_USE_SSL", cfg.Minio.UseSSL)
	cfg.GCS.Bucket = getEnv("GCS_BUCKET", cfg.GCS.Bucket)
	cfg.GCS.ProjectID = getEnv("GCS_PROJECT_ID", cfg.GCS.ProjectID)
	cfg.GCS.CredentialsFile = getEnv("GCS_CREDENTIALS_FILE", cfg.GCS.CredentialsFile)

	cfg.Pagination.DefaultSize = getEnvInt("PAGE_SIZE_DEFAULT", cfg.Pagination.DefaultSize)
	cfg.Pagination.MaxSize = getEnvInt("PAGE_SIZE_MAX", cfg.Pagination.MaxSize)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
