package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ServerPort     int
	UseHTTPS       bool
	HTTPSPort      int
	HTTPSKeyFile   string
	HTTPSCertFile  string
	SecretKeys     []string // system secrets, plain text or bcrypt hashes
	SecretKeysFile string   // optional JSON array file, reloaded on change
	FFmpegPath     string
	UploadDir      string // local media directory, also the public URL prefix
	MaxUploadMB    int64
	TickInterval   time.Duration
	StallThreshold time.Duration
	DBDriver       string // mysql, postgres, sqlite
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	SQLitePath     string
	// Redis配置
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	// MinIO配置
	StorageDriver  string // local, minio
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
	// 日志配置
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool treats "1", "true", "yes" (and any positive number) as enabled.
func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n > 0
	}
	return value == "yes"
}

// ParseSecretKeys decodes a JSON array of secret keys. Invalid input yields no keys,
// so system authorization fails closed.
func ParseSecretKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		log.Printf("SECRET_KEYS is not a JSON array of strings, system calls will be rejected: %v", err)
		return nil
	}
	filtered := keys[:0]
	for _, k := range keys {
		if k != "" {
			filtered = append(filtered, k)
		}
	}
	return filtered
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerPort:     getEnvInt("SERVER_PORT", 8000),
		UseHTTPS:       getEnvBool("USE_HTTPS", false),
		HTTPSPort:      getEnvInt("HTTPS_SERVER_PORT", 8080),
		HTTPSKeyFile:   getEnv("HTTPS_KEY_FILE_PATH", ""),
		HTTPSCertFile:  getEnv("HTTPS_CERT_FILE_PATH", ""),
		SecretKeys:     ParseSecretKeys(getEnv("SECRET_KEYS", "[]")),
		SecretKeysFile: getEnv("SECRET_KEYS_FILE", ""),
		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadMB:    int64(getEnvInt("MAX_UPLOAD_MB", 512)),
		TickInterval:   time.Duration(getEnvInt("TICK_INTERVAL_MS", 250)) * time.Millisecond,
		StallThreshold: time.Duration(getEnvInt("TICK_STALL_THRESHOLD_MS", 5000)) * time.Millisecond,
		DBDriver:       getEnv("DB_DRIVER", "sqlite"),
		DBHost:         getEnv("DB_HOST", "127.0.0.1"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBUser:         getEnv("DB_USER", "root"),
		DBPassword:     os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:         getEnv("DB_NAME", "playsync"),
		SQLitePath:     getEnv("SQLITE_PATH", "playsync.db"),
		RedisEnabled:   getEnvBool("REDIS_ENABLED", false),
		RedisHost:      getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		StorageDriver:  getEnv("STORAGE_DRIVER", "local"),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "playsync"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		LogMaxSizeMB:   getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups:  getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays:  getEnvInt("LOG_MAX_AGE_DAYS", 30),
		LogCompress:    getEnvBool("LOG_COMPRESS", true),
	}
}
