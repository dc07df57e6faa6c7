package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Data       DataConfig
	Upload     UploadConfig
	Extraction ExtractionConfig
	Chunking   ChunkingConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Archive    ArchiveConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type DataConfig struct {
	Root string // uploads and outputs live under <root>/uploads, <root>/outputs
}

type UploadConfig struct {
	MaxSizeMB int
	MinFreeMB int // refuse uploads when reported free disk drops below this
}

type ExtractionConfig struct {
	Command string // external converter binary; empty = placeholder extraction
	Timeout int    // seconds
}

type ChunkingConfig struct {
	TargetTokens  int
	OverlapTokens int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	UploadPerHour  int
	ExtractPerHour int
	CleanPerHour   int
}

// ArchiveConfig points at an optional S3-compatible bucket that completed
// job artifacts are mirrored to. All fields empty = archiving disabled.
type ArchiveConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// AllowedExtensions lists the document types the converter understands
// (plus plain-text types the placeholder can always handle).
var AllowedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".pptx": true, ".xlsx": true,
	".html": true, ".htm": true, ".md": true, ".csv": true, ".txt": true,
	".png": true, ".tiff": true, ".tif": true, ".jpg": true, ".jpeg": true,
}

// IsAllowedFile reports whether the filename has a supported extension.
func IsAllowedFile(name string) bool {
	return AllowedExtensions[strings.ToLower(filepath.Ext(name))]
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("ARCHIVE_ACCESS_KEY_ID")
	readSecret("ARCHIVE_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("data.root", "DATA_ROOT")
	_ = viper.BindEnv("upload.max_size_mb", "UPLOAD_MAX_SIZE_MB")
	_ = viper.BindEnv("upload.min_free_mb", "UPLOAD_MIN_FREE_MB")
	_ = viper.BindEnv("extraction.command", "EXTRACTION_COMMAND")
	_ = viper.BindEnv("extraction.timeout", "EXTRACTION_TIMEOUT")
	_ = viper.BindEnv("chunking.target_tokens", "CHUNKING_TARGET_TOKENS")
	_ = viper.BindEnv("chunking.overlap_tokens", "CHUNKING_OVERLAP_TOKENS")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = viper.BindEnv("ratelimit.extract_per_hour", "RATELIMIT_EXTRACT_PER_HOUR")
	_ = viper.BindEnv("ratelimit.clean_per_hour", "RATELIMIT_CLEAN_PER_HOUR")
	_ = viper.BindEnv("archive.account_id", "ARCHIVE_ACCOUNT_ID")
	_ = viper.BindEnv("archive.access_key_id", "ARCHIVE_ACCESS_KEY_ID")
	_ = viper.BindEnv("archive.secret_access_key", "ARCHIVE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("archive.bucket_name", "ARCHIVE_BUCKET_NAME")
	_ = viper.BindEnv("archive.public_url", "ARCHIVE_PUBLIC_URL")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("data.root", "data")
	viper.SetDefault("upload.max_size_mb", 200)
	viper.SetDefault("upload.min_free_mb", 15)
	viper.SetDefault("extraction.command", "")
	viper.SetDefault("extraction.timeout", 1800)
	viper.SetDefault("chunking.target_tokens", 1000)
	viper.SetDefault("chunking.overlap_tokens", 120)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.upload_per_hour", 120)
	viper.SetDefault("ratelimit.extract_per_hour", 60)
	viper.SetDefault("ratelimit.clean_per_hour", 10)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Data: DataConfig{
			Root: viper.GetString("data.root"),
		},
		Upload: UploadConfig{
			MaxSizeMB: viper.GetInt("upload.max_size_mb"),
			MinFreeMB: viper.GetInt("upload.min_free_mb"),
		},
		Extraction: ExtractionConfig{
			Command: viper.GetString("extraction.command"),
			Timeout: viper.GetInt("extraction.timeout"),
		},
		Chunking: ChunkingConfig{
			TargetTokens:  viper.GetInt("chunking.target_tokens"),
			OverlapTokens: viper.GetInt("chunking.overlap_tokens"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour:  viper.GetInt("ratelimit.upload_per_hour"),
			ExtractPerHour: viper.GetInt("ratelimit.extract_per_hour"),
			CleanPerHour:   viper.GetInt("ratelimit.clean_per_hour"),
		},
		Archive: ArchiveConfig{
			AccountID:       viper.GetString("archive.account_id"),
			AccessKeyID:     viper.GetString("archive.access_key_id"),
			SecretAccessKey: viper.GetString("archive.secret_access_key"),
			BucketName:      viper.GetString("archive.bucket_name"),
			PublicURL:       viper.GetString("archive.public_url"),
		},
	}

	return cfg, nil
}
