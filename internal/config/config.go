package config

import (
	"os"
	"runtime"
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
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	R2        R2Config
	OIDC      OIDCConfig
	Fetch     FetchConfig
	Encode    EncodeConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	CompilePerHour  int
	UploadPerHour   int
	DownloadPerHour int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type OIDCConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

// FetchConfig bounds outbound clip retrieval.
type FetchConfig struct {
	Concurrency    int
	AttemptTimeout int // seconds, per attempt
	MaxRetries     int
	WorkDir        string
}

// EncodeConfig bounds the CPU-heavy compose stage.
type EncodeConfig struct {
	Workers    int // 0 means runtime.NumCPU
	JobTimeout int // seconds, whole encode stage
	FFmpegPath string
}

type GatewayConfig struct {
	Enabled bool
}

// WorkerCount returns the effective encode worker-pool size.
func (e EncodeConfig) WorkerCount() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.NumCPU()
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("OIDC_CLIENT_ID")

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
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("ratelimit.compile_per_hour", "RATELIMIT_COMPILE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = viper.BindEnv("ratelimit.download_per_hour", "RATELIMIT_DOWNLOAD_PER_HOUR")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("oidc.domain", "OIDC_DOMAIN")
	_ = viper.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("fetch.concurrency", "FETCH_CONCURRENCY")
	_ = viper.BindEnv("fetch.attempt_timeout", "FETCH_ATTEMPT_TIMEOUT")
	_ = viper.BindEnv("fetch.max_retries", "FETCH_MAX_RETRIES")
	_ = viper.BindEnv("fetch.work_dir", "FETCH_WORK_DIR")
	_ = viper.BindEnv("encode.workers", "ENCODE_WORKERS")
	_ = viper.BindEnv("encode.job_timeout", "ENCODE_JOB_TIMEOUT")
	_ = viper.BindEnv("encode.ffmpeg_path", "FFMPEG_PATH")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.compile_per_hour", 10)
	viper.SetDefault("ratelimit.upload_per_hour", 50)
	viper.SetDefault("ratelimit.download_per_hour", 100)

	// Fetch defaults
	viper.SetDefault("fetch.concurrency", 4)
	viper.SetDefault("fetch.attempt_timeout", 30)
	viper.SetDefault("fetch.max_retries", 3)
	viper.SetDefault("fetch.work_dir", os.TempDir())

	// Encode defaults
	viper.SetDefault("encode.workers", 0) // 0 → NumCPU
	viper.SetDefault("encode.job_timeout", 900)
	viper.SetDefault("encode.ffmpeg_path", "ffmpeg")

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			CompilePerHour:  viper.GetInt("ratelimit.compile_per_hour"),
			UploadPerHour:   viper.GetInt("ratelimit.upload_per_hour"),
			DownloadPerHour: viper.GetInt("ratelimit.download_per_hour"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		OIDC: OIDCConfig{
			Domain:   viper.GetString("oidc.domain"),
			ClientID: viper.GetString("oidc.client_id"),
			Issuer:   viper.GetString("oidc.issuer"),
		},
		Fetch: FetchConfig{
			Concurrency:    viper.GetInt("fetch.concurrency"),
			AttemptTimeout: viper.GetInt("fetch.attempt_timeout"),
			MaxRetries:     viper.GetInt("fetch.max_retries"),
			WorkDir:        viper.GetString("fetch.work_dir"),
		},
		Encode: EncodeConfig{
			Workers:    viper.GetInt("encode.workers"),
			JobTimeout: viper.GetInt("encode.job_timeout"),
			FFmpegPath: viper.GetString("encode.ffmpeg_path"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
