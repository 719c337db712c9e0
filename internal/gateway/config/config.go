package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	Upload      UploadConfig
	Session     SessionConfig
	Mention     MentionConfig
}

type UploadConfig struct {
	// Backend is one of "s3", "postgres", "http", "memory" or "inline".
	Backend       string
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	KeyPrefix     string
	HTTPEndpoint  string
	HTTPToken     string
	MaxBytes      int64
	RatePerSec    float64
	RateBurst     int
	// Params are forwarded with every upload request, from
	// UPLOAD_PARAMS="key=value,key2=value2".
	Params map[string]string
}

type SessionConfig struct {
	CacheSize int
}

type MentionConfig struct {
	FeedFile          string
	MinimumCharacters int
}

// CanUseS3 reports whether the S3 settings are complete.
func (c UploadConfig) CanUseS3() bool {
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	cfg := FromEnv()
	if !isPortFromEnv() {
		cfg.Port = *port
	}
	return cfg, nil
}

// FromEnv builds the configuration from environment variables alone.
func FromEnv() *Config {
	port := ":8081"
	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			port = envPort
		} else {
			port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:        port,
		Env:         env,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Upload:      loadUploadConfig(env),
		Session: SessionConfig{
			CacheSize: envInt("SESSION_CACHE_SIZE", 256),
		},
		Mention: MentionConfig{
			FeedFile:          strings.TrimSpace(os.Getenv("MENTION_FEED_FILE")),
			MinimumCharacters: envInt("MENTION_MIN_CHARS", 0),
		},
	}
}

func isPortFromEnv() bool {
	return strings.TrimSpace(os.Getenv("PORT")) != ""
}

func loadUploadConfig(env string) UploadConfig {
	cfg := UploadConfig{
		Endpoint:      resolveUploadEndpoint(env),
		Region:        firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_S3_REGION")), "us-east-1"),
		AccessKey:     firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey:     firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:        firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_S3_BUCKET")), "editor-uploads"),
		UseSSL:        resolveUploadUseSSL(env),
		PublicBaseURL: strings.TrimSpace(os.Getenv("UPLOAD_PUBLIC_BASE_URL")),
		KeyPrefix:     firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_KEY_PREFIX")), "uploads"),
		HTTPEndpoint:  strings.TrimSpace(os.Getenv("UPLOAD_HTTP_ENDPOINT")),
		HTTPToken:     strings.TrimSpace(os.Getenv("UPLOAD_HTTP_TOKEN")),
		MaxBytes:      int64(envInt("UPLOAD_MAX_BYTES", 10*1024*1024)),
		RatePerSec:    envFloat("UPLOAD_RATE_PER_SEC", 0),
		RateBurst:     envInt("UPLOAD_RATE_BURST", 4),
		Params:        parseParams(os.Getenv("UPLOAD_PARAMS")),
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("UPLOAD_BACKEND")))
	if cfg.Backend == "" {
		cfg.Backend = "auto"
	}
	return cfg
}

func resolveUploadEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_MINIO_ENDPOINT")), strings.TrimSpace(os.Getenv("UPLOAD_S3_ENDPOINT")))
	}
	return strings.TrimSpace(os.Getenv("UPLOAD_S3_ENDPOINT"))
}

func resolveUploadUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("UPLOAD_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

// parseParams reads comma separated key=value pairs. Entries without a
// key are skipped.
func parseParams(raw string) map[string]string {
	var out map[string]string
	for _, pair := range strings.Split(raw, ",") {
		k, v, _ := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
