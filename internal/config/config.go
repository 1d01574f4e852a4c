package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddr string `toml:"listen_addr"`

	DBPath         string `toml:"db_path"`
	ProjectBackend string `toml:"project_backend"`
	ProjectFile    string `toml:"project_file"`

	PhotoBackend  string        `toml:"photo_backend"`
	PhotoPath     string        `toml:"photo_local_path"`
	PhotoAgeKey   string        `toml:"photo_age_key_file"`
	S3Bucket      string        `toml:"s3_bucket"`
	S3Prefix      string        `toml:"s3_prefix"`
	S3Region      string        `toml:"s3_region"`
	S3Endpoint    string        `toml:"s3_endpoint"`
	S3AccessKeyID string        `toml:"s3_access_key_id"`
	S3SecretKey   string        `toml:"s3_secret_access_key"`
	AuditBackend  string        `toml:"audit_backend"`
	ClaudeAPIKey  string        `toml:"claude_api_key"`
	ClaudeModel   string        `toml:"claude_model"`
	OllamaHost    string        `toml:"ollama_host"`
	OllamaModel   string        `toml:"ollama_model"`
	StoresFile    string        `toml:"stores_file"`
	ReportDir     string        `toml:"report_dir"`
	SessionTTL    time.Duration `toml:"session_ttl"`
	LogLevel      string        `toml:"log_level"`
	LogFile       string        `toml:"log_file"`
	LogFormat     string        `toml:"log_format"`
}

// Default returns the configuration used when neither a config file nor
// environment variables override a value.
func Default() *Config {
	return &Config{
		ListenAddr:     ":8080",
		DBPath:         "/data/kioskinstall.db",
		ProjectBackend: "sqlite",
		ProjectFile:    "/data/projects.json",
		PhotoBackend:   "local",
		PhotoPath:      "/data/photos",
		S3Region:       "us-east-1",
		AuditBackend:   "claude",
		ClaudeModel:    "claude-opus-4-6",
		OllamaHost:     "http://localhost:11434",
		OllamaModel:    "llava",
		SessionTTL:     12 * time.Hour,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load builds the configuration from defaults, the optional TOML file named by
// KIOSK_CONFIG, and finally environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("KIOSK_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.ProjectBackend = getEnv("PROJECT_BACKEND", cfg.ProjectBackend)
	cfg.ProjectFile = getEnv("PROJECT_FILE", cfg.ProjectFile)
	cfg.PhotoBackend = getEnv("PHOTO_BACKEND", cfg.PhotoBackend)
	cfg.PhotoPath = getEnv("PHOTO_LOCAL_PATH", cfg.PhotoPath)
	cfg.PhotoAgeKey = getEnv("PHOTO_AGE_KEY_FILE", cfg.PhotoAgeKey)
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getEnv("S3_PREFIX", cfg.S3Prefix)
	cfg.S3Region = getEnv("S3_REGION", cfg.S3Region)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3AccessKeyID = getEnv("S3_ACCESS_KEY_ID", cfg.S3AccessKeyID)
	cfg.S3SecretKey = getEnv("S3_SECRET_ACCESS_KEY", cfg.S3SecretKey)
	cfg.AuditBackend = getEnv("AUDIT_BACKEND", cfg.AuditBackend)
	cfg.ClaudeAPIKey = getEnv("CLAUDE_API_KEY", cfg.ClaudeAPIKey)
	cfg.ClaudeModel = getEnv("CLAUDE_MODEL", cfg.ClaudeModel)
	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.OllamaModel = getEnv("OLLAMA_MODEL", cfg.OllamaModel)
	cfg.StoresFile = getEnv("STORES_FILE", cfg.StoresFile)
	cfg.ReportDir = getEnv("REPORT_DIR", cfg.ReportDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if v, ok := os.LookupEnv("SESSION_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_TTL %q: %w", v, err)
		}
		cfg.SessionTTL = d
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
