package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Extractor  ExtractorConfig
	Report     ReportConfig
	Extraction ExtractionConfig
	S3         S3Config
	CORS       CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ExtractorConfig holds settings for the vision completion provider.
type ExtractorConfig struct {
	Provider    string  `mapstructure:"provider"`
	APIKey      string  `mapstructure:"api_key"`
	APIKeyFile  string  `mapstructure:"api_key_file"`
	Model       string  `mapstructure:"model"`
	Endpoint    string  `mapstructure:"endpoint"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TimeoutSecs int     `mapstructure:"timeout_secs"`
	// OpenRouter routing preferences, tried in order with fallbacks disabled.
	Providers []string `mapstructure:"providers"`
	Referer   string   `mapstructure:"referer"`
	AppTitle  string   `mapstructure:"app_title"`
}

// Timeout returns the HTTP timeout for provider calls.
func (e *ExtractorConfig) Timeout() time.Duration {
	if e.TimeoutSecs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(e.TimeoutSecs) * time.Second
}

// ReportConfig holds report assembly settings.
type ReportConfig struct {
	Title          string `mapstructure:"title"`
	PresencePolicy string `mapstructure:"presence_policy"`
}

// ExtractionConfig holds image intake settings.
type ExtractionConfig struct {
	MaxImageSizeMB    int64  `mapstructure:"max_image_size_mb"`
	MaxImageMegapixel int64  `mapstructure:"max_image_megapixels"`
	SampleImage       string `mapstructure:"sample_image"`
}

// MaxImageBytes returns the image size limit in bytes.
func (e *ExtractionConfig) MaxImageBytes() int64 {
	return e.MaxImageSizeMB * 1024 * 1024
}

// MaxImagePixels returns the decoded width*height limit.
func (e *ExtractionConfig) MaxImagePixels() int64 {
	return e.MaxImageMegapixel * 1_000_000
}

// S3Config holds settings for reading screenshots from S3-compatible storage.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from environment variables with the CALIBRA_ prefix.
// A .env file (or the file named by CALIBRA_ENV_FILE) is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	loadDotenv()

	v := viper.New()
	v.SetEnvPrefix("CALIBRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Extractor defaults
	v.SetDefault("extractor.provider", "openai")
	v.SetDefault("extractor.api_key", "")
	v.SetDefault("extractor.api_key_file", "")
	v.SetDefault("extractor.model", "")
	v.SetDefault("extractor.endpoint", "")
	v.SetDefault("extractor.temperature", 0.1)
	v.SetDefault("extractor.max_tokens", 1000)
	v.SetDefault("extractor.timeout_secs", 60)
	v.SetDefault("extractor.providers", "")
	v.SetDefault("extractor.referer", "")
	v.SetDefault("extractor.app_title", "Calibration Extractor")

	// Report defaults
	v.SetDefault("report.title", "Calibration Report")
	v.SetDefault("report.presence_policy", "truthy")

	// Extraction defaults
	v.SetDefault("extraction.max_image_size_mb", 20)
	v.SetDefault("extraction.max_image_megapixels", 40)
	v.SetDefault("extraction.sample_image", "")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:8501")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                     "CALIBRA_SERVER_PORT",
		"server.read_timeout":             "CALIBRA_SERVER_READ_TIMEOUT",
		"server.write_timeout":            "CALIBRA_SERVER_WRITE_TIMEOUT",
		"server.environment":              "CALIBRA_SERVER_ENVIRONMENT",
		"log.level":                       "CALIBRA_LOG_LEVEL",
		"log.format":                      "CALIBRA_LOG_FORMAT",
		"extractor.provider":              "CALIBRA_EXTRACTOR_PROVIDER",
		"extractor.api_key":               "CALIBRA_EXTRACTOR_API_KEY",
		"extractor.api_key_file":          "CALIBRA_EXTRACTOR_API_KEY_FILE",
		"extractor.model":                 "CALIBRA_EXTRACTOR_MODEL",
		"extractor.endpoint":              "CALIBRA_EXTRACTOR_ENDPOINT",
		"extractor.temperature":           "CALIBRA_EXTRACTOR_TEMPERATURE",
		"extractor.max_tokens":            "CALIBRA_EXTRACTOR_MAX_TOKENS",
		"extractor.timeout_secs":          "CALIBRA_EXTRACTOR_TIMEOUT_SECS",
		"extractor.providers":             "CALIBRA_EXTRACTOR_PROVIDERS",
		"extractor.referer":               "CALIBRA_EXTRACTOR_REFERER",
		"extractor.app_title":             "CALIBRA_EXTRACTOR_APP_TITLE",
		"report.title":                    "CALIBRA_REPORT_TITLE",
		"report.presence_policy":          "CALIBRA_REPORT_PRESENCE_POLICY",
		"extraction.max_image_size_mb":    "CALIBRA_EXTRACTION_MAX_IMAGE_SIZE_MB",
		"extraction.max_image_megapixels": "CALIBRA_EXTRACTION_MAX_IMAGE_MEGAPIXELS",
		"extraction.sample_image":         "CALIBRA_EXTRACTION_SAMPLE_IMAGE",
		"s3.region":                       "CALIBRA_S3_REGION",
		"s3.endpoint":                     "CALIBRA_S3_ENDPOINT",
		"s3.access_key":                   "CALIBRA_S3_ACCESS_KEY",
		"s3.secret_key":                   "CALIBRA_S3_SECRET_KEY",
		"cors.allowed_origins":            "CALIBRA_CORS_ALLOWED_ORIGINS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if CALIBRA_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CALIBRA_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	apiKeyFile := v.GetString("extractor.api_key_file")
	cfg.Extractor = ExtractorConfig{
		Provider:    strings.ToLower(strings.TrimSpace(v.GetString("extractor.provider"))),
		APIKey:      resolveAPIKey(apiKeyFile, v.GetString("extractor.api_key")),
		APIKeyFile:  apiKeyFile,
		Model:       v.GetString("extractor.model"),
		Endpoint:    v.GetString("extractor.endpoint"),
		Temperature: v.GetFloat64("extractor.temperature"),
		MaxTokens:   v.GetInt("extractor.max_tokens"),
		TimeoutSecs: v.GetInt("extractor.timeout_secs"),
		Providers:   splitList(v.GetString("extractor.providers")),
		Referer:     v.GetString("extractor.referer"),
		AppTitle:    v.GetString("extractor.app_title"),
	}

	cfg.Report = ReportConfig{
		Title:          v.GetString("report.title"),
		PresencePolicy: strings.ToLower(strings.TrimSpace(v.GetString("report.presence_policy"))),
	}
	cfg.Extraction = ExtractionConfig{
		MaxImageSizeMB:    v.GetInt64("extraction.max_image_size_mb"),
		MaxImageMegapixel: v.GetInt64("extraction.max_image_megapixels"),
		SampleImage:       v.GetString("extraction.sample_image"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}

	return cfg, nil
}

func loadDotenv() {
	path := os.Getenv("CALIBRA_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// resolveAPIKey prefers a non-empty key file over the inline value.
func resolveAPIKey(keyFile, inline string) string {
	if keyFile != "" {
		if data, err := os.ReadFile(keyFile); err == nil {
			if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
				return fileKey
			}
		}
	}
	return strings.TrimSpace(inline)
}

// splitList parses a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
