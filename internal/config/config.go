package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the ingestion service, loaded
// from the environment (optionally seeded from a .env file in development).
type Config struct {
	// PACS connection
	PACSIP   string
	PACSPort int
	CallingAET string
	CalledAET  string
	CallingPort int

	// Backpressure
	DownloadHighWatermarkGB float64
	DownloadLowWatermarkGB  float64
	MaxPendingSeries        int
	NumConverters           int
	CleanupThresholdGB      float64
	CleanupTargetGB         float64

	// Filesystem
	OutputDir    string
	TagCatalogDir string
	MRClassifierConfigPath string
	Dcm2niixPath string

	// Ambient service stack (HTTP/DB/cache), carried from the teacher
	Port              string
	LogLevel          string
	LogFormat         string
	CORSAllowedOrigins []string

	DatabaseURL string
	DBMaxOpenConns int
	DBMaxIdleConns int

	CacheType string // "redis" or "memory"
	RedisAddr string
	RedisPassword string
	RedisDB   int
}

// Load reads configuration from the process environment, first attempting
// to populate it from a .env file if one is present (godotenv.Load is a
// no-op error when the file is absent, which we ignore).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		PACSIP:      os.Getenv("PACS_IP"),
		PACSPort:    envInt("PACS_PORT", 2104),
		CallingAET:  os.Getenv("CALLING_AET"),
		CalledAET:   os.Getenv("CALLED_AET"),
		CallingPort: envInt("CALLING_PORT", 1103),

		DownloadHighWatermarkGB: envFloat("DOWNLOAD_HIGH_WATERMARK_GB", 45),
		DownloadLowWatermarkGB:  envFloat("DOWNLOAD_LOW_WATERMARK_GB", 40),
		MaxPendingSeries:        envInt("MAX_PENDING_SERIES", 4),
		NumConverters:           envInt("NUM_CONVERTERS", 2),
		CleanupThresholdGB:      envFloat("CLEANUP_THRESHOLD_GB", 80),
		CleanupTargetGB:         envFloat("CLEANUP_TARGET_GB", 60),

		OutputDir:              envString("OUTPUT_DIR", "./downloads"),
		TagCatalogDir:          envString("TAG_CATALOG_DIR", "./dicom_tags"),
		MRClassifierConfigPath: envString("MR_CLASSIFIER_CONFIG", "./mr_clean_config.json"),
		Dcm2niixPath:           envString("DCM2NIIX_PATH", "dcm2niix"),

		Port:     envString("PORT", "8080"),
		LogLevel: envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "json"),
		CORSAllowedOrigins: strings.Split(envString("CORS_ALLOWED_ORIGINS", "*"), ","),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: envInt("DB_MAX_IDLE_CONNS", 5),

		CacheType:     envString("CACHE_TYPE", "memory"),
		RedisAddr:     envString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
	}

	return cfg, nil
}

// Validate checks that the configuration is usable for ingestion. The
// ambient HTTP/DB/cache settings are left permissive since the service can
// run with in-memory fallbacks.
func (c *Config) Validate() error {
	if c.PACSIP == "" {
		return fmt.Errorf("PACS_IP is required")
	}
	if c.CallingAET == "" || c.CalledAET == "" {
		return fmt.Errorf("CALLING_AET and CALLED_AET are required")
	}
	if len(c.CallingAET) > 16 || len(c.CalledAET) > 16 {
		return fmt.Errorf("AE titles must be 1-16 characters")
	}
	if c.DownloadHighWatermarkGB <= c.DownloadLowWatermarkGB {
		return fmt.Errorf("DOWNLOAD_HIGH_WATERMARK_GB must exceed DOWNLOAD_LOW_WATERMARK_GB")
	}
	if c.MaxPendingSeries < 1 {
		return fmt.Errorf("MAX_PENDING_SERIES must be >= 1")
	}
	if c.NumConverters < 1 {
		return fmt.Errorf("NUM_CONVERTERS must be >= 1")
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
