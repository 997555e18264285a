package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Redis     RedisConfig
	JWT       JWTConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Log       LogConfig
	Timetable TimetableConfig
	Exports   ExportsConfig
	Jobs      JobsConfig
	Raster    RasterConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	RenderCacheEnabled bool
	RenderCacheTTL     time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AuthConfig holds the single administrator account. The password is stored as a bcrypt hash.
type AuthConfig struct {
	AdminUsername     string
	AdminPasswordHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TimetableConfig tunes sheet parsing and grid rendering.
type TimetableConfig struct {
	ReferenceYear  int
	SemesterStart  time.Time
	GridFile       string
	FontPath       string
	Timezone       *time.Location
	MaxUploadBytes int64
}

// ExportsConfig configures rendered file storage and signed downloads.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupCron     string
}

// JobsConfig configures the asynchronous render queue.
type JobsConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// RasterConfig controls the headless browser used for PNG output.
type RasterConfig struct {
	Enabled  bool
	Timeout  time.Duration
	ExecPath string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Redis = RedisConfig{
		Host:               v.GetString("REDIS_HOST"),
		Port:               v.GetInt("REDIS_PORT"),
		Password:           v.GetString("REDIS_PASSWORD"),
		DB:                 v.GetInt("REDIS_DB"),
		RenderCacheEnabled: v.GetBool("RENDER_CACHE_ENABLED"),
		RenderCacheTTL:     parseDuration(v.GetString("RENDER_CACHE_TTL"), time.Hour),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Auth = AuthConfig{
		AdminUsername:     v.GetString("AUTH_ADMIN_USERNAME"),
		AdminPasswordHash: v.GetString("AUTH_ADMIN_PASSWORD_HASH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUpload := v.GetInt64("TIMETABLE_MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Timetable = TimetableConfig{
		ReferenceYear:  v.GetInt("TIMETABLE_REFERENCE_YEAR"),
		SemesterStart:  parseDate(v.GetString("TIMETABLE_SEMESTER_START"), time.Date(2026, time.February, 9, 0, 0, 0, 0, time.UTC)),
		GridFile:       v.GetString("TIMETABLE_GRID_FILE"),
		FontPath:       v.GetString("TIMETABLE_FONT_PATH"),
		Timezone:       parseLocation(v.GetString("TIMETABLE_TIMEZONE")),
		MaxUploadBytes: maxUpload,
	}
	// Sheet dates carry no year; they belong to the semester being rendered.
	if cfg.Timetable.ReferenceYear <= 0 {
		cfg.Timetable.ReferenceYear = cfg.Timetable.SemesterStart.Year()
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupCron:     v.GetString("EXPORTS_CLEANUP_CRON"),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		Retries:    v.GetInt("JOBS_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), time.Second),
	}

	cfg.Raster = RasterConfig{
		Enabled:  v.GetBool("RASTER_ENABLED"),
		Timeout:  parseDuration(v.GetString("RASTER_TIMEOUT"), 30*time.Second),
		ExecPath: v.GetString("RASTER_EXEC_PATH"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RENDER_CACHE_ENABLED", true)
	v.SetDefault("RENDER_CACHE_TTL", "1h")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "timetable-grid-api")
	v.SetDefault("AUTH_ADMIN_USERNAME", "admin")
	v.SetDefault("AUTH_ADMIN_PASSWORD_HASH", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMETABLE_SEMESTER_START", "2026-02-09")
	v.SetDefault("TIMETABLE_GRID_FILE", "")
	v.SetDefault("TIMETABLE_FONT_PATH", "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf")
	v.SetDefault("TIMETABLE_TIMEZONE", "Europe/Moscow")
	v.SetDefault("TIMETABLE_MAX_UPLOAD_BYTES", 5*1024*1024)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_CRON", "@every 1h")

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_RETRIES", 1)
	v.SetDefault("JOBS_RETRY_DELAY", "1s")

	v.SetDefault("RASTER_ENABLED", false)
	v.SetDefault("RASTER_TIMEOUT", "30s")
	v.SetDefault("RASTER_EXEC_PATH", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func parseDate(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}

	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return fallback
	}

	return t
}

func parseLocation(raw string) *time.Location {
	if raw == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(raw)
	if err != nil {
		return time.UTC
	}

	return loc
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
