package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"courtsync/pkg/client"
	"courtsync/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	APIToken string

	BrowserURL         string
	BrowserConnTimeout time.Duration
	PlayoBoardURL      string
	PlayoTabPattern    string
	HudleTabPattern    string
	HudleVenueID       string

	SyncInterval       time.Duration
	SyncWindowDays     int
	RefreshCooldown    time.Duration
	DOMWaitTimeout     time.Duration
	NetworkIdleTimeout time.Duration
	NavMinInterval     time.Duration

	FacilityTimeZone string
	SlotGrid         time.Duration
	SlotTokenKey     string
	BookingLockTTL   time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		APIToken: getEnvStr(EnvAPIToken, ""),

		BrowserURL:         getEnvStr(EnvBrowserURL, DefaultBrowserURL),
		BrowserConnTimeout: getEnvDuration(EnvBrowserConnTimeout, DefaultBrowserConnTimeout),
		PlayoBoardURL:      getEnvStr(EnvPlayoBoardURL, DefaultPlayoBoardURL),
		PlayoTabPattern:    getEnvStr(EnvPlayoTabPattern, DefaultPlayoTabPattern),
		HudleTabPattern:    getEnvStr(EnvHudleTabPattern, DefaultHudleTabPattern),
		HudleVenueID:       getEnvStr(EnvHudleVenueID, DefaultHudleVenueID),

		SyncInterval:       getEnvDuration(EnvSyncInterval, DefaultSyncInterval),
		SyncWindowDays:     getEnvNum(EnvSyncWindowDays, DefaultSyncWindowDays),
		RefreshCooldown:    getEnvDuration(EnvRefreshCooldown, DefaultRefreshCooldown),
		DOMWaitTimeout:     getEnvDuration(EnvDOMWaitTimeout, DefaultDOMWaitTimeout),
		NetworkIdleTimeout: getEnvDuration(EnvNetworkIdleTimeout, DefaultNetworkIdleTimeout),
		NavMinInterval:     getEnvDuration(EnvNavMinInterval, DefaultNavMinInterval),

		FacilityTimeZone: getEnvStr(EnvFacilityTimeZone, DefaultFacilityTimeZone),
		SlotGrid:         getEnvDuration(EnvSlotGrid, DefaultSlotGrid),
		SlotTokenKey:     getEnvStr(EnvSlotTokenKey, ""),
		BookingLockTTL:   getEnvDuration(EnvBookingLockTTL, DefaultBookingLockTTL),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, logger.INFO),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if !strings.HasPrefix(cfg.BrowserURL, "http://") && !strings.HasPrefix(cfg.BrowserURL, "https://") {
		errors = append(errors, fmt.Sprintf("BrowserURL must be an http(s) endpoint, got: %s", cfg.BrowserURL))
	}
	if cfg.PlayoTabPattern == "" || cfg.HudleTabPattern == "" {
		errors = append(errors, "PlayoTabPattern and HudleTabPattern cannot be empty")
	}
	if cfg.HudleVenueID == "" {
		errors = append(errors, "HudleVenueID cannot be empty")
	}

	for _, check := range []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"BrowserConnTimeout", cfg.BrowserConnTimeout},
		{"SyncInterval", cfg.SyncInterval},
		{"DOMWaitTimeout", cfg.DOMWaitTimeout},
		{"NetworkIdleTimeout", cfg.NetworkIdleTimeout},
		{"BookingLockTTL", cfg.BookingLockTTL},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
	} {
		if check.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", check.name, check.value))
		}
	}

	// Cooldown and pacing intervals may be zero to disable them.
	if cfg.RefreshCooldown < 0 {
		errors = append(errors, fmt.Sprintf("RefreshCooldown cannot be negative, got: %s", cfg.RefreshCooldown))
	}
	if cfg.NavMinInterval < 0 {
		errors = append(errors, fmt.Sprintf("NavMinInterval cannot be negative, got: %s", cfg.NavMinInterval))
	}

	if cfg.SyncWindowDays < 1 || cfg.SyncWindowDays > 30 {
		errors = append(errors, fmt.Sprintf("SyncWindowDays must be between 1 and 30, got: %d", cfg.SyncWindowDays))
	}

	if _, err := time.LoadLocation(cfg.FacilityTimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("FacilityTimeZone is not a valid IANA zone: %s", cfg.FacilityTimeZone))
	}
	if cfg.SlotGrid < 15*time.Minute || cfg.SlotGrid > 4*time.Hour {
		errors = append(errors, fmt.Sprintf("SlotGrid must be between 15m and 4h, got: %s", cfg.SlotGrid))
	}
	if cfg.SlotTokenKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.SlotTokenKey)
		if err != nil || (len(key) != 16 && len(key) != 24 && len(key) != 32) {
			errors = append(errors, "SlotTokenKey must be base64 of a 16, 24 or 32 byte key")
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"api_token_set", cfg.APIToken != "",
		"browser_url", cfg.BrowserURL,
		"playo_board_url", cfg.PlayoBoardURL,
		"hudle_venue_id", cfg.HudleVenueID,
		"sync_interval", cfg.SyncInterval,
		"sync_window_days", cfg.SyncWindowDays,
		"refresh_cooldown", cfg.RefreshCooldown,
		"dom_wait_timeout", cfg.DOMWaitTimeout,
		"network_idle_timeout", cfg.NetworkIdleTimeout,
		"nav_min_interval", cfg.NavMinInterval,
		"facility_timezone", cfg.FacilityTimeZone,
		"slot_grid", cfg.SlotGrid,
		"slot_token_key_set", cfg.SlotTokenKey != "",
		"booking_lock_ttl", cfg.BookingLockTTL,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
