package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "courtsync"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultBrowserURL         = "http://127.0.0.1:9222"
	DefaultBrowserConnTimeout = 10 * time.Second
	DefaultPlayoBoardURL      = "https://dashboard.playo.club/"
	DefaultPlayoTabPattern    = "playo.club"
	DefaultHudleTabPattern    = "partner.hudle.in"
	DefaultHudleVenueID       = "07d910dd-7730-42ca-bc61-45fbac1019d6"

	DefaultSyncInterval       = 10 * time.Minute
	DefaultSyncWindowDays     = 7
	DefaultRefreshCooldown    = 10 * time.Minute
	DefaultDOMWaitTimeout     = 20 * time.Second
	DefaultNetworkIdleTimeout = 15 * time.Second
	DefaultNavMinInterval     = 2 * time.Second

	DefaultFacilityTimeZone = "Asia/Kolkata"
	DefaultSlotGrid         = 60 * time.Minute
	DefaultBookingLockTTL   = 2 * time.Minute

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100
)
