package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvAPIToken = "API_TOKEN"

	EnvBrowserURL         = "BROWSER_CDP_URL"
	EnvBrowserConnTimeout = "BROWSER_CONN_TIMEOUT"
	EnvPlayoBoardURL      = "PLAYO_BOARD_URL"
	EnvPlayoTabPattern    = "PLAYO_TAB_PATTERN"
	EnvHudleTabPattern    = "HUDLE_TAB_PATTERN"
	EnvHudleVenueID       = "HUDLE_VENUE_ID"

	EnvSyncInterval       = "SYNC_INTERVAL"
	EnvSyncWindowDays     = "SYNC_WINDOW_DAYS"
	EnvRefreshCooldown    = "REFRESH_COOLDOWN"
	EnvDOMWaitTimeout     = "DOM_WAIT_TIMEOUT"
	EnvNetworkIdleTimeout = "NETWORK_IDLE_TIMEOUT"
	EnvNavMinInterval     = "NAV_MIN_INTERVAL"

	EnvFacilityTimeZone = "FACILITY_TIMEZONE"
	EnvSlotGrid         = "SLOT_GRID"
	EnvSlotTokenKey     = "SLOT_TOKEN_KEY"
	EnvBookingLockTTL   = "BOOKING_LOCK_TTL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
