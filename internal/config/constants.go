package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks and store probes
const DBPingTimeout = 5 * time.Second

// StoreWriteTimeout bounds each durable write issued from a transport event.
const StoreWriteTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Default rate limiting
const DefaultRateLimitPerMin = 60

// Outbound delivery
const (
	ContactSuffix     = "@s.whatsapp.net"
	VerifyBackoff     = 1 * time.Second
	SendBackoffFactor = 2 * time.Second
)

// Scheduled messages are attempted at most this many times.
const ScheduledMaxAttempts = 3

// ScheduledBatchSize caps the due messages loaded per scheduler tick.
const ScheduledBatchSize = 100
