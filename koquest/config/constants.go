package config

import "time"

// Application-wide constants organized by domain

// Database and Performance Constants
const (
	// Timeouts
	DefaultQueryTimeout = 30 * time.Second
	StatsQueryTimeout   = 10 * time.Second
	NetworkDialTimeout  = 5 * time.Second
	RequestTimeout      = 30 * time.Second

	// Batch processing
	DefaultBatchSize     = 100
	MaxConcurrentSyncs   = 5
	MaxConcurrentExports = 5
	MaxRetries           = 3
)

// Gamification Constants
const (
	// Leveling
	XPPerLevel = 100

	// Sync cadence against the remote aggregation service
	SyncInterval = 15 * time.Minute

	// Leaderboard
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 200
	LeaderboardCacheSize    = 64
)

// API and Rate Limiting Constants
const (
	GlobalRateLimit = 50
	UserRateLimit   = 10
	RateLimitWindow = 1 * time.Minute
	MaxRequestSize  = 1024 * 1024 // 1MB
)

// Storage Constants
const (
	SnapshotRoot = "snapshots/"
)
