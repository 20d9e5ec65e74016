// Package server exposes the conversation over HTTP and WebSocket.
package server

import "time"

// Server configuration constants
const (
	// Per-connection command rate limit
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Bound on a single WebSocket write
	WriteTimeout = 2 * time.Second

	// Largest accepted config body
	MaxConfigBytes = 64 << 10

	// Default /api/turns window (seconds); 0 returns every stored turn
	DefaultTurnWindow = 0

	// Response header carrying the conversation config revision
	ConfigRevisionHeader = "X-Config-Revision"
)

// WebSocket message types.
const (
	TypeAdvance     = "advance"
	TypeReset       = "reset"
	TypeState       = "state"
	TypeError       = "error"
	TypeTurn        = "turn"
	TypeAudio       = "audio"
	TypeRateLimited = "rate_limited"
)
