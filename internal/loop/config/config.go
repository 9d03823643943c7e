// Package config centralizes the session and server timing parameters.
package config

import "time"

// Player
const (
	MaxUsernameLength = 16 // Maximum display length for player usernames
	MaxPlayers        = 32
)

// HUD
const (
	HUDRows        = 1   // Terminal rows reserved below the canvas
	BackgroundHex  = "#101014"
	CursorHex      = "#ff3366"
	OtherCursorHex = "#66ddff"
)

// Shutdown
const (
	ShutdownDisplaySeconds = 10.0 // Seconds to show shutdown message before auto-disconnect
)

// Inactivity
const (
	InactivityWarnUser       = 90  // Seconds
	InactivityDisconnectUser = 120 // Seconds
)

// Client rendering
const (
	ClientTargetFPS       = 60
	ClientTargetFrameTime = time.Second / ClientTargetFPS
)

// Server tick rate. The physics runs at a fixed rate regardless of how often
// the loop wakes up; MaxTicksPerFrame caps the catch-up after a stall.
const (
	ServerTickRate   = 60
	ServerTickTime   = time.Second / ServerTickRate
	MaxTicksPerFrame = 4
)

// Edit queue sizes
const (
	EditQueueSize   = 1024
	ClientEventSize = 16
)
