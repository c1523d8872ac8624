package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter implements per-connection rate limiting using a sliding window
// algorithm, so one abusive client cannot affect others.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time // connectionID -> timestamps of recent requests
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow checks if a connection may send another message. Old timestamps are
// filtered out and the remainder counted against the limit.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	timestamps := r.requests[connectionID]
	valid := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= r.maxRequests {
		r.requests[connectionID] = valid
		return false
	}

	valid = append(valid, now)
	r.requests[connectionID] = valid
	return true
}

// RemoveConnection drops rate limit data when a stream closes.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}

// ConnectionHealth tracks last activity per user so the reaper can tear down
// streams that stopped responding. Activity is recorded on every inbound
// message.
type ConnectionHealth struct {
	lastActivity map[string]time.Time
	mu           sync.RWMutex
}

func NewConnectionHealth() *ConnectionHealth {
	return &ConnectionHealth{
		lastActivity: make(map[string]time.Time),
	}
}

func (h *ConnectionHealth) UpdateActivity(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity[userID] = time.Now()
}

// GetInactiveConnections returns every tracked user whose last activity is
// older than timeout.
func (h *ConnectionHealth) GetInactiveConnections(timeout time.Duration) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	inactive := make([]string, 0)
	now := time.Now()
	for userID, last := range h.lastActivity {
		if now.Sub(last) > timeout {
			inactive = append(inactive, userID)
		}
	}
	return inactive
}

func (h *ConnectionHealth) RemoveConnection(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastActivity, userID)
}

// ValidateMessageType returns a clear error for typos and unknown kinds
// before any payload parsing happens.
func ValidateMessageType(msgType string) error {
	validTypes := map[string]bool{
		"ping":        true,
		"create_game": true,
		"join_game":   true,
		"list_games":  true,
		"submit_move": true,
		"fetch_state": true,
		"spectate":    true,
		"leave_game":  true,
	}

	if !validTypes[msgType] {
		return fmt.Errorf("INVALID_MESSAGE_TYPE: Unknown message type '%s'", msgType)
	}
	return nil
}
