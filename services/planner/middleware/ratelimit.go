// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter map. When the map grows past this
// size, clients idle longer than limiterIdleEviction are dropped. Dropped
// clients start over with a fresh token bucket on their next request.
const maxTrackedClients = 1024

// limiterIdleEviction is how long a client may be idle before its limiter
// becomes eligible for eviction.
const limiterIdleEviction = 10 * time.Minute

// clientLimiter pairs a token bucket with the last time it was used.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters tracks one token bucket per client key.
//
// Trip generation is expensive (multiple model calls plus routing requests
// per trip), so the bucket parameters are expected to be small - on the
// order of one request every few seconds with a burst of two or three.
type clientLimiters struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientLimiter
}

func newClientLimiters(limit rate.Limit, burst int) *clientLimiters {
	return &clientLimiters{
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
}

// get returns the limiter for key, creating one on first sight.
func (cl *clientLimiters) get(key string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := time.Now()
	entry, ok := cl.clients[key]
	if !ok {
		if len(cl.clients) >= maxTrackedClients {
			cl.evictIdle(now)
		}
		entry = &clientLimiter{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// evictIdle removes clients that have been idle past the eviction window.
// Caller must hold cl.mu.
func (cl *clientLimiters) evictIdle(now time.Time) {
	for key, entry := range cl.clients {
		if now.Sub(entry.lastSeen) > limiterIdleEviction {
			delete(cl.clients, key)
		}
	}
}

// RateLimitMiddleware creates a Gin middleware that throttles requests
// per client.
//
// # Description
//
// Each client gets an independent token bucket of rps tokens per second
// with the given burst capacity. Requests that arrive with an empty bucket
// are rejected with 429 and are not passed to the handler.
//
// Clients are keyed by authenticated user ID when AuthMiddleware ran
// earlier in the chain, falling back to the client IP otherwise. In the
// default single-user deployment every request maps to "local-user", so
// the limiter is effectively global - which is the point: it protects the
// model call budget, not fairness between tenants.
//
// # Inputs
//
//   - rps: Sustained requests per second allowed per client. Must be > 0.
//   - burst: Maximum burst size per client. Must be >= 1.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin
//
// # Examples
//
//	// Allow one generation every two seconds, bursting to three
//	v1.POST("/trips/generate",
//	    middleware.RateLimitMiddleware(0.5, 3),
//	    handlers.GenerateTrip(assembler))
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := newClientLimiters(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiters.get(clientKey(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// clientKey identifies the requesting client for throttling purposes.
// Prefers the authenticated user ID, falls back to the client IP.
func clientKey(c *gin.Context) string {
	if info := GetAuthInfo(c); info != nil && info.UserID != "" {
		return info.UserID
	}
	return c.ClientIP()
}
