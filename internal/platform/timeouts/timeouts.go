// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// RelayPublish caps a single relay publish to the authority.
const RelayPublish = 3 * time.Second

// HealthPoll is the interval between authority health checks.
const HealthPoll = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// WebsocketWrite bounds a single feed write to a viewer.
const WebsocketWrite = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second
