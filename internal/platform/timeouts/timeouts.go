// Package timeouts defines shared timeout constants used across service
// boundaries. Centralizing these values prevents drift and makes the
// durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Request caps the time allowed for a single API request, including the
// record write and any fan-out publish it triggers.
const Request = 10 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// QueuePublish caps the wait for one fan-out publish to the queue.
const QueuePublish = 3 * time.Second
