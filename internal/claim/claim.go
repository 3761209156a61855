// Package claim holds the request-scoped values exchanged with the remote claims API.
package claim

import (
	"context"
	"time"
)

// Client exposes the two operations the console performs against the claims API.
type Client interface {
	// ProbeHealth never fails; an unreachable service is reported in the returned status.
	ProbeHealth(ctx context.Context, baseURL string) HealthStatus
	// SubmitClaim returns a *ClaimError on every failure.
	SubmitClaim(ctx context.Context, baseURL string, image UploadedImage) (*ClaimResult, error)
}

// HealthStatus is the outcome of a single health probe.
type HealthStatus struct {
	Reachable  bool
	StatusCode int
	// Payload is the decoded JSON body, nil when the body was empty or not JSON.
	Payload map[string]any
	// Body keeps the raw response text for payloads that did not decode.
	Body      string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}
